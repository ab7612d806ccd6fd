package chrono

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRandomDelayBounds(t *testing.T) {
	d := NewRandomDelay(20*time.Millisecond, 10*time.Millisecond)
	require.Equal(t, 10*time.Millisecond, d.Min)
	require.Equal(t, 20*time.Millisecond, d.Max)

	for i := 0; i < 100; i++ {
		wait := d.next()
		require.GreaterOrEqual(t, wait, d.Min)
		require.Less(t, wait, d.Max)
	}
}

func TestRandomDelayCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := NewRandomDelay(time.Minute, 2*time.Minute).Delay(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}

func TestNoDelay(t *testing.T) {
	require.NoError(t, NoDelay{}.Delay(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, NoDelay{}.Delay(ctx), context.Canceled)
}
