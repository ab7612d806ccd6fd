package serviceutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext is cancelled on the first SIGINT or SIGTERM. A second
// signal falls through to the default handler and kills the process.
func SignalContext() context.Context {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		slog.Warn("interrupted, abandoning the current query")
		stop()
	}()
	return ctx
}

// Fatal logs err and exits, for setup failures in main packages.
func Fatal(message string, err error) {
	slog.Error(message, "err", err)
	os.Exit(1)
}
