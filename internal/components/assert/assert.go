// Package assert holds constructor preconditions. A failed assertion is a
// programming error, so it panics instead of returning an error.
package assert

import "fmt"

func NotNil(value any) {
	if value == nil {
		panic("assert: value is nil")
	}
}

func NonNegative(n int) {
	if n < 0 {
		panic(fmt.Sprintf("assert: %d is negative", n))
	}
}
