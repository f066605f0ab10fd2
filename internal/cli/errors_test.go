package cli

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jaa/oct/internal/exitcode"
)

func TestMapExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: exitcode.Success},
		{name: "coded", err: &ExitError{Code: exitcode.InvalidConfig, Err: errors.New("bad")}, want: exitcode.InvalidConfig},
		{name: "wrapped coded", err: fmt.Errorf("run: %w", &ExitError{Code: exitcode.RunLocked, Err: errors.New("locked")}), want: exitcode.RunLocked},
		{name: "canceled", err: fmt.Errorf("wait: %w", context.Canceled), want: exitcode.Interrupted},
		{name: "unknown command", err: errors.New("unknown command \"x\" for \"oct\""), want: exitcode.InvalidUsage},
		{name: "generic", err: errors.New("boom"), want: exitcode.RuntimeFailure},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapExitCode(tc.err); got != tc.want {
				t.Fatalf("mapExitCode() = %d, want %d", got, tc.want)
			}
		})
	}
}
