package runtime

import (
	"context"
	"os/signal"
	"syscall"
)

// SignalContext is the root context of every service process; it cancels on
// SIGINT or SIGTERM and the second signal kills the process.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
