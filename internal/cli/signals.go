package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// ExitError carries a process exit code out of a command
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// signalContext returns a context cancelled by SIGINT or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
}

// interruptible calls onFirst at the first SIGINT or SIGTERM and cancels the
// returned context at the second one
func interruptible(cmd *cobra.Command, onFirst func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(commandContext(cmd))

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		first := true
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigCh:
				if first {
					first = false
					onFirst()
					continue
				}
				cancel()
				return
			}
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
