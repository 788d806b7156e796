package tracker

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler creates a context that is cancelled on SIGTERM or SIGINT.
// It also calls the provided shutdown function before cancelling. A second
// signal forces the process to exit.
func SetupSignalHandler(logger *slog.Logger, shutdownFunc func(context.Context)) context.Context {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		logger.Info("signal: received, initiating graceful shutdown", "signal", sig.String())

		if shutdownFunc != nil {
			shutdownFunc(ctx)
		}

		cancel()

		sig = <-sigCh
		logger.Warn("signal: received second signal, forcing exit", "signal", sig.String())
		os.Exit(1)
	}()

	return ctx
}
