// Package cli implements the amari-proxy command line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Main runs the CLI and exits the process on failure.
func Main(version string) {
	ctx, cancel := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := NewRootCommand(version)
	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err.Error())

		os.Exit(1)
	}
}

// notifyContext cancels the returned context on the first signal and
// force exits on the second.
func notifyContext(ctx context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	osSignalChannel := make(chan os.Signal, 1)
	signal.Notify(osSignalChannel, signals...)

	ctx, cancel := context.WithCancel(ctx)

	go func() {
		osSignal := <-osSignalChannel
		slog.Info("got os signal, shutting down", slog.String("signal", osSignal.String()))
		cancel()

		osSignal = <-osSignalChannel
		slog.Error("got os signal, force exit", slog.String("signal", osSignal.String()))
		os.Exit(1)
	}()

	return ctx, cancel
}
