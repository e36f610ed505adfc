package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// ShutdownFunc releases one resource during shutdown.
type ShutdownFunc func(context.Context) error

// WaitForShutdown blocks until SIGINT/SIGTERM, then drains the HTTP server
// and runs the shutdown funcs in order, all within timeout.
func WaitForShutdown(logger *Logger, server *http.Server, timeout time.Duration, funcs ...ShutdownFunc) error {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received signal, starting graceful shutdown", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("HTTP server shutdown error")
			return fmt.Errorf("HTTP server shutdown failed: %w", err)
		}
	}

	var failed int
	for _, fn := range funcs {
		if err := fn(ctx); err != nil {
			logger.WithError(err).Error("Shutdown function failed")
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("shutdown completed with %d errors", failed)
	}
	logger.Info("Graceful shutdown complete")
	return nil
}
