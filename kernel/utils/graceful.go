package utils

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// GracefulShutdown runs the shutdown functions registered against it
// (the scheduler registers one per CPU ticker), collecting every
// shutdown error instead of reporting only the first one.
type GracefulShutdown struct {
	mu         sync.Mutex
	shutdownFn []func() error
	timeout    time.Duration
	logger     *Logger
}

// NewGracefulShutdown creates a new graceful shutdown manager.
func NewGracefulShutdown(timeout time.Duration, logger *Logger) *GracefulShutdown {
	if logger == nil {
		logger = DefaultLogger("shutdown")
	}
	return &GracefulShutdown{
		shutdownFn: make([]func() error, 0),
		timeout:    timeout,
		logger:     logger,
	}
}

// Register registers a shutdown function. Shutdown runs all registered
// functions concurrently, so no order between them is guaranteed.
func (g *GracefulShutdown) Register(fn func() error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shutdownFn = append(g.shutdownFn, fn)
}

// Shutdown runs every registered shutdown function concurrently, waits up
// to its configured timeout, and returns the aggregate of every error
// encountered (nil if none).
func (g *GracefulShutdown) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	fns := append([]func() error(nil), g.shutdownFn...)
	g.mu.Unlock()

	g.logger.Info("starting graceful shutdown", Int("components", len(fns)))

	shutdownCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var (
		errsMu sync.Mutex
		errs   error
	)
	var wg sync.WaitGroup
	for i := len(fns) - 1; i >= 0; i-- {
		wg.Add(1)
		fn := fns[i]
		go func(idx int) {
			defer wg.Done()
			if err := fn(); err != nil {
				g.logger.Error("shutdown function failed", Int("index", idx), Err(err))
				errsMu.Lock()
				errs = multierr.Append(errs, err)
				errsMu.Unlock()
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.logger.Info("graceful shutdown complete")
		return errs
	case <-shutdownCtx.Done():
		g.logger.Warn("graceful shutdown timed out")
		return multierr.Append(errs, errors.New("shutdown timeout"))
	}
}
