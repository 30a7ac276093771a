// Package shutdown orchestrates graceful termination of the server.
package shutdown

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/SlpAus/arena-ranking-backend/pkg/lifecycle"
)

// Finalizer runs once every background service has stopped.
type Finalizer struct {
	Name string
	Run  func(ctx context.Context) error
}

// Timeouts bounds each phase of the shutdown.
type Timeouts struct {
	HTTP     time.Duration
	Graceful time.Duration
	Forceful time.Duration
	Finalize time.Duration
}

// DefaultTimeouts derives the phase limits from the configured graceful timeout.
func DefaultTimeouts(graceful time.Duration) Timeouts {
	return Timeouts{
		HTTP:     graceful / 2,
		Graceful: graceful,
		Forceful: time.Second,
		Finalize: 5 * time.Second,
	}
}

// Coordinator stops the HTTP server, then the background services in two
// phases, then runs the finalizers in registration order.
type Coordinator struct {
	graceful   *lifecycle.Manager
	forceful   *lifecycle.Manager
	log        *logger.Logger
	timeouts   Timeouts
	finalizers []Finalizer
}

func NewCoordinator(graceful, forceful *lifecycle.Manager, log *logger.Logger, t Timeouts) *Coordinator {
	return &Coordinator{graceful: graceful, forceful: forceful, log: log, timeouts: t}
}

// OnShutdown registers a finalizer.
func (c *Coordinator) OnShutdown(name string, run func(ctx context.Context) error) {
	c.finalizers = append(c.finalizers, Finalizer{Name: name, Run: run})
}

// ListenForSignalsAndShutdown blocks until SIGINT or SIGTERM, then shuts down.
func (c *Coordinator) ListenForSignalsAndShutdown(server *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	signal.Stop(sigChan)

	c.log.Info("received shutdown signal", "signal", sig.String())
	c.Shutdown(server)
}

// Shutdown runs every phase. server may be nil.
// It returns the services that outlived the forceful phase.
func (c *Coordinator) Shutdown(server *http.Server) []string {
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeouts.HTTP)
		if err := server.Shutdown(ctx); err != nil {
			c.log.Error("http server shutdown", "error", err)
		} else {
			c.log.Info("http server stopped")
		}
		cancel()
	}

	c.log.Info("phase one: waiting for background services", "timeout", c.timeouts.Graceful)
	c.graceful.Shutdown()
	remaining := c.graceful.WaitWithTimeout(c.timeouts.Graceful)
	if len(remaining) > 0 {
		c.log.Warn("phase one timed out, forcing stop", "remaining", remaining, "timeout", c.timeouts.Forceful)
		c.forceful.Shutdown()
		remaining = c.forceful.WaitWithTimeout(c.timeouts.Forceful)
		if len(remaining) > 0 {
			c.log.Error("services did not stop", "remaining", remaining)
		}
	} else {
		c.log.Info("all background services stopped")
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeouts.Finalize)
	defer cancel()
	for _, f := range c.finalizers {
		if err := f.Run(ctx); err != nil {
			c.log.Error("finalizer failed", "finalizer", f.Name, "error", err)
			continue
		}
		c.log.Debug("finalizer done", "finalizer", f.Name)
	}

	c.log.Info("shutdown complete")
	return remaining
}
