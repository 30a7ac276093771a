package lifecycle

import (
	"context"
	"time"
)

// Handle is the lifecycle controller handed to one background service.
// The service must call Close (usually deferred) once it has stopped.
type Handle struct {
	ctx   context.Context
	Close func()
}

// Ctx returns the context cancelled when the manager shuts down.
func (h *Handle) Ctx() context.Context {
	return h.ctx
}

// Done is closed when the manager broadcasts shutdown.
func (h *Handle) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Err returns the cancellation cause once Done is closed.
func (h *Handle) Err() error {
	return h.ctx.Err()
}

// Sleep pauses for duration, returning early with Err() if the handle is
// cancelled in the meantime.
func (h *Handle) Sleep(duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-h.Done():
		return h.Err()
	case <-timer.C:
		return nil
	}
}
