package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager hands out Handles to background services and waits for them to
// finish after Shutdown.
type Manager struct {
	name     string
	log      *zap.SugaredLogger
	wg       sync.WaitGroup
	mu       sync.Mutex
	services map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a manager. A nil log discards output.
func NewManager(name string, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	m := &Manager{
		name:     name,
		log:      log.With("manager", name),
		services: make(map[string]bool),
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// NewServiceHandle registers a service under a unique name.
func (m *Manager) NewServiceHandle(name string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.services[name] {
		return nil, fmt.Errorf("lifecycle %s: service %q already registered", m.name, name)
	}
	m.services[name] = true
	m.wg.Add(1)
	m.log.Debugw("service registered", "service", name)

	var once sync.Once
	return &Handle{
		ctx: m.ctx,
		Close: func() {
			once.Do(func() {
				m.mu.Lock()
				defer m.mu.Unlock()
				delete(m.services, name)
				m.wg.Done()
			})
		},
	}, nil
}

// Shutdown cancels every handle's context.
func (m *Manager) Shutdown() {
	m.log.Infow("broadcasting shutdown")
	m.cancel()
}

// WaitWithTimeout waits for all registered services to close. It returns the
// names of services still running when the timeout elapsed.
func (m *Manager) WaitWithTimeout(timeout time.Duration) []string {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.remainingServices()
	}
}

func (m *Manager) remainingServices() []string {
	remaining := make([]string, 0, len(m.services))
	for name := range m.services {
		remaining = append(remaining, name)
	}
	sort.Strings(remaining)
	return remaining
}
