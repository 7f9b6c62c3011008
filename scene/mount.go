package scene

import (
	"context"
	"sync"
	"time"
)

// Mount is a one-shot readiness signal for the adapter of one mounted editor.
type Mount struct {
	once     sync.Once
	ready    chan struct{}
	mu       sync.RWMutex
	adapter  *Adapter
	released bool
}

func NewMount() *Mount {
	return &Mount{ready: make(chan struct{})}
}

// Resolve publishes a. Only the first call has any effect; it reports whether this call won.
func (m *Mount) Resolve(a *Adapter) bool {
	won := false
	m.once.Do(func() {
		m.mu.Lock()
		m.adapter = a
		m.mu.Unlock()
		close(m.ready)
		won = true
	})
	return won
}

// Wait blocks until the adapter is resolved, ctx is done or timeout elapses. It returns
// ErrNotReady unless a live adapter is available.
func (m *Mount) Wait(ctx context.Context, timeout time.Duration) (*Adapter, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case <-m.ready:
	case <-ctx.Done():
		return nil, ErrNotReady
	}
	if a := m.Current(); a != nil {
		return a, nil
	}
	return nil, ErrNotReady
}

// Current returns the live adapter, or nil before Resolve, after Release or once disposed.
func (m *Mount) Current() *Adapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.released || m.adapter == nil || !m.adapter.Alive() {
		return nil
	}
	return m.adapter
}

// Release drops the adapter reference; waiters still blocked fail with ErrNotReady.
func (m *Mount) Release() {
	m.mu.Lock()
	m.released = true
	m.adapter = nil
	m.mu.Unlock()
	m.once.Do(func() { close(m.ready) })
}
