package export

import (
	"errors"
	"sync"
)

var errGateClosed = errors.New("persistence stopped")

// persistGate lets workers write while the batch is healthy. close waits for
// in-progress writes and rejects every later one.
type persistGate struct {
	mu     sync.RWMutex
	closed bool
}

func (g *persistGate) persist(fn func() error) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return errGateClosed
	}
	return fn()
}

func (g *persistGate) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}
