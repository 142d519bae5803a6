package reconcile

import (
	"sync"
	"sync/atomic"
)

// RunGuard admits one run at a time. A caller that loses the race skips instead of waiting.
type RunGuard struct {
	running atomic.Bool
}

func (g *RunGuard) TryAcquire() bool {
	return g.running.CompareAndSwap(false, true)
}

func (g *RunGuard) Release() {
	g.running.Store(false)
}

func (g *RunGuard) Running() bool {
	return g.running.Load()
}

// InFlight tracks entity ids currently being processed.
type InFlight struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewInFlight() *InFlight {
	return &InFlight{ids: map[string]struct{}{}}
}

func (f *InFlight) TryAcquire(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, busy := f.ids[id]; busy {
		return false
	}
	f.ids[id] = struct{}{}
	return true
}

func (f *InFlight) Release(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.ids, id)
}

func (f *InFlight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.ids)
}
