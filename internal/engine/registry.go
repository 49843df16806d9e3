package engine

import (
	"sort"
	"sync"
	"sync/atomic"

	"depth_go/internal/book"
	"depth_go/internal/domain"
)

type slot struct {
	view  atomic.Pointer[book.View]
	limit atomic.Pointer[domain.PriceLimit]
}

// Registry maps instruments to their latest published view and price limit.
// Loads are wait-free; the map itself only changes on (un)subscribe.
type Registry struct {
	mu    sync.RWMutex
	slots map[string]*slot
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{slots: make(map[string]*slot)}
}

// Add registers an instrument. It reports false if it was already present.
func (r *Registry) Add(instrumentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[instrumentID]; ok {
		return false
	}
	r.slots[instrumentID] = &slot{}
	return true
}

// Remove forgets an instrument and everything published for it.
func (r *Registry) Remove(instrumentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[instrumentID]; !ok {
		return false
	}
	delete(r.slots, instrumentID)
	return true
}

func (r *Registry) get(instrumentID string) *slot {
	r.mu.RLock()
	s := r.slots[instrumentID]
	r.mu.RUnlock()
	return s
}

// Publish swaps in a new view. Views for unknown instruments are ignored.
func (r *Registry) Publish(v *book.View) {
	if s := r.get(v.InstrumentID()); s != nil {
		s.view.Store(v)
	}
}

// View returns the latest published view, or nil when none exists yet.
func (r *Registry) View(instrumentID string) (*book.View, bool) {
	s := r.get(instrumentID)
	if s == nil {
		return nil, false
	}
	return s.view.Load(), true
}

// SetPriceLimit stores the latest price limit for a registered instrument.
func (r *Registry) SetPriceLimit(l domain.PriceLimit) bool {
	s := r.get(l.InstrumentID)
	if s == nil {
		return false
	}
	s.limit.Store(&l)
	return true
}

// PriceLimit returns the latest price limit, nil if none was received.
func (r *Registry) PriceLimit(instrumentID string) *domain.PriceLimit {
	s := r.get(instrumentID)
	if s == nil {
		return nil
	}
	return s.limit.Load()
}

// Instruments returns the registered instruments, sorted.
func (r *Registry) Instruments() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.slots))
	for id := range r.slots {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
