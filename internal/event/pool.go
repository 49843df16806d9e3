package event

import (
	"sync"
)

// bookUpdatePool provides sync.Pool for the high-frequency book event wrapper.
// Use this to reduce GC pressure in the hotpath.
//
// Usage:
//
//	ev := AcquireBookUpdateEvent()
//	ev.Update = update
//	// ... dispatch ...
//	ReleaseBookUpdateEvent(ev) // after the engine has taken the update
//
// Only the wrapper is pooled. The *domain.BookUpdate it points to may be
// retained by the engine (resync buffer) after the wrapper is released.
var bookUpdatePool = sync.Pool{
	New: func() interface{} {
		return &BookUpdateEvent{}
	},
}

// AcquireBookUpdateEvent gets a BookUpdateEvent from the pool.
// The returned event has zero values and must be initialized.
func AcquireBookUpdateEvent() *BookUpdateEvent {
	return bookUpdatePool.Get().(*BookUpdateEvent)
}

// ReleaseBookUpdateEvent returns a BookUpdateEvent to the pool.
func ReleaseBookUpdateEvent(ev *BookUpdateEvent) {
	if ev == nil {
		return
	}
	ev.Update = nil
	bookUpdatePool.Put(ev)
}

// Warmup pre-allocates event objects to reduce GC pressure at startup.
// It acquires and releases a batch of events.
func Warmup() {
	const batchSize = 1000

	evs := make([]*BookUpdateEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		evs = append(evs, AcquireBookUpdateEvent())
	}
	for _, ev := range evs {
		ReleaseBookUpdateEvent(ev)
	}
}
