// Package publish delivers debug images to downstream consumers with
// latest-value semantics.
package publish

import (
	"sync"
	"time"
)

// Item is one publication held by a Slot.
type Item[T any] struct {
	Value     T
	Seq       uint64
	Published time.Time
}

// Slot keeps only the most recent publication.
//
// Publish never blocks. Consumers either poll Latest or receive from Updates,
// a channel of capacity one that always holds the newest unread item; older
// unread items are discarded.
type Slot[T any] struct {
	mu      sync.RWMutex
	latest  *Item[T]
	seq     uint64
	dropped uint64
	updates chan Item[T]
}

// NewSlot returns an empty slot.
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{updates: make(chan Item[T], 1)}
}

// Publish stores v as the latest item and offers it on Updates.
func (s *Slot[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	item := Item[T]{Value: v, Seq: s.seq, Published: time.Now()}
	s.latest = &item

	// Replace any unread item so the channel always carries the newest one.
	select {
	case <-s.updates:
		s.dropped++
	default:
	}
	s.updates <- item
}

// Latest returns the most recent item, or ok=false if nothing was published.
func (s *Slot[T]) Latest() (Item[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return Item[T]{}, false
	}
	return *s.latest, true
}

// Updates returns the notification channel.
func (s *Slot[T]) Updates() <-chan Item[T] {
	return s.updates
}

// Dropped returns how many items were replaced before any consumer read them
// from Updates.
func (s *Slot[T]) Dropped() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}
