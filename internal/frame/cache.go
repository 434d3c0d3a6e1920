// Package frame holds the single-slot buffer between the camera feed and the
// detection requests.
package frame

import (
	"image"
	"sync"
	"time"
)

// Frame is a preprocessed camera image together with its arrival metadata.
// The image must not be modified after the frame is stored.
type Frame struct {
	Image    image.Image
	Seq      uint64
	Received time.Time
}

// Stats reports lifetime counters of a Cache.
type Stats struct {
	Stored   uint64 `json:"stored"`
	Taken    uint64 `json:"taken"`
	Dropped  uint64 `json:"dropped"`
	Occupied bool   `json:"occupied"`
	Seq      uint64 `json:"seq,omitempty"`
}

// Cache is a consume-once, single-slot frame buffer.
//
// Store always overwrites; a frame replaced before anyone took it counts as
// dropped. Take empties the slot, so every stored frame is handed out at most
// once. Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	slot    *Frame
	seq     uint64
	stored  uint64
	taken   uint64
	dropped uint64
	now     func() time.Time
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{now: time.Now}
}

// Store places img in the slot, replacing any unconsumed frame, and returns
// the new frame.
func (c *Cache) Store(img image.Image) Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.slot != nil {
		c.dropped++
	}
	c.seq++
	c.stored++
	f := &Frame{Image: img, Seq: c.seq, Received: c.now()}
	c.slot = f
	return *f
}

// Take removes and returns the current frame. ok is false when the slot is
// empty, including immediately after a previous Take.
func (c *Cache) Take() (Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.slot == nil {
		return Frame{}, false
	}
	f := *c.slot
	c.slot = nil
	c.taken++
	return f, true
}

// Stats returns a snapshot of the counters without consuming the frame.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Stored:   c.stored,
		Taken:    c.taken,
		Dropped:  c.dropped,
		Occupied: c.slot != nil,
	}
	if c.slot != nil {
		s.Seq = c.slot.Seq
	}
	return s
}

// Peek reports the sequence number and age of the waiting frame without
// consuming it. ok is false when the slot is empty.
func (c *Cache) Peek() (seq uint64, age time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.slot == nil {
		return 0, 0, false
	}
	return c.slot.Seq, c.now().Sub(c.slot.Received), true
}
