package frame

import (
	"image"
	"sync"
	"testing"
	"time"
)

func newImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestCache_TakeEmpty(t *testing.T) {
	c := NewCache()

	if _, ok := c.Take(); ok {
		t.Error("Take on a new cache should return empty")
	}
}

func TestCache_ConsumeOnce(t *testing.T) {
	c := NewCache()
	img := newImage(4, 4)
	c.Store(img)

	f, ok := c.Take()
	if !ok {
		t.Fatal("first Take should return the stored frame")
	}
	if f.Image != img {
		t.Error("Take returned a different image")
	}

	if _, ok := c.Take(); ok {
		t.Error("second Take without Store should return empty")
	}
}

func TestCache_LastWriteWins(t *testing.T) {
	c := NewCache()
	first := newImage(2, 2)
	second := newImage(3, 3)

	c.Store(first)
	stored := c.Store(second)

	f, ok := c.Take()
	if !ok {
		t.Fatal("Take should return a frame")
	}
	if f.Image != second {
		t.Error("Take should return the most recent frame")
	}
	if f.Seq != stored.Seq || f.Seq != 2 {
		t.Errorf("Seq: got %d, want 2", f.Seq)
	}

	stats := c.Stats()
	if stats.Dropped != 1 {
		t.Errorf("Dropped: got %d, want 1", stats.Dropped)
	}
	if stats.Stored != 2 || stats.Taken != 1 {
		t.Errorf("Stored/Taken: got %d/%d, want 2/1", stats.Stored, stats.Taken)
	}
}

func TestCache_StatsDoesNotConsume(t *testing.T) {
	c := NewCache()
	c.now = func() time.Time { return time.Unix(100, 0) }
	c.Store(newImage(2, 2))

	stats := c.Stats()
	if !stats.Occupied || stats.Seq != 1 {
		t.Errorf("Stats: got %+v, want occupied with seq 1", stats)
	}

	f, ok := c.Take()
	if !ok {
		t.Fatal("Stats must not consume the frame")
	}
	if !f.Received.Equal(time.Unix(100, 0)) {
		t.Errorf("Received: got %v", f.Received)
	}
	if c.Stats().Occupied {
		t.Error("cache should be empty after Take")
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache()
	img := newImage(1, 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	taken := 0

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Store(img)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, ok := c.Take(); ok {
					mu.Lock()
					taken++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	stats := c.Stats()
	remaining := uint64(0)
	if stats.Occupied {
		remaining = 1
	}
	if stats.Stored != 1000 {
		t.Errorf("Stored: got %d, want 1000", stats.Stored)
	}
	if uint64(taken) != stats.Taken {
		t.Errorf("Taken: got %d, counted %d", stats.Taken, taken)
	}
	// Every stored frame is either taken, dropped, or still in the slot
	if stats.Taken+stats.Dropped+remaining != stats.Stored {
		t.Errorf("frame accounting mismatch: %+v", stats)
	}
}

func TestCache_Peek(t *testing.T) {
	c := NewCache()
	if _, _, ok := c.Peek(); ok {
		t.Fatal("Peek on empty cache should report no frame")
	}

	clock := time.Unix(100, 0)
	c.now = func() time.Time { return clock }
	c.Store(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	clock = clock.Add(250 * time.Millisecond)

	seq, age, ok := c.Peek()
	if !ok || seq != 1 || age != 250*time.Millisecond {
		t.Errorf("Peek: got (%d, %v, %v), want (1, 250ms, true)", seq, age, ok)
	}
	if _, ok := c.Take(); !ok {
		t.Error("Peek must not consume the frame")
	}
}
