package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// Count is a snapshot of a Counter.
type Count struct {
	Total int64
	// Rate is the number of additions per second since the previous Tick.
	Rate float64
}

// Counter is a concurrent event counter with a rate since the last tick.
type Counter struct {
	value int64

	mu       sync.Mutex
	last     int64
	lastTick time.Time
}

func NewCounter() *Counter {
	return &Counter{lastTick: time.Now()}
}

func (c *Counter) Add(n int) {
	atomic.AddInt64(&c.value, int64(n))
}

func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

// Tick returns the current count and resets the rate window.
func (c *Counter) Tick() Count {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	v := c.Value()
	count := Count{Total: v}
	if secs := now.Sub(c.lastTick).Seconds(); secs > 0 {
		count.Rate = float64(v-c.last) / secs
	}
	c.last = v
	c.lastTick = now
	return count
}
