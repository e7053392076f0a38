package analysis

import (
	"sync"
	"time"
)

const DefaultDebounce = 200 * time.Millisecond

// Debouncer publishes the newest value once it stayed unchanged for the
// whole window. At most one timer is armed at a time.
type Debouncer[T any] struct {
	delay   time.Duration
	publish func(T)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	latest  T
	pending bool
	stopped bool
}

func NewDebouncer[T any](delay time.Duration, publish func(T)) *Debouncer[T] {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer[T]{delay: delay, publish: publish}
}

// Set replaces the pending value and restarts the window.
func (d *Debouncer[T]) Set(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.latest = v
	d.pending = true
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush publishes the pending value right away.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if d.stopped || !d.pending {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	v := d.latest
	d.pending = false
	d.mu.Unlock()
	if d.publish != nil {
		d.publish(v)
	}
}

// Cancel drops the pending value without publishing it. Later Sets still
// arm the timer.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Stop discards the pending value; later Sets are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	// a timer that lost the race against Stop or a newer Set is stale
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	v := d.latest
	d.pending = false
	d.mu.Unlock()
	if d.publish != nil {
		d.publish(v)
	}
}
