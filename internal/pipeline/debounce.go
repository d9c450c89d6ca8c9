package pipeline

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Debouncer coalesces bursts of triggers into one call of fn, made delay
// after the last trigger.
type Debouncer struct {
	clock clockwork.Clock
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer clockwork.Timer
}

// NewDebouncer creates a Debouncer.
func NewDebouncer(clock clockwork.Clock, delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{clock: clock, delay: delay, fn: fn}
}

// Trigger (re)starts the delay.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.delay, d.fn)
}

// Cancel drops a pending call. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	stopped := d.timer.Stop()
	d.timer = nil
	return stopped
}
