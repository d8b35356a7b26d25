// Package alarm provides the dual-source progress trigger polled by the
// copy loop: a periodic timer tick and a manual (signal-driven) tick share
// one atomic cell.
package alarm

import (
	"sync/atomic"
	"time"
	"weak"
)

// Trigger is the three-valued state of the shared cell.
type Trigger int32

const (
	None Trigger = iota
	Timer
	Signal
)

// cell is heap-allocated so weak references to it can be taken. Stores are
// plain last-write-wins: a Timer and a Signal landing in the same poll gap
// coalesce to whichever arrived last.
type cell struct {
	v atomic.Int32
}

// Alarm is an owning handle on the trigger cell. The ticker goroutine and
// any manual-trigger callbacks hold only weak references, so once every
// Alarm handle is unreachable the ticker stops on its own.
type Alarm struct {
	c *cell
}

// Start begins ticking at the given interval and returns the owning handle.
func Start(interval time.Duration) *Alarm {
	a := &Alarm{c: &cell{}}
	w := weak.Make(a.c)
	go tick(w, interval)
	return a
}

func tick(w weak.Pointer[cell], interval time.Duration) {
	for {
		time.Sleep(interval)
		c := w.Value()
		if c == nil {
			return
		}
		c.v.Store(int32(Timer))
	}
}

// ManualTrigger returns a callback that records a user-requested report.
// The callback holds its own weak reference and is a no-op once the cell
// is gone, so it is safe to leave installed in a signal handler.
func (a *Alarm) ManualTrigger() func() {
	w := weak.Make(a.c)
	return func() {
		if c := w.Value(); c != nil {
			c.v.Store(int32(Signal))
		}
	}
}

// Poll consumes a pending trigger, if any. The swap back to None is the
// only way a trigger is observed, so each tick is delivered at most once.
func (a *Alarm) Poll() Trigger {
	return Trigger(a.c.v.Swap(int32(None)))
}
