// Package node owns the gossip node runtime: the UDP endpoint, the
// cooperative select loop, and the glue between every protocol engine.
package node

import "time"

type timerFactory func(time.Duration) <-chan time.Time

// ControlTimer is a re-armable ticker: the runtime's periodic loops (pull,
// liveness, discovery) each own one, calling Reset after handling a tick to
// schedule the next.
type ControlTimer struct {
	timerFactory timerFactory
	tickCh       chan struct{}
	resetCh      chan time.Duration
	shutdownCh   chan struct{}
}

// NewFixedControlTimer returns a ControlTimer that fires at a constant
// period with no jitter, the way the node runtime's periodic loops require
// for predictable tick scheduling.
func NewFixedControlTimer() *ControlTimer {
	fixed := func(d time.Duration) <-chan time.Time {
		if d <= 0 {
			return nil
		}
		return time.After(d)
	}
	return &ControlTimer{
		timerFactory: fixed,
		tickCh:       make(chan struct{}),
		resetCh:      make(chan time.Duration),
		shutdownCh:   make(chan struct{}),
	}
}

// TickCh is signaled once per period.
func (c *ControlTimer) TickCh() <-chan struct{} {
	return c.tickCh
}

// Run drives the timer loop until Shutdown is called. init is the delay
// before the first tick.
func (c *ControlTimer) Run(init time.Duration) {
	timer := c.timerFactory(init)
	for {
		select {
		case <-timer:
			select {
			case c.tickCh <- struct{}{}:
			case <-c.shutdownCh:
				return
			}
			timer = nil
		case d := <-c.resetCh:
			timer = c.timerFactory(d)
		case <-c.shutdownCh:
			return
		}
	}
}

// Reset schedules the next tick after d, called once the current tick has
// been fully handled.
func (c *ControlTimer) Reset(d time.Duration) {
	select {
	case c.resetCh <- d:
	case <-c.shutdownCh:
	}
}

// Shutdown stops the timer loop. It is not idempotent: a second call panics
// on the already-closed channel. The runtime calls it exactly once per timer
// during shutdown.
func (c *ControlTimer) Shutdown() {
	close(c.shutdownCh)
}
