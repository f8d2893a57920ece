// Package clock wraps the few time operations the node loops need so that
// polling loops can run against a simulated clock in tests.
//
// Every busy-wait of the rig (channel polling, refill polling, stepper
// timing, watering) goes through a Clock instead of calling time directly.
package clock

import "time"

// Clock is the time source of a node control loop.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep pauses the caller for at least d.
	Sleep(d time.Duration)

	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

// Real returns the wall clock.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) Sleep(d time.Duration)                  { time.Sleep(d) }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SleepUntil sleeps until deadline. Waits are computed against the
// deadline, not accumulated, so a sequence of steps scheduled at
// start+i*interval does not drift.
func SleepUntil(c Clock, deadline time.Time) {
	if d := deadline.Sub(c.Now()); d > 0 {
		c.Sleep(d)
	}
}

// Since returns the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}
