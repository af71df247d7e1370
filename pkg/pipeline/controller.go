package pipeline

import (
	"context"
	"sync"
	"time"
)

// Transition records one controller state change for diagnostics.
type Transition struct {
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Controller coordinates pause/resume/kill signals for a running pipeline.
// The pipeline consults it between events, so a paused controller suspends
// the stream without losing compressor state.
type Controller struct {
	mu       sync.Mutex
	paused   bool
	stopping bool
	stopErr  error
	signal   chan struct{}
	clock    func() time.Time
	timeline []Transition
}

// NewController constructs a controller in the running state.
func NewController() *Controller {
	return NewControllerWithClock(time.Now)
}

// NewControllerWithClock injects the clock used to stamp timeline entries.
func NewControllerWithClock(clock func() time.Time) *Controller {
	if clock == nil {
		clock = time.Now
	}
	c := &Controller{signal: make(chan struct{}, 1), clock: clock}
	c.record("running", "")
	return c
}

// Pause transitions the controller into a paused state.
func (c *Controller) Pause() {
	c.mu.Lock()
	if !c.paused {
		c.paused = true
		c.record("paused", "")
	}
	c.mu.Unlock()
}

// Resume clears a paused state and notifies waiters.
func (c *Controller) Resume() {
	c.mu.Lock()
	alreadyRunning := !c.paused
	if c.paused {
		c.paused = false
		c.record("running", "")
	}
	c.mu.Unlock()
	if !alreadyRunning {
		c.notify()
	}
}

// Kill requests the pipeline to stop and propagates an optional error.
func (c *Controller) Kill(err error) {
	c.mu.Lock()
	if !c.stopping {
		c.stopping = true
		reason := ""
		if err != nil {
			reason = err.Error()
		}
		c.record("stopping", reason)
	}
	if err != nil && c.stopErr == nil {
		c.stopErr = err
	}
	c.mu.Unlock()
	c.notify()
}

// Wait blocks until the controller is running or stopping. It returns nil
// when processing may continue and an error once the pipeline must stop.
func (c *Controller) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		paused := c.paused
		stopping := c.stopping
		stopErr := c.stopErr
		c.mu.Unlock()

		if stopping {
			if stopErr != nil {
				return stopErr
			}
			if ctx != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			return context.Canceled
		}
		if !paused {
			return nil
		}

		if ctx == nil {
			<-c.signal
			continue
		}

		select {
		case <-ctx.Done():
			c.Kill(ctx.Err())
			return ctx.Err()
		case <-c.signal:
			continue
		}
	}
}

// State reports the textual state for diagnostics.
func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.stopping:
		return "stopping"
	case c.paused:
		return "paused"
	default:
		return "running"
	}
}

// Timeline returns a copy of the recorded state transitions.
func (c *Controller) Timeline() []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transition(nil), c.timeline...)
}

// record appends a timeline entry; callers hold the mutex except during
// construction.
func (c *Controller) record(state, reason string) {
	c.timeline = append(c.timeline, Transition{
		State:     state,
		Reason:    reason,
		Timestamp: c.clock().UTC(),
	})
}

func (c *Controller) notify() {
	select {
	case c.signal <- struct{}{}:
	default:
	}
}
