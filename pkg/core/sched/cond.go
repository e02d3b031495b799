package sched

import "time"

// Cond suspends tasks until another task notifies them. Because the owning
// scheduler runs at most one task at a time, no external mutex is needed: a
// waiter registers itself and parks in one uninterrupted step.
type Cond struct {
	s       *Scheduler
	waiters []*task
}

// NewCond creates a condition bound to this scheduler.
func (s *Scheduler) NewCond() *Cond {
	return &Cond{s: s}
}

// Wait suspends the calling task until a Notify or NotifyAll wakes it.
func (c *Cond) Wait() {
	c.s.mustBeInTask("Cond.Wait")
	t := c.s.current
	t.waitCond = c
	t.notified = false
	c.waiters = append(c.waiters, t)
	c.s.suspend(parkBlocked)
	t.waitCond = nil
}

// WaitTimeout suspends the calling task until it is notified or until d has
// elapsed, whichever comes first. It reports whether the task was notified.
func (c *Cond) WaitTimeout(d time.Duration) bool {
	c.s.mustBeInTask("Cond.WaitTimeout")
	t := c.s.current
	t.waitCond = c
	t.notified = false
	t.deadline = time.Now().Add(d)
	c.waiters = append(c.waiters, t)
	c.s.suspend(parkBlocked)
	t.waitCond = nil
	t.deadline = time.Time{}
	return t.notified
}

// Notify wakes the longest-waiting task, if any, and yields so the notifier
// does not monopolize the scheduler.
func (c *Cond) Notify() {
	c.s.mustBeInTask("Cond.Notify")
	if len(c.waiters) > 0 {
		c.wake(c.waiters[0])
	}
	c.s.Yield()
}

// NotifyAll wakes every waiting task and yields.
func (c *Cond) NotifyAll() {
	c.s.mustBeInTask("Cond.NotifyAll")
	for len(c.waiters) > 0 {
		c.wake(c.waiters[0])
	}
	c.s.Yield()
}

func (c *Cond) wake(t *task) {
	c.remove(t)
	t.notified = true
	c.s.makeReady(t)
}

func (c *Cond) remove(t *task) {
	for i, w := range c.waiters {
		if w == t {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}
