// Package sched implements the cooperative task runtime that backs a node.
//
// A Scheduler serializes an arbitrary number of lightweight tasks so that at
// most one executes at any instant. Tasks are goroutines, but a task only runs
// while it holds the baton handed to it by the scheduler loop; it returns the
// baton at Yield, at a Cond wait, at WaitChan, or by finishing. Between those
// points execution is strictly serial, so scheduler and condition state need
// no locking.
package sched

import (
	"errors"
	"fmt"
	"reflect"
	"time"
)

var (
	// ErrStopped is returned by Run after Stop was requested.
	ErrStopped = errors.New("scheduler stopped")

	// ErrDeadlock is returned by Run when every remaining task is suspended
	// on a condition and no external event can wake any of them.
	ErrDeadlock = errors.New("scheduler deadlock: all tasks suspended")
)

// TaskPanicError wraps a value recovered from a task that panicked.
type TaskPanicError struct {
	Value any
}

func (e *TaskPanicError) Error() string {
	return fmt.Sprintf("task panic: %v", e.Value)
}

// abortToken is the value panicked through a parked task to unwind its stack
// when the scheduler shuts down. It never escapes the package: the task
// trampoline recovers it and reports a silent exit.
type abortToken struct{}

// IsAbort reports whether a recovered panic value is the scheduler's unwind
// token. Code that recovers panics inside a task (e.g. to isolate a handler)
// must re-panic such values so the unwind can complete.
func IsAbort(r any) bool {
	_, ok := r.(abortToken)
	return ok
}

type taskState int

const (
	stateReady taskState = iota
	stateRunning
	stateBlocked // suspended on a Cond or an external channel
	stateDone
)

type task struct {
	s     *Scheduler
	fn    func()
	baton chan batonMsg

	state    taskState
	waitCond *Cond           // non-nil while suspended on a condition
	waitChan <-chan struct{} // non-nil while suspended on an external channel
	deadline time.Time       // non-zero while in a timed wait
	notified bool            // set by Notify before the task is resumed
}

type batonMsg struct {
	abort bool
}

type parkReason int

const (
	parkYielded parkReason = iota
	parkBlocked
	parkDone
	parkFailed
	parkAborted
)

type parkEvent struct {
	t      *task
	reason parkReason
	panicV any
}

// Scheduler runs tasks one at a time on behalf of a single owning goroutine.
// All methods except Run must be called from inside a running task.
type Scheduler struct {
	ready   []*task
	tasks   map[*task]struct{}
	current *task
	park    chan parkEvent
	running bool
	stopReq bool
}

// New creates an idle scheduler.
func New() *Scheduler {
	return &Scheduler{
		tasks: make(map[*task]struct{}),
		park:  make(chan parkEvent),
	}
}

// Run takes over the calling goroutine, runs entry as the first task, and
// keeps scheduling until every task has completed. It returns nil on a clean
// drain, ErrStopped after Stop, ErrDeadlock if the remaining tasks can never
// be woken, or a *TaskPanicError when a task panicked.
func (s *Scheduler) Run(entry func()) error {
	if s.running {
		return errors.New("scheduler is already running")
	}
	s.running = true
	defer func() { s.running = false }()

	s.enqueue(entry)
	for {
		s.pollBlocked()

		if len(s.ready) > 0 {
			t := s.ready[0]
			s.ready = s.ready[1:]
			ev := s.resume(t, batonMsg{})
			if err := s.handlePark(ev); err != nil {
				s.unwindAll()
				return err
			}
			if s.stopReq {
				s.unwindAll()
				return ErrStopped
			}
			continue
		}

		if len(s.tasks) == 0 {
			return nil
		}

		// Nothing runnable. Every live task is blocked; sleep until an
		// external channel fires or a timed wait expires.
		if !s.blockOnEvents() {
			s.unwindAll()
			return ErrDeadlock
		}
	}
}

// Spawn adds fn to the ready set as a new task.
func (s *Scheduler) Spawn(fn func()) {
	s.mustBeInTask("Spawn")
	s.enqueue(fn)
}

// Yield returns control to the scheduler; the calling task re-enters the
// ready set behind any task that is already runnable.
func (s *Scheduler) Yield() {
	s.mustBeInTask("Yield")
	s.suspend(parkYielded)
}

// Stop requests shutdown. The calling task keeps running until it parks or
// returns; the scheduler then unwinds every remaining task and Run returns
// ErrStopped. Tasks suspended at a Cond or WaitChan are unwound without being
// resumed.
func (s *Scheduler) Stop() {
	s.mustBeInTask("Stop")
	s.stopReq = true
}

// WaitChan suspends the calling task until ch delivers or is closed. It is
// the bridge between the serialized task world and external event sources:
// the scheduler itself selects on ch whenever it runs out of runnable tasks.
func (s *Scheduler) WaitChan(ch <-chan struct{}) {
	s.mustBeInTask("WaitChan")
	t := s.current
	t.waitChan = ch
	s.suspend(parkBlocked)
	t.waitChan = nil
}

// enqueue creates the task and parks its goroutine on the first baton.
func (s *Scheduler) enqueue(fn func()) {
	t := &task{
		s:     s,
		fn:    fn,
		baton: make(chan batonMsg),
		state: stateReady,
	}
	s.tasks[t] = struct{}{}
	s.ready = append(s.ready, t)
	go t.main()
}

// resume hands the baton to t and blocks until t parks again.
func (s *Scheduler) resume(t *task, msg batonMsg) parkEvent {
	t.state = stateRunning
	s.current = t
	t.baton <- msg
	ev := <-s.park
	s.current = nil
	return ev
}

func (s *Scheduler) handlePark(ev parkEvent) error {
	t := ev.t
	switch ev.reason {
	case parkYielded:
		t.state = stateReady
		s.ready = append(s.ready, t)
	case parkBlocked:
		t.state = stateBlocked
	case parkDone, parkAborted:
		t.state = stateDone
		delete(s.tasks, t)
	case parkFailed:
		t.state = stateDone
		delete(s.tasks, t)
		return &TaskPanicError{Value: ev.panicV}
	}
	return nil
}

// pollBlocked moves blocked tasks whose external channel has already fired,
// or whose timed wait has expired, back to the ready set.
func (s *Scheduler) pollBlocked() {
	now := time.Now()
	for t := range s.tasks {
		if t.state != stateBlocked {
			continue
		}
		if t.waitChan != nil {
			select {
			case <-t.waitChan:
				s.makeReady(t)
			default:
			}
			continue
		}
		if !t.deadline.IsZero() && !now.Before(t.deadline) {
			t.waitCond.remove(t)
			s.makeReady(t)
		}
	}
}

// blockOnEvents sleeps until one blocked task becomes wakeable. It returns
// false when no blocked task has an external channel or a deadline, i.e. the
// scheduler is deadlocked.
func (s *Scheduler) blockOnEvents() bool {
	var chanTasks []*task
	var earliest time.Time
	for t := range s.tasks {
		if t.state != stateBlocked {
			continue
		}
		if t.waitChan != nil {
			chanTasks = append(chanTasks, t)
		} else if !t.deadline.IsZero() {
			if earliest.IsZero() || t.deadline.Before(earliest) {
				earliest = t.deadline
			}
		}
	}
	if len(chanTasks) == 0 && earliest.IsZero() {
		return false
	}

	cases := make([]reflect.SelectCase, 0, len(chanTasks)+1)
	for _, t := range chanTasks {
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(t.waitChan),
		})
	}
	var timer *time.Timer
	if !earliest.IsZero() {
		timer = time.NewTimer(time.Until(earliest))
		defer timer.Stop()
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(timer.C),
		})
	}

	chosen, _, _ := reflect.Select(cases)
	if chosen < len(chanTasks) {
		s.makeReady(chanTasks[chosen])
	}
	// A timer wake is handled by the pollBlocked pass on the next loop turn.
	return true
}

func (s *Scheduler) makeReady(t *task) {
	t.state = stateReady
	t.deadline = time.Time{}
	s.ready = append(s.ready, t)
}

// unwindAll aborts every task that is not already done. Each parked goroutine
// is resumed with an abort baton, panics internally with the unwind token,
// and acknowledges its exit before the next one is unwound.
func (s *Scheduler) unwindAll() {
	for t := range s.tasks {
		if t.state == stateDone {
			continue
		}
		t.baton <- batonMsg{abort: true}
		<-s.park
		t.state = stateDone
		delete(s.tasks, t)
	}
	s.ready = nil
	s.stopReq = false
}

// suspend parks the calling task and blocks until the scheduler resumes it.
// Called with the baton held.
func (s *Scheduler) suspend(reason parkReason) {
	t := s.current
	s.park <- parkEvent{t: t, reason: reason}
	msg := <-t.baton
	if msg.abort {
		panic(abortToken{})
	}
}

func (s *Scheduler) mustBeInTask(op string) {
	if s.current == nil {
		panic(fmt.Sprintf("sched: %s called from outside a running task", op))
	}
}

// main is the task trampoline: it waits for the first baton, runs fn, and
// reports the exit to the scheduler loop.
func (t *task) main() {
	if msg := <-t.baton; msg.abort {
		t.s.park <- parkEvent{t: t, reason: parkAborted}
		return
	}

	var panicV any
	aborted := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				if IsAbort(r) {
					aborted = true
				} else {
					panicV = r
				}
			}
		}()
		t.fn()
	}()

	switch {
	case aborted:
		t.s.park <- parkEvent{t: t, reason: parkAborted}
	case panicV != nil:
		t.s.park <- parkEvent{t: t, reason: parkFailed, panicV: panicV}
	default:
		t.s.park <- parkEvent{t: t, reason: parkDone}
	}
}
