package sched

import (
	"errors"
	"testing"
	"time"
)

func TestRunDrainsSpawnedTasks(t *testing.T) {
	s := New()
	var order []string

	err := s.Run(func() {
		order = append(order, "entry")
		s.Spawn(func() { order = append(order, "a") })
		s.Spawn(func() { order = append(order, "b") })
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"entry", "a", "b"}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestYieldInterleavesTasks(t *testing.T) {
	s := New()
	var order []string

	err := s.Run(func() {
		s.Spawn(func() { order = append(order, "task") })
		order = append(order, "entry-before")
		s.Yield()
		order = append(order, "entry-after")
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"entry-before", "task", "entry-after"}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestCondWaitNotify(t *testing.T) {
	s := New()
	var order []string

	err := s.Run(func() {
		c := s.NewCond()
		s.Spawn(func() {
			order = append(order, "waiter-sleep")
			c.Wait()
			order = append(order, "waiter-woke")
		})
		s.Yield() // let the waiter park
		order = append(order, "notify")
		c.Notify()
		order = append(order, "notifier-resumed")
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"waiter-sleep", "notify", "waiter-woke", "notifier-resumed"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestCondNotifyAll(t *testing.T) {
	s := New()
	woken := 0

	err := s.Run(func() {
		c := s.NewCond()
		for i := 0; i < 3; i++ {
			s.Spawn(func() {
				c.Wait()
				woken++
			})
		}
		s.Yield()
		c.NotifyAll()
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if woken != 3 {
		t.Fatalf("woken = %d, want 3", woken)
	}
}

func TestCondWaitTimeoutExpires(t *testing.T) {
	s := New()
	var notified bool

	start := time.Now()
	err := s.Run(func() {
		c := s.NewCond()
		notified = c.WaitTimeout(30 * time.Millisecond)
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if notified {
		t.Error("WaitTimeout() = true, want false")
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("returned after %v, want at least 30ms", elapsed)
	}
}

func TestCondWaitTimeoutNotifiedEarly(t *testing.T) {
	s := New()
	var notified bool

	err := s.Run(func() {
		c := s.NewCond()
		s.Spawn(func() { c.Notify() })
		notified = c.WaitTimeout(time.Second)
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !notified {
		t.Error("WaitTimeout() = false, want true")
	}
}

func TestStopUnwindsSuspendedTasks(t *testing.T) {
	s := New()
	resumed := false

	err := s.Run(func() {
		c := s.NewCond()
		s.Spawn(func() {
			c.Wait() // never notified
			resumed = true
		})
		s.Yield()
		s.Stop()
	})
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Run() error = %v, want ErrStopped", err)
	}
	if resumed {
		t.Error("suspended task resumed past its wait during unwind")
	}
}

func TestTaskPanicPropagates(t *testing.T) {
	s := New()

	err := s.Run(func() {
		s.Spawn(func() { panic("kaboom") })
	})
	var tp *TaskPanicError
	if !errors.As(err, &tp) {
		t.Fatalf("Run() error = %v, want *TaskPanicError", err)
	}
	if tp.Value != "kaboom" {
		t.Errorf("panic value = %v, want kaboom", tp.Value)
	}
}

func TestTaskPanicUnwindsOtherTasks(t *testing.T) {
	s := New()

	err := s.Run(func() {
		c := s.NewCond()
		s.Spawn(func() { c.Wait() })
		s.Yield()
		panic("entry failed")
	})
	var tp *TaskPanicError
	if !errors.As(err, &tp) {
		t.Fatalf("Run() error = %v, want *TaskPanicError", err)
	}
}

func TestWaitChanResumesOnExternalEvent(t *testing.T) {
	s := New()
	ch := make(chan struct{}, 1)
	resumed := false

	go func() {
		time.Sleep(20 * time.Millisecond)
		ch <- struct{}{}
	}()

	err := s.Run(func() {
		s.WaitChan(ch)
		resumed = true
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !resumed {
		t.Error("task did not resume after channel fired")
	}
}

func TestWaitChanAlreadyFired(t *testing.T) {
	s := New()
	ch := make(chan struct{}, 1)
	ch <- struct{}{}

	err := s.Run(func() {
		s.WaitChan(ch)
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestDeadlockDetected(t *testing.T) {
	s := New()

	err := s.Run(func() {
		c := s.NewCond()
		s.Spawn(func() { c.Wait() })
	})
	if !errors.Is(err, ErrDeadlock) {
		t.Fatalf("Run() error = %v, want ErrDeadlock", err)
	}
}

func TestRunWhileRunningFails(t *testing.T) {
	s := New()
	var nested error

	err := s.Run(func() {
		nested = s.Run(func() {})
	})
	if err != nil {
		t.Fatalf("outer Run() error = %v", err)
	}
	if nested == nil {
		t.Fatal("nested Run() succeeded, want error")
	}
}
