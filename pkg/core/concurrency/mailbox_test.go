package concurrency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMailboxFIFO(t *testing.T) {
	mb := New()
	defer mb.Close()

	for i := 0; i < 10; i++ {
		if err := mb.Send(i); err != nil {
			t.Fatalf("Send(%d) error = %v", i, err)
		}
	}
	for i := 0; i < 10; i++ {
		msg, ok, err := mb.TryRecv()
		if err != nil || !ok {
			t.Fatalf("TryRecv() = %v, %v, %v", msg, ok, err)
		}
		if msg != i {
			t.Fatalf("message %d = %v, want %d", i, msg, i)
		}
	}
	if _, ok, _ := mb.TryRecv(); ok {
		t.Error("TryRecv() on empty mailbox reported a message")
	}
}

func TestMailboxRecvBlocksUntilSend(t *testing.T) {
	mb := New()
	defer mb.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = mb.Send("hello")
	}()

	msg, err := mb.Recv(context.Background())
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if msg != "hello" {
		t.Fatalf("Recv() = %v, want hello", msg)
	}
}

func TestMailboxRecvContextCancelled(t *testing.T) {
	mb := New()
	defer mb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := mb.Recv(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Recv() error = %v, want DeadlineExceeded", err)
	}
}

func TestMailboxMultiProducerPerSenderOrder(t *testing.T) {
	mb := New()
	defer mb.Close()

	const senders = 4
	const perSender = 50

	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_ = mb.Send(fmt.Sprintf("%d:%d", s, i))
			}
		}(s)
	}
	wg.Wait()

	last := make(map[string]int)
	for s := 0; s < senders; s++ {
		last[fmt.Sprint(s)] = -1
	}
	for n := 0; n < senders*perSender; n++ {
		msg, ok, err := mb.TryRecv()
		if err != nil || !ok {
			t.Fatalf("TryRecv() after %d messages = %v, %v", n, ok, err)
		}
		var sender, seq int
		if _, err := fmt.Sscanf(msg.(string), "%d:%d", &sender, &seq); err != nil {
			t.Fatal(err)
		}
		key := fmt.Sprint(sender)
		if seq != last[key]+1 {
			t.Fatalf("sender %d delivered %d after %d", sender, seq, last[key])
		}
		last[key] = seq
	}
}

func TestMailboxClose(t *testing.T) {
	mb := New()
	addr := mb.Addr()
	mb.Close()

	if err := mb.Send("x"); !errors.Is(err, ErrMailboxClosed) {
		t.Errorf("Send() after close error = %v, want ErrMailboxClosed", err)
	}
	if _, _, err := mb.TryRecv(); !errors.Is(err, ErrMailboxClosed) {
		t.Errorf("TryRecv() after close error = %v, want ErrMailboxClosed", err)
	}
	if _, err := Lookup(addr); !errors.Is(err, ErrMailboxNotFound) {
		t.Errorf("Lookup() after close error = %v, want ErrMailboxNotFound", err)
	}

	// Idempotent.
	mb.Close()
}

func TestRegistryLookup(t *testing.T) {
	mb := New()
	defer mb.Close()

	got, err := Lookup(mb.Addr())
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got.Addr() != mb.Addr() {
		t.Errorf("Lookup() resolved %v, want %v", got.Addr(), mb.Addr())
	}

	if _, err := Lookup(Addr{}); !errors.Is(err, ErrMailboxNotFound) {
		t.Errorf("Lookup(zero) error = %v, want ErrMailboxNotFound", err)
	}
}

func TestSignalWakesAfterSend(t *testing.T) {
	mb := New()
	defer mb.Close()

	select {
	case <-mb.Signal():
		t.Fatal("signal fired before any send")
	default:
	}

	_ = mb.Send(1)
	select {
	case <-mb.Signal():
	case <-time.After(time.Second):
		t.Fatal("signal did not fire after send")
	}
}

func TestAddrRoundTripsThroughText(t *testing.T) {
	mb := New()
	defer mb.Close()

	text, err := mb.Addr().MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	var back Addr
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if back != mb.Addr() {
		t.Errorf("round trip = %v, want %v", back, mb.Addr())
	}
}
