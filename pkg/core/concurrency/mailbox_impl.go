package concurrency

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// registry maps live addresses to their mailboxes. Mailboxes register on
// creation and unregister on Close, so a Lookup after node shutdown reports
// a dead mailbox instead of silently queueing into the void.
var registry = struct {
	sync.RWMutex
	boxes map[Addr]Mailbox
}{boxes: make(map[Addr]Mailbox)}

// New creates an unbounded mailbox and registers it under a fresh address.
func New() Mailbox {
	mb := &mailbox{
		addr: Addr{id: uuid.New()},
		sig:  make(chan struct{}, 1),
	}
	registry.Lock()
	registry.boxes[mb.addr] = mb
	registry.Unlock()
	return mb
}

// Lookup resolves addr to its live mailbox.
func Lookup(addr Addr) (Mailbox, error) {
	registry.RLock()
	mb, ok := registry.boxes[addr]
	registry.RUnlock()
	if !ok {
		return nil, ErrMailboxNotFound
	}
	return mb, nil
}

// mailbox is the unbounded queue behind Mailbox. A mutex-guarded slice keeps
// Send non-blocking regardless of queue depth; sig carries at most one wakeup
// token for the single consumer.
type mailbox struct {
	addr   Addr
	mu     sync.Mutex
	queue  []any
	closed bool
	sig    chan struct{}
}

func (mb *mailbox) Addr() Addr {
	return mb.addr
}

func (mb *mailbox) Send(msg any) error {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return ErrMailboxClosed
	}
	mb.queue = append(mb.queue, msg)
	mb.mu.Unlock()

	select {
	case mb.sig <- struct{}{}:
	default:
	}
	return nil
}

func (mb *mailbox) Recv(ctx context.Context) (any, error) {
	for {
		msg, ok, err := mb.TryRecv()
		if err != nil {
			return nil, err
		}
		if ok {
			return msg, nil
		}
		select {
		case <-mb.sig:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (mb *mailbox) TryRecv() (any, bool, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return nil, false, ErrMailboxClosed
	}
	if len(mb.queue) == 0 {
		return nil, false, nil
	}
	msg := mb.queue[0]
	mb.queue = mb.queue[1:]
	return msg, true, nil
}

func (mb *mailbox) Signal() <-chan struct{} {
	return mb.sig
}

func (mb *mailbox) Size() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.queue)
}

func (mb *mailbox) Close() {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return
	}
	mb.closed = true
	mb.queue = nil
	mb.mu.Unlock()

	registry.Lock()
	delete(registry.boxes, mb.addr)
	registry.Unlock()

	// Wake a consumer parked on the signal channel so it observes the close.
	select {
	case mb.sig <- struct{}{}:
	default:
	}
}

func (mb *mailbox) IsClosed() bool {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.closed
}
