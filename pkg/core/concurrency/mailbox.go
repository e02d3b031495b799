// Package concurrency provides the mailbox layer: unbounded multi-producer /
// single-consumer queues identified by small transferable addresses.
package concurrency

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrMailboxClosed is returned when sending to or receiving from a
	// closed mailbox.
	ErrMailboxClosed = errors.New("mailbox is closed")

	// ErrMailboxNotFound is returned when an address does not resolve to a
	// live mailbox, typically because the owning node has shut down.
	ErrMailboxNotFound = errors.New("mailbox not found")
)

// Addr uniquely identifies a mailbox. It is a small comparable value: it may
// be copied freely, used as a map key, and carried inside message payloads.
type Addr struct {
	id uuid.UUID
}

func (a Addr) String() string {
	return a.id.String()
}

// IsZero reports whether a is the zero address, which never resolves.
func (a Addr) IsZero() bool {
	return a.id == uuid.Nil
}

// MarshalText implements encoding.TextMarshaler so addresses survive a trip
// through an encoded payload.
func (a Addr) MarshalText() ([]byte, error) {
	return []byte(a.id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Addr) UnmarshalText(text []byte) error {
	id, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	a.id = id
	return nil
}

// Mailbox is an unbounded FIFO queue drained by exactly one consumer. Send
// never blocks; delivery order between any single producer and the consumer
// is preserved.
type Mailbox interface {
	// Addr returns the registry address of this mailbox.
	Addr() Addr

	// Send enqueues msg. It is safe to call from any goroutine and returns
	// ErrMailboxClosed after Close.
	Send(msg any) error

	// Recv blocks the calling goroutine until a message is available or ctx
	// is done.
	Recv(ctx context.Context) (any, error)

	// TryRecv dequeues a message without blocking. The second result is
	// false when the queue is empty.
	TryRecv() (any, bool, error)

	// Signal returns a level-triggered wakeup channel: it delivers after a
	// Send to a previously observed-empty queue. A scheduler can select on
	// it instead of blocking in Recv.
	Signal() <-chan struct{}

	// Size returns the number of queued messages.
	Size() int

	// Close marks the mailbox dead and removes it from the registry.
	// Pending messages are discarded.
	Close()

	// IsClosed reports whether Close has been called.
	IsClosed() bool
}
