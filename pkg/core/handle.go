package core

import (
	"sync"

	"github.com/fluxorio/localnet/pkg/core/concurrency"
)

// Handle is the user-facing reference to a node. The handle returned by Spawn
// owns the worker's lifetime; any number of additional non-owner handles may
// be built from the same address with Connect and used concurrently from any
// goroutine.
type Handle struct {
	addr  concurrency.Addr
	owner bool
	done  chan struct{}
	once  sync.Once
}

// Connect builds a non-owner handle onto an existing node's mailbox. Closing
// it has no effect on the node.
func Connect(addr concurrency.Addr) *Handle {
	return &Handle{addr: addr}
}

// Addr exposes the underlying mailbox address, e.g. to hand to another node
// or to Connect from another goroutine.
func (h *Handle) Addr() concurrency.Addr {
	return h.addr
}

// IsOwner reports whether closing this handle tears the node down.
func (h *Handle) IsOwner() bool {
	return h.owner
}

// Close tears down the node when called on the owner handle: it sends the
// termination signal and blocks until the worker has exited, which happens
// after the event loop's current iteration. Suspended dispatch tasks are
// discarded. On a non-owner handle Close is a no-op. Close is idempotent.
func (h *Handle) Close() error {
	if !h.owner {
		return nil
	}
	h.once.Do(func() {
		if mb, err := concurrency.Lookup(h.addr); err == nil {
			_ = mb.Send(ownerTerminated{})
		}
		<-h.done
	})
	return nil
}
