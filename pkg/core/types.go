// Package core implements the per-node dispatch engine: the event loop, the
// pending-request table, and the client call path that together let an
// in-process node serve inbound calls while awaiting replies to outbound
// ones. Payload encoding and method tables live in the binding layer; the
// core moves opaque bytes.
package core

import (
	"context"
	"errors"

	"github.com/fluxorio/localnet/pkg/core/concurrency"
)

// SentinelID marks a request whose caller has no scheduler: it block-receives
// exactly one response on a private mailbox instead of correlating by id.
const SentinelID = ^uint64(0)

// Command is an inbound request. Immutable once sent.
type Command struct {
	// Origin is the mailbox the response must be sent to.
	Origin concurrency.Addr
	// ID correlates the response, or SentinelID for block-receive callers.
	ID uint64
	// Method identifies the operation in the receiver's dispatch table.
	Method string
	// Payload is the encoded argument tuple. Opaque to the core.
	Payload []byte
}

// Response is the reply to a Command.
type Response struct {
	// OK distinguishes a successful return from a failure.
	OK bool
	// ID is copied from the originating Command.
	ID uint64
	// Payload is the encoded return value when OK, otherwise the failure
	// text.
	Payload []byte
}

// ownerTerminated tells a node's event loop that its owner handle was closed.
type ownerTerminated struct{}

// Dispatcher is the server-side half of the binding layer: it resolves a
// method identifier, decodes the payload, invokes the service object, and
// encodes the result. The core consumes it abstractly.
type Dispatcher interface {
	Dispatch(ctx context.Context, method string, payload []byte) ([]byte, error)
}

// ErrUnknownMethod must be wrapped by Dispatch when the method identifier is
// not in the table. The node treats it as a programming error and aborts;
// mismatched dispatch tables are not a recoverable condition.
var ErrUnknownMethod = errors.New("unknown method")

// ErrCallTimeout is returned by a timed call that received no response in
// time. On the re-entrant path the pending slot stays allocated, since an
// out-of-order response may still arrive.
var ErrCallTimeout = errors.New("call timed out")

// RemoteError carries the textual failure reported by the remote method. The
// wire format is a success flag plus text; structured error taxonomy across
// the boundary is the binding layer's concern.
type RemoteError struct {
	Text string
}

func (e *RemoteError) Error() string {
	return e.Text
}

// Metrics receives harness-level observations from node runtimes. A nil
// Metrics disables collection.
type Metrics interface {
	NodeStarted()
	NodeStopped()
	CommandDispatched(method, outcome string, seconds float64)
	PendingSlots(n int)
}
