package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fluxorio/localnet/pkg/core/concurrency"
	"github.com/fluxorio/localnet/pkg/core/failfast"
)

// CallOption configures a single call.
type CallOption func(*callConfig)

type callConfig struct {
	timeout time.Duration
}

// WithTimeout bounds the wait for the response. A timed-out re-entrant call
// leaves its pending slot allocated; the caller decides whether to retry or
// treat the node as failed.
func WithTimeout(d time.Duration) CallOption {
	return func(c *callConfig) { c.timeout = d }
}

// Call invokes method on the node behind this handle and returns the encoded
// result. The payload is opaque to the core; typed stubs in the binding layer
// wrap this.
//
// When ctx carries a node runtime — i.e. the caller is itself a dispatch task
// inside some node — the call correlates through that node's pending table
// and suspends only the calling task, keeping the node re-entrant. Otherwise
// the calling goroutine block-receives one response on a private mailbox.
//
// A failure response surfaces as *RemoteError carrying the remote failure
// text.
func (h *Handle) Call(ctx context.Context, method string, payload []byte, opts ...CallOption) ([]byte, error) {
	var cfg callConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	target, err := concurrency.Lookup(h.addr)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	if rt := runtimeFrom(ctx); rt != nil {
		return rt.call(target, method, payload, cfg)
	}
	return blockingCall(ctx, target, method, payload, cfg)
}

// blockingCall is the path for callers with no scheduler, e.g. a test's main
// goroutine: send with the sentinel id and block on a private reply mailbox
// for exactly one message, accepted unconditionally.
func blockingCall(ctx context.Context, target concurrency.Mailbox, method string, payload []byte, cfg callConfig) ([]byte, error) {
	reply := concurrency.New()
	defer reply.Close()

	cmd := Command{Origin: reply.Addr(), ID: SentinelID, Method: method, Payload: payload}
	if err := target.Send(cmd); err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	msg, err := reply.Recv(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", method, ErrCallTimeout)
		}
		return nil, fmt.Errorf("recv %s: %w", method, err)
	}

	resp, ok := msg.(Response)
	failfast.If(ok, "reply mailbox received %T instead of a response", msg)
	if !resp.OK {
		return nil, &RemoteError{Text: string(resp.Payload)}
	}
	return resp.Payload, nil
}
