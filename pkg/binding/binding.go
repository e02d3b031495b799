// Package binding is the reference adapter between typed service interfaces
// and the opaque-payload core. It supplies the server-side dispatch table and
// the client-side invocation helpers; payloads are JSON argument tuples.
//
// Method identifiers must be unique per table. Overloads of the same name
// disambiguate by arity suffix, e.g. "recv@1" and "recv@2".
package binding

import (
	"context"
	"fmt"
	"io"

	"github.com/fluxorio/localnet/pkg/core"
	"github.com/fluxorio/localnet/pkg/core/failfast"
)

// HandlerFunc decodes a payload, invokes the method on the service object,
// and encodes the result. A returned error becomes a failure response.
type HandlerFunc func(ctx context.Context, svc any, payload []byte) ([]byte, error)

// Table maps method identifiers to handlers. Build it once per service
// interface and share it across every node implementing that interface.
type Table struct {
	methods map[string]HandlerFunc
}

// NewTable creates an empty dispatch table.
func NewTable() *Table {
	return &Table{methods: make(map[string]HandlerFunc)}
}

// Register adds a handler under the given method identifier.
func (t *Table) Register(method string, h HandlerFunc) error {
	failfast.NotNil(h, "handler")
	if _, dup := t.methods[method]; dup {
		return fmt.Errorf("method %q already registered", method)
	}
	t.methods[method] = h
	return nil
}

// MustRegister is Register for wiring done at init time, where a duplicate
// identifier is a programming error.
func (t *Table) MustRegister(method string, h HandlerFunc) *Table {
	failfast.Err(t.Register(method, h))
	return t
}

// Bind closes the table over a service object, yielding the Dispatcher a
// node consumes. The node finalizes the service on shutdown when it
// implements io.Closer.
func (t *Table) Bind(svc any) core.Dispatcher {
	return &boundDispatcher{table: t, svc: svc}
}

type boundDispatcher struct {
	table *Table
	svc   any
}

func (d *boundDispatcher) Dispatch(ctx context.Context, method string, payload []byte) ([]byte, error) {
	h, ok := d.table.methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownMethod, method)
	}
	return h(ctx, d.svc, payload)
}

func (d *boundDispatcher) Close() error {
	if closer, ok := d.svc.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Invoke is the client-side stub body: encode the arguments, call through the
// handle, and decode the reply into out. Pass a nil out for void methods.
func Invoke(ctx context.Context, h *core.Handle, method string, args []any, out any, opts ...core.CallOption) error {
	payload, err := EncodeArgs(args...)
	if err != nil {
		return fmt.Errorf("invoke %s: %w", method, err)
	}
	reply, err := h.Call(ctx, method, payload, opts...)
	if err != nil {
		return err
	}
	if out == nil || len(reply) == 0 {
		return nil
	}
	return DecodeResult(reply, out)
}
