// Package localnet is the harness entry point: spawn networks of
// nominally-remote service objects inside one process and drive them from
// test code. Every node runs behind a handle whose calls go through the
// message-passing core, so multi-node topologies — including ones that call
// each other in cycles — exercise real concurrency without sockets.
package localnet

import (
	"context"
	"time"

	"github.com/fluxorio/localnet/pkg/binding"
	"github.com/fluxorio/localnet/pkg/config"
	"github.com/fluxorio/localnet/pkg/core"
	"github.com/fluxorio/localnet/pkg/core/concurrency"
	obsprom "github.com/fluxorio/localnet/pkg/observability/prometheus"
)

// Handle re-exports the core handle type.
type Handle = core.Handle

// Addr re-exports the mailbox address type.
type Addr = concurrency.Addr

// Harness shares spawn-time wiring — logger, metrics, default timeouts —
// across the nodes of a test. The zero value is not usable; use New.
type Harness struct {
	opts    config.Options
	logger  core.Logger
	metrics core.Metrics
}

// New builds a harness from options.
func New(opts config.Options) *Harness {
	h := &Harness{
		opts: opts,
		logger: core.NewLogger(core.LoggerConfig{
			JSONOutput: opts.LogJSON,
			Level:      opts.LogLevel,
		}),
	}
	if opts.Metrics {
		h.metrics = obsprom.GetMetrics()
	}
	return h
}

// NewDefault builds a harness from the default options with environment
// overrides applied.
func NewDefault() (*Harness, error) {
	opts, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return New(opts), nil
}

// Spawn starts a node serving the given dispatch table. The factory runs on
// the node's worker so the service object never leaves it. The returned
// handle owns the node: closing it tears the worker down.
func (h *Harness) Spawn(table *binding.Table, factory func() any) *Handle {
	spawnOpts := []core.SpawnOption{core.WithLogger(h.logger)}
	if h.metrics != nil {
		spawnOpts = append(spawnOpts, core.WithMetrics(h.metrics))
	}
	return core.Spawn(func() core.Dispatcher { return table.Bind(factory()) }, spawnOpts...)
}

// Connect builds a non-owner handle onto an existing node.
func (h *Harness) Connect(addr Addr) *Handle {
	return core.Connect(addr)
}

// Invoke calls a method through the handle using the harness's default call
// timeout. Pass a nil out for void methods.
func (h *Harness) Invoke(ctx context.Context, target *Handle, method string, args []any, out any) error {
	var opts []core.CallOption
	if d := h.opts.DefaultCallTimeout.Std(); d > 0 {
		opts = append(opts, core.WithTimeout(d))
	}
	return binding.Invoke(ctx, target, method, args, out, opts...)
}

// Spawn starts a node with default wiring, for tests that need no shared
// harness state.
func Spawn(table *binding.Table, factory func() any) *Handle {
	return New(config.Default()).Spawn(table, factory)
}

// Connect builds a non-owner handle onto an existing node.
func Connect(addr Addr) *Handle {
	return core.Connect(addr)
}

// WithTimeout re-exports the per-call timeout option.
func WithTimeout(d time.Duration) core.CallOption {
	return core.WithTimeout(d)
}
