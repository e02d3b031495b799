package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fluxorio/localnet/pkg/core/concurrency"
	"github.com/fluxorio/localnet/pkg/core/failfast"
	"github.com/fluxorio/localnet/pkg/core/sched"
)

// nodeRuntime is the per-node state: one mailbox, one scheduler, one pending
// table, one service object. It lives entirely on the node's worker; only the
// mailbox is touched from outside.
type nodeRuntime struct {
	mb      concurrency.Mailbox
	sched   *sched.Scheduler
	pending *pendingTable
	logger  Logger
	metrics Metrics
}

// SpawnOption configures a node at spawn time.
type SpawnOption func(*spawnConfig)

type spawnConfig struct {
	logger  Logger
	metrics Metrics
}

// WithLogger sets the logger for the node runtime.
func WithLogger(l Logger) SpawnOption {
	return func(c *spawnConfig) { c.logger = l }
}

// WithMetrics attaches a metrics sink to the node runtime.
func WithMetrics(m Metrics) SpawnOption {
	return func(c *spawnConfig) { c.metrics = m }
}

// Spawn starts a new node and returns its owner handle. The factory runs on
// the node's worker, so the service object is created, used, and finalized on
// the same side; it is never touched by the spawning goroutine.
func Spawn(factory func() Dispatcher, opts ...SpawnOption) *Handle {
	failfast.NotNil(factory, "factory")
	cfg := spawnConfig{logger: NewDefaultLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	mb := concurrency.New()
	h := &Handle{addr: mb.Addr(), owner: true, done: make(chan struct{})}
	go runNode(mb, factory, cfg, h.done)
	return h
}

// runNode is the worker body: construct the service object, run the event
// loop inside a fresh scheduler, then finalize and unregister.
func runNode(mb concurrency.Mailbox, factory func() Dispatcher, cfg spawnConfig, done chan struct{}) {
	defer close(done)
	defer mb.Close()

	logger := cfg.logger.WithFields(map[string]any{"node": mb.Addr().String()})
	if cfg.metrics != nil {
		cfg.metrics.NodeStarted()
		defer cfg.metrics.NodeStopped()
	}

	disp := factory()
	failfast.NotNil(disp, "dispatcher")
	defer finalize(disp, logger)

	s := sched.New()
	rt := &nodeRuntime{
		mb:      mb,
		sched:   s,
		pending: newPendingTable(s),
		logger:  logger,
		metrics: cfg.metrics,
	}

	logger.Debug("node started")
	err := s.Run(func() { rt.mainLoop(disp) })
	switch {
	case err == nil, errors.Is(err, sched.ErrStopped):
		logger.Debug("node stopped")
	default:
		logger.Errorf("node terminated abnormally: %v", err)
	}
}

func finalize(disp Dispatcher, logger Logger) {
	if closer, ok := disp.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Warnf("service finalizer failed: %v", err)
		}
	}
}

// mainLoop is the event loop task. Exactly one message is consumed per
// iteration, and the loop yields after routing each one so spawned dispatch
// tasks make progress between inbound messages.
func (rt *nodeRuntime) mainLoop(disp Dispatcher) {
	for {
		msg, ok, err := rt.mb.TryRecv()
		if err != nil {
			// Mailbox closed out from under the loop; treat as shutdown.
			rt.sched.Stop()
			return
		}
		if !ok {
			rt.sched.WaitChan(rt.mb.Signal())
			continue
		}

		switch m := msg.(type) {
		case Response:
			rt.pending.complete(m.ID, m)
		case Command:
			cmd := m
			rt.sched.Spawn(func() { rt.dispatch(cmd, disp) })
			rt.sched.Yield()
		case ownerTerminated:
			rt.sched.Stop()
			return
		default:
			failfast.If(false, "mailbox received unknown message type %T", msg)
		}
	}
}

// dispatch serves one inbound command as its own scheduler task. It sends
// exactly one response per command: the encoded return value on success, the
// failure text otherwise. Service panics are isolated into failure responses;
// unknown methods and scheduler unwinds pass through.
func (rt *nodeRuntime) dispatch(cmd Command, disp Dispatcher) {
	start := time.Now()

	var payload []byte
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				if sched.IsAbort(r) {
					panic(r)
				}
				err = fmt.Errorf("method %s panicked: %v", cmd.Method, r)
			}
		}()
		ctx := withRuntime(context.Background(), rt)
		payload, err = disp.Dispatch(ctx, cmd.Method, cmd.Payload)
	}()

	if err != nil && errors.Is(err, ErrUnknownMethod) {
		// Mismatched dispatch tables are a wiring defect, not a failure the
		// caller can act on.
		failfast.Err(err)
	}

	resp := Response{OK: err == nil, ID: cmd.ID}
	outcome := "ok"
	if err != nil {
		resp.Payload = []byte(err.Error())
		outcome = "error"
	} else {
		resp.Payload = payload
	}

	if rt.metrics != nil {
		rt.metrics.CommandDispatched(cmd.Method, outcome, time.Since(start).Seconds())
		rt.metrics.PendingSlots(rt.pending.busyCount())
	}

	origin, lookupErr := concurrency.Lookup(cmd.Origin)
	if lookupErr != nil {
		rt.logger.Debugf("dropping response for %s: origin %s is gone", cmd.Method, cmd.Origin)
		return
	}
	if sendErr := origin.Send(resp); sendErr != nil {
		rt.logger.Debugf("dropping response for %s: %v", cmd.Method, sendErr)
	}
}

// call is the re-entrant outbound path: allocate a pending slot, send the
// command carrying the slot index as its id, and suspend the current task
// until the event loop fills the slot.
func (rt *nodeRuntime) call(target concurrency.Mailbox, method string, payload []byte, cfg callConfig) ([]byte, error) {
	id, sl := rt.pending.allocate()
	cmd := Command{Origin: rt.mb.Addr(), ID: id, Method: method, Payload: payload}
	if err := target.Send(cmd); err != nil {
		rt.pending.abandon(id)
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	if cfg.timeout > 0 {
		if !sl.cond.WaitTimeout(cfg.timeout) {
			// The slot stays allocated: a late response may still arrive and
			// must not be treated as a protocol violation.
			return nil, fmt.Errorf("%s: %w", method, ErrCallTimeout)
		}
	} else {
		sl.cond.Wait()
	}

	resp := rt.pending.take(id)
	if !resp.OK {
		return nil, &RemoteError{Text: string(resp.Payload)}
	}
	return resp.Payload, nil
}
