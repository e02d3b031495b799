package core

import (
	"github.com/fluxorio/localnet/pkg/core/failfast"
	"github.com/fluxorio/localnet/pkg/core/sched"
)

// slot tracks one outstanding outbound request. It is busy from Allocate
// until Take; only the event loop fills the reply, and only while the owning
// task is suspended on cond.
type slot struct {
	cond   *sched.Cond
	busy   bool
	filled bool
	reply  Response
}

// pendingTable correlates outbound request ids with the tasks awaiting their
// replies. The id sent on the wire is the slot index. The table grows by
// appending and never shrinks: an outstanding caller holds its index as the
// public id, so indexes must stay stable for the node's lifetime.
//
// The table is confined to its node's scheduler, so it needs no locking.
type pendingTable struct {
	s     *sched.Scheduler
	slots []*slot
}

func newPendingTable(s *sched.Scheduler) *pendingTable {
	return &pendingTable{s: s}
}

// allocate claims the smallest non-busy slot, appending one if all are busy,
// and returns its index as the request id.
func (pt *pendingTable) allocate() (uint64, *slot) {
	for i, sl := range pt.slots {
		if !sl.busy {
			sl.busy = true
			sl.filled = false
			return uint64(i), sl
		}
	}
	sl := &slot{cond: pt.s.NewCond(), busy: true}
	pt.slots = append(pt.slots, sl)
	return uint64(len(pt.slots) - 1), sl
}

// complete stores the response and wakes the waiting task. Only the event
// loop calls this. A response for an id that is not busy, or a second
// response for the same id, is a protocol violation and aborts the node.
func (pt *pendingTable) complete(id uint64, resp Response) {
	failfast.If(id < uint64(len(pt.slots)), "response for request id %d this node never sent", id)
	sl := pt.slots[id]
	failfast.If(sl.busy, "response for request id %d with no outstanding call", id)
	failfast.If(!sl.filled, "duplicate response for request id %d", id)
	sl.reply = resp
	sl.filled = true
	sl.cond.Notify()
}

// take consumes the reply and frees the slot. Called by the client path right
// after its wait returns.
func (pt *pendingTable) take(id uint64) Response {
	sl := pt.slots[id]
	failfast.If(sl.busy && sl.filled, "take on request id %d without a stored response", id)
	resp := sl.reply
	sl.busy = false
	sl.filled = false
	sl.reply = Response{}
	return resp
}

// abandon frees a slot whose command was never delivered. The id was never on
// the wire, so no response can arrive for it.
func (pt *pendingTable) abandon(id uint64) {
	sl := pt.slots[id]
	sl.busy = false
	sl.filled = false
}

// busyCount reports the number of outstanding requests.
func (pt *pendingTable) busyCount() int {
	n := 0
	for _, sl := range pt.slots {
		if sl.busy {
			n++
		}
	}
	return n
}
