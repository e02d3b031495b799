package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.NodeStarted()
	m.NodeStarted()
	m.NodeStopped()
	m.CommandDispatched("echo", "ok", 0.001)
	m.CommandDispatched("echo", "error", 0.002)
	m.PendingSlots(3)

	if got := testutil.ToFloat64(m.NodesLive); got != 1 {
		t.Errorf("NodesLive = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.NodesSpawnedTotal); got != 2 {
		t.Errorf("NodesSpawnedTotal = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CommandsTotal.WithLabelValues("echo", "ok")); got != 1 {
		t.Errorf("CommandsTotal{ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PendingSlotsInUse); got != 3 {
		t.Errorf("PendingSlotsInUse = %v, want 3", got)
	}
}

func TestGetMetricsShared(t *testing.T) {
	if GetMetrics() != GetMetrics() {
		t.Error("GetMetrics() returned distinct instances")
	}
}
