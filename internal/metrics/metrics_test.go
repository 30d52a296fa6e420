package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	// Create a new registry for isolated testing
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	if m == nil {
		t.Fatal("NewMetricsWithRegistry returned nil")
	}

	// Verify metrics are registered
	if m.PacketsReceived == nil {
		t.Error("PacketsReceived metric is nil")
	}
	if m.ClientsActive == nil {
		t.Error("ClientsActive metric is nil")
	}
	if m.StoreErrors == nil {
		t.Error("StoreErrors metric is nil")
	}
}

func TestRecordClientConnect(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordClientConnect()
	m.RecordClientConnect()
	m.RecordClientConnect()

	active := testutil.ToFloat64(m.ClientsActive)
	if active != 3 {
		t.Errorf("ClientsActive = %v, want 3", active)
	}

	total := testutil.ToFloat64(m.ClientsTotal)
	if total != 3 {
		t.Errorf("ClientsTotal = %v, want 3", total)
	}
}

func TestRecordClientRemoval(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordClientConnect()
	m.RecordClientConnect()
	m.RecordClientRemoval("timeout")

	active := testutil.ToFloat64(m.ClientsActive)
	if active != 1 {
		t.Errorf("ClientsActive = %v, want 1", active)
	}

	removals := testutil.ToFloat64(m.ClientRemovals.WithLabelValues("timeout"))
	if removals != 1 {
		t.Errorf("ClientRemovals[timeout] = %v, want 1", removals)
	}
}

func TestRecordFrameReceived(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordFrameReceived("VOICE")
	m.RecordFrameReceived("VOICE")
	m.RecordFrameReceived("DATA")

	voice := testutil.ToFloat64(m.FramesByType.WithLabelValues("VOICE"))
	if voice != 2 {
		t.Errorf("FramesByType[VOICE] = %v, want 2", voice)
	}

	data := testutil.ToFloat64(m.FramesByType.WithLabelValues("DATA"))
	if data != 1 {
		t.Errorf("FramesByType[DATA] = %v, want 1", data)
	}
}

func TestRecordStoreError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordStoreError("log_frame")
	m.RecordStoreError("log_frame")
	m.RecordStoreError("lookup_callsign")

	logFrame := testutil.ToFloat64(m.StoreErrors.WithLabelValues("log_frame"))
	if logFrame != 2 {
		t.Errorf("StoreErrors[log_frame] = %v, want 2", logFrame)
	}
}

func TestDefault_Singleton(t *testing.T) {
	m1 := Default()
	m2 := Default()
	if m1 != m2 {
		t.Error("Default() should return the same instance")
	}
}
