package metrics

import (
	"errors"
	"testing"

	"bagua-net/pkg/backend"
	"bagua-net/pkg/errs"

	"github.com/prometheus/client_golang/prometheus"
)

var _ backend.Recorder = (*Metrics)(nil)

func TestMetricsSnapshot(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	m.CommOpened("listen")
	m.CommOpened("send")
	m.CommOpened("send")
	m.CommClosed("send")
	m.RequestDone("send", 150, nil)
	m.RequestDone("recv", 100, nil)
	m.RequestDone("recv", 7, errs.IO("recv", errors.New("reset")))
	m.OpFailed("close_send", errs.NotFound("close_send", "gone"))
	m.OpFailed("connect", nil)

	s := m.Snapshot()
	if s.Open("send") != 1 || s.Open("listen") != 1 || s.Open("recv") != 0 {
		t.Fatalf("unexpected open counts: opened %v closed %v", s.Opened, s.Closed)
	}
	if s.BytesSent != 150 {
		t.Fatalf("expected bytes sent 150, got %d", s.BytesSent)
	}
	if s.BytesReceived != 107 {
		t.Fatalf("expected bytes received 107, got %d", s.BytesReceived)
	}
	if s.RequestsCompleted != 2 || s.RequestsFailed != 1 {
		t.Fatalf("unexpected request counts %d/%d", s.RequestsCompleted, s.RequestsFailed)
	}
	if s.Errors != 2 {
		t.Fatalf("expected errors 2, got %d", s.Errors)
	}
	if s.ErrorsByKind["io"] != 1 || s.ErrorsByKind["not_found"] != 1 {
		t.Fatalf("unexpected errors by kind %v", s.ErrorsByKind)
	}
}

// gathered returns the value of the series name whose labels include all
// of want.
func gathered(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue next
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("series %s %v not found", name, want)
	return 0
}

func TestPrometheusCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)
	m.CommOpened("recv")
	m.CommOpened("recv")
	m.CommClosed("recv")
	m.RequestDone("send", 10, nil)
	m.OpFailed("listen", errs.InvalidArgument("listen", "bad device"))

	if v := gathered(t, reg, "bagua_net_comms_open", map[string]string{"kind": "recv"}); v != 1 {
		t.Fatalf("expected 1 open recv comm, got %v", v)
	}
	if v := gathered(t, reg, "bagua_net_bytes_sent_total", nil); v != 10 {
		t.Fatalf("expected 10 bytes sent, got %v", v)
	}
	if v := gathered(t, reg, "bagua_net_requests_total", map[string]string{"op": "send", "result": "complete"}); v != 1 {
		t.Fatalf("expected 1 completed send, got %v", v)
	}
	if v := gathered(t, reg, "bagua_net_errors_total", map[string]string{"op": "listen", "kind": "invalid_argument"}); v != 1 {
		t.Fatalf("expected 1 listen error, got %v", v)
	}
}
