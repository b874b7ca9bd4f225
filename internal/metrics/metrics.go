package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"bagua-net/internal/config"
	"bagua-net/pkg/errs"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	CommsOpened    *prometheus.CounterVec
	CommsClosed    *prometheus.CounterVec
	CommsOpen      *prometheus.GaugeVec
	BytesSent      prometheus.Counter
	BytesReceived  prometheus.Counter
	Requests       *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
	bytesSent      atomic.Uint64
	bytesReceived  atomic.Uint64
	completedCount atomic.Uint64
	failedCount    atomic.Uint64
	errorsCount    atomic.Uint64
	mu             sync.Mutex
	opened         map[string]uint64
	closed         map[string]uint64
	errorsByKind   map[string]uint64
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bagua_net_comms_opened_total",
			Help: "Communicators opened by kind (listen, send, recv)",
		}, []string{"kind"}),
		CommsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bagua_net_comms_closed_total",
			Help: "Communicators closed by kind",
		}, []string{"kind"}),
		CommsOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bagua_net_comms_open",
			Help: "Currently open communicators by kind",
		}, []string{"kind"}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bagua_net_bytes_sent_total",
			Help: "Bytes moved by finished send requests",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bagua_net_bytes_received_total",
			Help: "Bytes moved by finished recv requests",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bagua_net_requests_total",
			Help: "Finished requests by op and result",
		}, []string{"op", "result"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bagua_net_errors_total",
			Help: "Failed operations by op and error kind",
		}, []string{"op", "kind"}),
		opened:       map[string]uint64{},
		closed:       map[string]uint64{},
		errorsByKind: map[string]uint64{},
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.CommsOpened,
		m.CommsClosed,
		m.CommsOpen,
		m.BytesSent,
		m.BytesReceived,
		m.Requests,
		m.ErrorsTotal,
	)
	return m
}

func (m *Metrics) CommOpened(kind string) {
	m.CommsOpened.WithLabelValues(kind).Inc()
	m.CommsOpen.WithLabelValues(kind).Inc()
	m.mu.Lock()
	m.opened[kind]++
	m.mu.Unlock()
}

func (m *Metrics) CommClosed(kind string) {
	m.CommsClosed.WithLabelValues(kind).Inc()
	m.CommsOpen.WithLabelValues(kind).Dec()
	m.mu.Lock()
	m.closed[kind]++
	m.mu.Unlock()
}

// RequestDone records a request that reached a terminal state. A failed
// request still counts the bytes it moved.
func (m *Metrics) RequestDone(op string, bytes int, err error) {
	if bytes > 0 {
		switch op {
		case "send":
			m.bytesSent.Add(uint64(bytes))
			m.BytesSent.Add(float64(bytes))
		case "recv":
			m.bytesReceived.Add(uint64(bytes))
			m.BytesReceived.Add(float64(bytes))
		}
	}
	result := "complete"
	if err != nil {
		result = "failed"
		m.failedCount.Add(1)
		m.OpFailed(op, err)
	} else {
		m.completedCount.Add(1)
	}
	m.Requests.WithLabelValues(op, result).Inc()
}

func (m *Metrics) OpFailed(op string, err error) {
	if err == nil {
		return
	}
	kind := errs.KindName(err)
	m.errorsCount.Add(1)
	m.ErrorsTotal.WithLabelValues(op, kind).Inc()
	m.mu.Lock()
	m.errorsByKind[kind]++
	m.mu.Unlock()
}

type Snapshot struct {
	Opened            map[string]uint64 `json:"opened"`
	Closed            map[string]uint64 `json:"closed"`
	BytesSent         uint64            `json:"bytes_sent"`
	BytesReceived     uint64            `json:"bytes_received"`
	RequestsCompleted uint64            `json:"requests_completed"`
	RequestsFailed    uint64            `json:"requests_failed"`
	Errors            uint64            `json:"errors"`
	ErrorsByKind      map[string]uint64 `json:"errors_by_kind"`
}

// Open is the number of communicators of kind currently open.
func (s Snapshot) Open(kind string) uint64 {
	o, c := s.Opened[kind], s.Closed[kind]
	if c > o {
		return 0
	}
	return o - c
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	opened := copyCounts(m.opened)
	closed := copyCounts(m.closed)
	byKind := copyCounts(m.errorsByKind)
	m.mu.Unlock()
	return Snapshot{
		Opened:            opened,
		Closed:            closed,
		BytesSent:         m.bytesSent.Load(),
		BytesReceived:     m.bytesReceived.Load(),
		RequestsCompleted: m.completedCount.Load(),
		RequestsFailed:    m.failedCount.Load(),
		Errors:            m.errorsCount.Load(),
		ErrorsByKind:      byKind,
	}
}

func StartServer(ctx context.Context, cfg config.MetricsConfig) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	srv := &http.Server{
		Addr:    cfg.Address,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
