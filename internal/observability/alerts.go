package observability

import (
	"context"
	"sync"
	"time"

	"bagua-net/internal/logger"
	"bagua-net/internal/metrics"
)

type AlertType string

const (
	AlertErrors         AlertType = "errors"
	AlertFailedRequests AlertType = "failed_requests"
)

type Alert struct {
	ID        string    `json:"id"`
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Value     uint64    `json:"value"`
	Threshold uint64    `json:"threshold"`
	Timestamp int64     `json:"timestamp"`
}

// AlertsConfig holds per-interval thresholds. Zero disables a check.
type AlertsConfig struct {
	ErrorsThreshold         uint64
	FailedRequestsThreshold uint64
}

type AlertStore struct {
	mu     sync.Mutex
	limit  int
	alerts []Alert
}

func NewAlertStore(limit int) *AlertStore {
	if limit <= 0 {
		limit = 1000
	}
	return &AlertStore{
		limit:  limit,
		alerts: make([]Alert, 0, limit),
	}
}

func (s *AlertStore) Add(alert Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	if len(s.alerts) > s.limit {
		s.alerts = append([]Alert{}, s.alerts[len(s.alerts)-s.limit:]...)
	}
}

func (s *AlertStore) List() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Alert, 0, len(s.alerts))
	out = append(out, s.alerts...)
	return out
}

func (s *AlertStore) Limit() int {
	return s.limit
}

func delta(prev, curr uint64) uint64 {
	if curr < prev {
		return 0
	}
	return curr - prev
}

func EvaluateAlerts(prev metrics.Snapshot, curr metrics.Snapshot, cfg AlertsConfig) []Alert {
	out := make([]Alert, 0, 2)
	now := time.Now().Unix()
	if cfg.ErrorsThreshold > 0 {
		d := delta(prev.Errors, curr.Errors)
		if d >= cfg.ErrorsThreshold {
			out = append(out, Alert{
				ID:        newAlertID(),
				Type:      AlertErrors,
				Message:   "errors threshold exceeded",
				Value:     d,
				Threshold: cfg.ErrorsThreshold,
				Timestamp: now,
			})
		}
	}
	if cfg.FailedRequestsThreshold > 0 {
		d := delta(prev.RequestsFailed, curr.RequestsFailed)
		if d >= cfg.FailedRequestsThreshold {
			out = append(out, Alert{
				ID:        newAlertID(),
				Type:      AlertFailedRequests,
				Message:   "failed requests threshold exceeded",
				Value:     d,
				Threshold: cfg.FailedRequestsThreshold,
				Timestamp: now,
			})
		}
	}
	return out
}

// StartAlerts compares metric snapshots every interval and records any
// threshold crossings until ctx is done.
func StartAlerts(ctx context.Context, interval time.Duration, cfg AlertsConfig, m *metrics.Metrics, store *AlertStore, log *logger.Logger) {
	if cfg.ErrorsThreshold == 0 && cfg.FailedRequestsThreshold == 0 {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	prev := m.Snapshot()
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				curr := m.Snapshot()
				for _, a := range EvaluateAlerts(prev, curr, cfg) {
					store.Add(a)
					log.Warn("alert", map[string]any{"type": string(a.Type), "value": a.Value, "threshold": a.Threshold})
				}
				prev = curr
			}
		}
	}()
}

func newAlertID() string {
	return time.Now().Format("20060102150405.000000000")
}
