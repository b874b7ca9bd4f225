package metrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"bagua-net/internal/config"
	"bagua-net/internal/logger"

	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
)

func StartRemoteWrite(ctx context.Context, cfg config.MetricsExportConfig, m *Metrics, log *logger.Logger) {
	if !cfg.Enabled || cfg.RemoteWriteURL == "" {
		return
	}
	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	token := config.ResolveSecret(cfg.BearerToken)
	client := &http.Client{Timeout: 5 * time.Second}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := sendSnapshot(ctx, client, cfg.RemoteWriteURL, token, m.Snapshot()); err != nil {
					log.Warn("remote write failed", map[string]any{"url": cfg.RemoteWriteURL, "err": err.Error()})
				}
			}
		}
	}()
}

func sendSnapshot(ctx context.Context, client *http.Client, url, token string, snap Snapshot) error {
	now := time.Now().UnixMilli()
	series := []prompb.TimeSeries{
		newSeries("bagua_net_bytes_sent_total", snap.BytesSent, now),
		newSeries("bagua_net_bytes_received_total", snap.BytesReceived, now),
		newSeries("bagua_net_requests_completed_total", snap.RequestsCompleted, now),
		newSeries("bagua_net_requests_failed_total", snap.RequestsFailed, now),
		newSeries("bagua_net_errors_total", snap.Errors, now),
	}
	kinds := make([]string, 0, len(snap.Opened))
	for kind := range snap.Opened {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		series = append(series, newSeries("bagua_net_comms_open", snap.Open(kind), now, prompb.Label{Name: "kind", Value: kind}))
	}

	req := &prompb.WriteRequest{Timeseries: series}
	data, err := req.Marshal()
	if err != nil {
		return fmt.Errorf("marshal write request: %w", err)
	}
	compressed := snappy.Encode(nil, data)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(compressed))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("remote write: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// newSeries builds a single-sample series. Labels must sort after __name__.
func newSeries(name string, value uint64, ts int64, labels ...prompb.Label) prompb.TimeSeries {
	return prompb.TimeSeries{
		Labels:  append([]prompb.Label{{Name: "__name__", Value: name}}, labels...),
		Samples: []prompb.Sample{{Value: float64(value), Timestamp: ts}},
	}
}
