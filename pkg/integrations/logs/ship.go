// Package logs ships log entries to external collectors through logger
// hooks. Entries are queued and posted from a background goroutine, so a
// slow collector never stalls the caller; when the queue is full the entry
// is dropped.
package logs

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"bagua-net/internal/logger"
)

const queueSize = 256

type shipper struct {
	client  *http.Client
	build   func(entry map[string]any) (*http.Request, error)
	queue   chan map[string]any
	dropped atomic.Uint64
}

func newShipper(ctx context.Context, build func(map[string]any) (*http.Request, error)) *shipper {
	s := &shipper{
		client: &http.Client{Timeout: 3 * time.Second},
		build:  build,
		queue:  make(chan map[string]any, queueSize),
	}
	go s.run(ctx)
	return s
}

func (s *shipper) hook() logger.Hook {
	return func(entry map[string]any) {
		select {
		case s.queue <- entry:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *shipper) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-s.queue:
			req, err := s.build(entry)
			if err != nil {
				continue
			}
			resp, err := s.client.Do(req.WithContext(ctx))
			if err != nil {
				continue
			}
			resp.Body.Close()
		}
	}
}
