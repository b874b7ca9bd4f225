package logs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bagua-net/internal/logger"
)

func collector(t *testing.T) (*httptest.Server, chan []byte) {
	t.Helper()
	got := make(chan []byte, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- body
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestEmptyURLDisablesHooks(t *testing.T) {
	if NewLokiHook(context.Background(), "") != nil {
		t.Fatalf("expected nil loki hook")
	}
	if NewElasticHook(context.Background(), "") != nil {
		t.Fatalf("expected nil elastic hook")
	}
}

func TestLokiHookPushesStream(t *testing.T) {
	srv, got := collector(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logger.Nop()
	log.AddHook(NewLokiHook(ctx, srv.URL))
	log.Warn("request failed", map[string]any{"op": "send"})

	select {
	case body := <-got:
		var payload struct {
			Streams []struct {
				Stream map[string]string `json:"stream"`
				Values [][]string        `json:"values"`
			} `json:"streams"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(payload.Streams) != 1 || payload.Streams[0].Stream["app"] != "bagua-net" || payload.Streams[0].Stream["level"] != "warn" {
			t.Fatalf("unexpected stream %+v", payload.Streams)
		}
		var line map[string]any
		if err := json.Unmarshal([]byte(payload.Streams[0].Values[0][1]), &line); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		if line["msg"] != "request failed" || line["op"] != "send" {
			t.Fatalf("unexpected line %v", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected loki push")
	}
}

func TestElasticHookPostsDocument(t *testing.T) {
	srv, got := collector(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logger.Nop()
	log.AddHook(NewElasticHook(ctx, srv.URL))
	log.Info("listening", map[string]any{"addr": "10.0.0.1:5000"})

	select {
	case body := <-got:
		var doc map[string]any
		if err := json.Unmarshal(body, &doc); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if doc["msg"] != "listening" || doc["addr"] != "10.0.0.1:5000" {
			t.Fatalf("unexpected document %v", doc)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected elastic post")
	}
}

func TestFullQueueDrops(t *testing.T) {
	s := &shipper{queue: make(chan map[string]any, 1)}
	h := s.hook()
	h(map[string]any{"msg": "a"})
	h(map[string]any{"msg": "b"})
	if s.dropped.Load() != 1 {
		t.Fatalf("expected one dropped entry, got %d", s.dropped.Load())
	}
}
