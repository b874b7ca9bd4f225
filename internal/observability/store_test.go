package observability

import (
	"testing"

	"bagua-net/internal/logger"
)

func TestStoreAddsAndLimits(t *testing.T) {
	store := NewStore(2)
	store.Add(Event{Message: "a"})
	store.Add(Event{Message: "b"})
	store.Add(Event{Message: "c"})

	events := store.List()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Message != "b" || events[1].Message != "c" {
		t.Fatalf("unexpected event order: %v", events)
	}
}

func TestStoreDefaultLimit(t *testing.T) {
	store := NewStore(0)
	if store.Limit() != 1000 {
		t.Fatalf("expected default limit 1000, got %d", store.Limit())
	}
}

func TestStoreHookKeepsWarnings(t *testing.T) {
	store := NewStore(10)
	log := logger.Nop()
	log.AddHook(store.Hook())

	log.Info("listening", map[string]any{"addr": "10.0.0.1:1234"})
	log.Warn("request failed", map[string]any{"op": "send", "kind": "io"})
	log.Error("api server error", nil)

	events := store.List()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Level != "warn" || events[0].Message != "request failed" || events[0].Fields["kind"] != "io" {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].Level != "error" || events[1].Fields != nil {
		t.Fatalf("unexpected second event %+v", events[1])
	}
	if events[0].Timestamp == "" {
		t.Fatalf("missing timestamp")
	}
}
