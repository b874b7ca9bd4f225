package observability

import (
	"sync"

	"bagua-net/internal/logger"
)

// Event is a captured log entry.
type Event struct {
	Timestamp string         `json:"ts"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Store keeps the most recent events up to its limit.
type Store struct {
	mu     sync.Mutex
	limit  int
	events []Event
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{
		limit:  limit,
		events: make([]Event, 0, limit),
	}
}

func (s *Store) Add(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	if len(s.events) > s.limit {
		s.events = append([]Event{}, s.events[len(s.events)-s.limit:]...)
	}
}

func (s *Store) List() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0, len(s.events))
	out = append(out, s.events...)
	return out
}

func (s *Store) Limit() int {
	return s.limit
}

// Hook returns a logger hook that records warn and error entries.
func (s *Store) Hook() logger.Hook {
	return func(entry map[string]any) {
		level, _ := entry["level"].(string)
		if level != "warn" && level != "error" {
			return
		}
		ev := Event{Level: level}
		ev.Timestamp, _ = entry["ts"].(string)
		ev.Message, _ = entry["msg"].(string)
		for k, v := range entry {
			if k == "ts" || k == "level" || k == "msg" {
				continue
			}
			if ev.Fields == nil {
				ev.Fields = map[string]any{}
			}
			ev.Fields[k] = v
		}
		s.Add(ev)
	}
}
