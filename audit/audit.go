// Package audit defines the append-only audit sink consumed by the index
// and search services.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meghashyamc/caseindex/logger"
)

const (
	EventSearchQuery      = "search.query"
	EventIndexRebuild     = "search.index_rebuild"
	EventIndexUserRebuild = "search.index_user_rebuild"
	EventIndexEntity      = "search.index_entity"
	EventIndexRemove      = "search.index_remove"
	EventIndexOptimize    = "search.index_optimize"
	EventSavedSearch      = "search.saved_search"
)

const defaultBufferSize = 1024

type Event struct {
	ID           string         `json:"id"`
	Type         string         `json:"event_type"`
	UserID       int64          `json:"user_id"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Action       string         `json:"action"`
	Details      map[string]any `json:"details,omitempty"`
	Success      bool           `json:"success"`
	Error        string         `json:"error,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Sink records audit events. Record must never block or fail the caller.
type Sink interface {
	Record(event Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(Event) {}

// LogSink writes events as structured log lines from a background
// goroutine. Events are dropped when the buffer is full.
type LogSink struct {
	logger    logger.Logger
	events chan Event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewLogSink(logger logger.Logger) *LogSink {
	sink := &LogSink{
		logger: logger,
		events: make(chan Event, defaultBufferSize),
		done:   make(chan struct{}),
	}
	go sink.run()
	return sink
}

func (s *LogSink) Record(event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.logger.Warn("audit sink closed, dropping event", "event_type", event.Type, "resource_id", event.ResourceID)
		return
	}

	select {
	case s.events <- event:
	default:
		s.logger.Warn("audit buffer full, dropping event", "event_type", event.Type, "resource_id", event.ResourceID)
	}
}

// Close flushes buffered events. Later events are dropped.
func (s *LogSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	<-s.done
}

func (s *LogSink) run() {
	defer close(s.done)
	for event := range s.events {
		keyvals := []any{
			"audit_id", event.ID,
			"event_type", event.Type,
			"user_id", event.UserID,
			"resource_type", event.ResourceType,
			"resource_id", event.ResourceID,
			"action", event.Action,
			"success", event.Success,
			"timestamp", event.Timestamp.Format(time.RFC3339Nano),
		}
		if len(event.Details) > 0 {
			keyvals = append(keyvals, "details", event.Details)
		}
		if event.Error != "" {
			keyvals = append(keyvals, "err", event.Error)
		}
		s.logger.Info("audit", keyvals...)
	}
}
