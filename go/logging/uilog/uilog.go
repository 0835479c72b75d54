// Package uilog captures gateway log lines into per-UI-session ring
// buffers so the UI can render a live request log without tailing files.
package uilog

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sovakpeter/lakegate/go/logging"
)

// Message is one captured log line, enriched with the request scope that
// was active when it was emitted.
type Message struct {
	Timestamp         float64 `json:"timestamp"`
	TimestampStr      string  `json:"timestamp_str"`
	Level             string  `json:"level"`
	Message           string  `json:"message"`
	CorrelationID     string  `json:"correlation_id"`
	UserEmail         string  `json:"user_email"`
	Scenario          string  `json:"scenario"`
	Phase             string  `json:"phase"`
	Table             string  `json:"table"`
	IsPhaseHeader     bool    `json:"is_phase_header"`
	IsRequestBoundary bool    `json:"is_request_boundary"`
}

// Buffer is a fixed-capacity ring of captured messages. Appending past
// capacity drops the oldest entry.
type Buffer struct {
	mu    sync.Mutex
	max   int
	items []Message
}

// NewBuffer returns a buffer holding at most max messages.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = 1
	}
	return &Buffer{max: max}
}

// Append adds a message, evicting the oldest when full.
func (b *Buffer) Append(m Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == b.max {
		copy(b.items, b.items[1:])
		b.items[len(b.items)-1] = m
		return
	}
	b.items = append(b.items, m)
}

// Snapshot returns a copy of the buffered messages, oldest first.
func (b *Buffer) Snapshot() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.items))
	copy(out, b.items)
	return out
}

// Tail returns messages newer than since. A zero since returns everything.
func (b *Buffer) Tail(since float64) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Message
	for _, m := range b.items {
		if since == 0 || m.Timestamp > since {
			out = append(out, m)
		}
	}
	return out
}

// Clear discards all buffered messages.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = b.items[:0]
}

// Len returns the number of buffered messages.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// session pairs a buffer with its capture toggle.
type session struct {
	enabled bool
	buffer  *Buffer
}

// Registry tracks one buffer per UI session.
type Registry struct {
	mu             sync.Mutex
	maxMessages    int
	enabledDefault bool
	sessions       map[string]*session
}

// NewRegistry returns a registry creating buffers of maxMessages capacity,
// enabled or not by default for new sessions.
func NewRegistry(maxMessages int, enabledDefault bool) *Registry {
	return &Registry{
		maxMessages:    maxMessages,
		enabledDefault: enabledDefault,
		sessions:       map[string]*session{},
	}
}

func (r *Registry) getOrCreate(sessionID string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		s = &session{enabled: r.enabledDefault, buffer: NewBuffer(r.maxMessages)}
		r.sessions[sessionID] = s
	}
	return s
}

// SetEnabled toggles capture for a session, creating it if needed.
func (r *Registry) SetEnabled(sessionID string, enabled bool) {
	s := r.getOrCreate(sessionID)
	r.mu.Lock()
	s.enabled = enabled
	r.mu.Unlock()
}

// Snapshot returns the captured messages for a session, nil when unknown.
func (r *Registry) Snapshot(sessionID string) []Message {
	r.mu.Lock()
	s := r.sessions[sessionID]
	r.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.buffer.Snapshot()
}

// Tail returns the session's messages newer than since.
func (r *Registry) Tail(sessionID string, since float64) []Message {
	r.mu.Lock()
	s := r.sessions[sessionID]
	r.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.buffer.Tail(since)
}

// Clear discards a session's captured messages.
func (r *Registry) Clear(sessionID string) {
	r.mu.Lock()
	s := r.sessions[sessionID]
	r.mu.Unlock()
	if s != nil {
		s.buffer.Clear()
	}
}

// Hook is a logrus hook routing entries into the buffer of the UI session
// recorded in the entry's request scope. Capture must never disturb normal
// logging, so Fire swallows its own failures.
type Hook struct {
	registry *Registry
	levels   []logrus.Level
}

// NewHook returns a capture hook at the given minimum level.
func NewHook(registry *Registry, minLevel logrus.Level) *Hook {
	var levels []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= minLevel {
			levels = append(levels, l)
		}
	}
	return &Hook{registry: registry, levels: levels}
}

// Levels implements logrus.Hook.
func (h *Hook) Levels() []logrus.Level { return h.levels }

// Fire implements logrus.Hook.
func (h *Hook) Fire(entry *logrus.Entry) error {
	defer func() { _ = recover() }()

	scope := logging.ScopeFrom(entry.Context)
	sessionID := scope.UISessionID
	if sessionID == "" {
		if v, ok := entry.Data["ui_session_id"].(string); ok {
			sessionID = v
		}
	}
	if sessionID == "" {
		return nil
	}

	s := h.registry.getOrCreate(sessionID)
	h.registry.mu.Lock()
	enabled := s.enabled
	h.registry.mu.Unlock()
	if !enabled {
		return nil
	}

	field := func(key string) string {
		if v, ok := entry.Data[key].(string); ok {
			return v
		}
		return ""
	}
	ts := entry.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	s.buffer.Append(Message{
		Timestamp:         float64(ts.UnixNano()) / float64(time.Second),
		TimestampStr:      ts.Format("15:04:05.000"),
		Level:             entry.Level.String(),
		Message:           entry.Message,
		CorrelationID:     field("correlation_id"),
		UserEmail:         field("user"),
		Scenario:          field("scenario"),
		Phase:             field("phase"),
		Table:             field("table"),
		IsPhaseHeader:     logging.IsPhaseHeader(entry.Message),
		IsRequestBoundary: logging.IsRequestBoundary(entry.Message),
	})
	return nil
}
