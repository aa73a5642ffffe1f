package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/contentive/topic-analysis-service/internal/domain"
)

const (
	// sseQueryInterval is how often the stream polls the DB for
	// authoritative state between hub events.
	sseQueryInterval = 2 * time.Second
	// sseMaxDuration is the maximum time an SSE stream may remain open.
	sseMaxDuration = 4 * time.Hour
	// hubBufferSize is the per-subscriber event buffer.
	hubBufferSize = 100
)

// StreamEvent is one event pushed to connected operator clients. Every open
// tab of the operator UI receives the same stream, which is how a second tab
// learns about an analysis started or reset in the first.
type StreamEvent struct {
	EventType    string             `json:"event_type"`
	RequestID    string             `json:"request_id,omitempty"`
	Stage        string             `json:"stage,omitempty"`
	ContentCount int                `json:"content_count,omitempty"`
	Progress     *stageProgressData `json:"progress,omitempty"`
	Message      string             `json:"message,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
}

// EventHub fans state transition events out to all connected SSE clients.
type EventHub struct {
	mu     sync.RWMutex
	subs   map[chan StreamEvent]struct{}
	closed bool
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan StreamEvent]struct{})}
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called when the subscriber disconnects.
func (h *EventHub) Subscribe() (<-chan StreamEvent, func()) {
	ch := make(chan StreamEvent, hubBufferSize)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber. A subscriber with a full
// buffer misses the event rather than blocking the publisher; the periodic
// DB snapshot on its stream covers the gap.
func (h *EventHub) Publish(event StreamEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close disconnects all subscribers.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

// streamEvents handles GET /api/v1/analysis/events (SSE). Each connected
// client gets an initial snapshot, hub events as they happen, and a periodic
// authoritative snapshot from the DB.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeFailure(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	events, cancel := s.hub.Subscribe()
	defer cancel()

	sendSSEEvent(w, flusher, s.snapshotEvent(r, "stream_started"))

	deadlineTimer := time.NewTimer(sseMaxDuration)
	defer deadlineTimer.Stop()
	ticker := time.NewTicker(sseQueryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-deadlineTimer.C:
			sendSSEEvent(w, flusher, StreamEvent{
				EventType: "timeout",
				Message:   "stream max duration exceeded",
				Timestamp: time.Now().UTC(),
			})
			return

		case event, open := <-events:
			if !open {
				return
			}
			sendSSEEvent(w, flusher, event)

		case <-ticker.C:
			sendSSEEvent(w, flusher, s.snapshotEvent(r, "progress_update"))
		}
	}
}

// snapshotEvent builds an event from the authoritative DB state.
func (s *Server) snapshotEvent(r *http.Request, eventType string) StreamEvent {
	event := StreamEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}

	record, err := s.stateRepo.Get(r.Context())
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("failed to load analysis state for event stream")
		}
		event.Message = "idle"
		return event
	}

	event.RequestID = record.Request.RequestID
	event.Stage = string(record.Stage)
	event.ContentCount = record.Request.ContentCount
	switch record.Stage {
	case domain.StageSending:
		event.Progress = stageProgressToData(record.Sending)
	case domain.StageAnalyzing:
		event.Progress = stageProgressToData(record.Analyzing)
	default:
		event.Progress = stageProgressToData(record.Applying)
	}
	return event
}

// sendSSEEvent writes a single SSE event to the response writer.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event StreamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
	flusher.Flush()
}
