package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentive/topic-analysis-service/internal/domain"
)

func TestEventHub(t *testing.T) {
	t.Run("delivers events to subscribers", func(t *testing.T) {
		hub := NewEventHub()
		events, cancel := hub.Subscribe()
		defer cancel()

		hub.Publish(StreamEvent{EventType: "analysis_started", RequestID: "req-1"})

		select {
		case event := <-events:
			assert.Equal(t, "analysis_started", event.EventType)
			assert.Equal(t, "req-1", event.RequestID)
			assert.False(t, event.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("expected an event")
		}
	})

	t.Run("drops events when the buffer is full", func(t *testing.T) {
		hub := NewEventHub()
		events, cancel := hub.Subscribe()
		defer cancel()

		for i := 0; i < hubBufferSize+10; i++ {
			hub.Publish(StreamEvent{EventType: "progress_update"})
		}

		assert.Equal(t, hubBufferSize, len(events))
	})

	t.Run("cancel closes the subscriber channel", func(t *testing.T) {
		hub := NewEventHub()
		events, cancel := hub.Subscribe()
		cancel()
		cancel() // repeated cancel is a no-op

		_, open := <-events
		assert.False(t, open)

		// Publishing after cancel must not panic on the removed channel.
		hub.Publish(StreamEvent{EventType: "analysis_reset"})
	})

	t.Run("close disconnects all subscribers", func(t *testing.T) {
		hub := NewEventHub()
		first, cancelFirst := hub.Subscribe()
		second, _ := hub.Subscribe()
		defer cancelFirst()

		hub.Close()

		_, open := <-first
		assert.False(t, open)
		_, open = <-second
		assert.False(t, open)

		// Subscribing to a closed hub yields an already closed channel.
		late, cancelLate := hub.Subscribe()
		defer cancelLate()
		_, open = <-late
		assert.False(t, open)
	})
}

func waitForSubscriber(t *testing.T, hub *EventHub) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.subs)
		hub.mu.RUnlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no subscriber registered in time")
}

// noFlushWriter hides the recorder's Flush method so the handler sees a
// writer without streaming support.
type noFlushWriter struct {
	http.ResponseWriter
}

func TestStreamEvents(t *testing.T) {
	t.Run("streams the snapshot and hub events", func(t *testing.T) {
		s, deps := newTestServer(t)
		deps.stateRepo.getFn = func(_ context.Context) (*domain.ProgressRecord, error) {
			return activeRecord("req-1", domain.StageSending), nil
		}

		ctx, cancel := context.WithCancel(context.Background())
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/events", nil).WithContext(ctx)
		rec := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			defer close(done)
			s.streamEvents(rec, req)
		}()

		waitForSubscriber(t, s.hub)
		s.hub.Publish(StreamEvent{EventType: "stage_changed", RequestID: "req-1", Stage: "analyzing"})
		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("handler did not return after context cancellation")
		}

		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		assert.Equal(t, http.StatusOK, rec.Code)

		body := rec.Body.String()
		assert.Contains(t, body, "event: stream_started\n")
		assert.Contains(t, body, `"request_id":"req-1"`)
		assert.Contains(t, body, "event: stage_changed\n")
		assert.Contains(t, body, `"stage":"analyzing"`)
	})

	t.Run("reports idle without a tracked request", func(t *testing.T) {
		s, _ := newTestServer(t)

		ctx, cancel := context.WithCancel(context.Background())
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/events", nil).WithContext(ctx)
		rec := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			defer close(done)
			s.streamEvents(rec, req)
		}()

		waitForSubscriber(t, s.hub)
		cancel()
		<-done

		assert.Contains(t, rec.Body.String(), `"message":"idle"`)
	})

	t.Run("rejects writers without flush support", func(t *testing.T) {
		s, _ := newTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/events", nil)
		rec := httptest.NewRecorder()
		s.streamEvents(noFlushWriter{rec}, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
