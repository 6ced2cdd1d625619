package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/openshelf/bibsync-service/internal/events"
)

const (
	// sseHeartbeatInterval keeps idle streams alive through proxies.
	sseHeartbeatInterval = 15 * time.Second
	// sseMaxDuration is the maximum time an SSE stream may remain open.
	sseMaxDuration = 4 * time.Hour
)

// streamProgress handles GET /v1/sync/progress (SSE). The stream delivers
// incremental progress events for the active run and closes after the
// terminal completion event.
func (s *Server) streamProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ch, cancel := s.broadcaster.Subscribe()
	defer cancel()

	// Initial state so clients know the stream is live.
	sendSSEComment(w, flusher, "stream started")

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	deadline := time.NewTimer(sseMaxDuration)
	defer deadline.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-deadline.C:
			return
		case <-heartbeat.C:
			sendSSEComment(w, flusher, "heartbeat")
		case event, open := <-ch:
			if !open {
				return
			}
			sendSSEEvent(w, flusher, event)
			if event.Completion != nil {
				return
			}
		}
	}
}

// sendSSEEvent writes one event in SSE wire format.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	flusher.Flush()
}

// sendSSEComment writes an SSE comment line, used for liveness.
func sendSSEComment(w http.ResponseWriter, flusher http.Flusher, text string) {
	fmt.Fprintf(w, ": %s\n\n", text)
	flusher.Flush()
}
