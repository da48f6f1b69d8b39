package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	psync "github.com/parcelstack-labs/parcelboard/internal/sync"
)

// streamBuffer is the per-client event buffer for the SSE stream. A slow
// client whose buffer fills misses events rather than stalling delivery,
// matching the bus's lossy-but-safe policy.
const streamBuffer = 64

func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	var evt psync.Event
	if err := decodeJSON(r, &evt); err != nil {
		respondError(w, fmt.Errorf("invalid event body: %w", err))
		return
	}
	if evt.Type == "" {
		respondError(w, fmt.Errorf("event type is required"))
		return
	}
	if evt.SourcePanel == "" {
		respondError(w, fmt.Errorf("event sourcePanelId is required"))
		return
	}

	s.bus.Publish(evt)
	w.WriteHeader(http.StatusAccepted)
}

// handleEventStream bridges a bus subscription onto an SSE response.
// Optional repeated ?type= parameters narrow the stream by event type.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	types := r.URL.Query()["type"]
	var pred psync.Predicate
	if len(types) > 0 {
		wanted := make(map[string]struct{}, len(types))
		for _, t := range types {
			wanted[t] = struct{}{}
		}
		pred = func(evt psync.Event) bool {
			_, ok := wanted[evt.Type]
			return ok
		}
	}

	// Handlers run synchronously on the publisher's goroutine, so hand the
	// event off through a buffered channel and never block in the handler.
	events := make(chan psync.Event, streamBuffer)
	unsubscribe := s.bus.Subscribe(pred, func(_ *psync.Propagation, evt psync.Event) {
		select {
		case events <- evt:
		default:
			// Buffer full, client is too slow; skip.
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-events:
			data, err := json.Marshal(evt)
			if err != nil {
				s.logger.Error("failed to encode event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: sync\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// handleEventDrops exposes the cycle-guard diagnostics. Drops are expected
// under cyclic topologies and are informational, never errors.
func (s *Server) handleEventDrops(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"total":  s.bus.DropTotal(),
		"recent": s.bus.Drops(),
	})
}
