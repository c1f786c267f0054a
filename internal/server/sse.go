package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/szaher/meemo/internal/stream"
	"github.com/szaher/meemo/internal/tutor"
)

// sseHeartbeat is the interval between keepalive comments while a
// turn is generating.
const sseHeartbeat = 15 * time.Second

// sseEmitter writes turn events as Server-Sent Events. Writes are
// serialized so the heartbeat and the turn can share the connection.
type sseEmitter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEEmitter(w http.ResponseWriter) (*sseEmitter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &sseEmitter{w: w, flusher: flusher}, nil
}

// Emit sends one event, named by its type with the full event as data.
func (s *sseEmitter) Emit(event *stream.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, data)
	s.flusher.Flush()
}

// ping writes an SSE comment keepalive.
func (s *sseEmitter) ping() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprint(s.w, ": ping\n\n")
	s.flusher.Flush()
}

// startedEmitter records whether the turn produced any events. Once it
// has, the controller owns failure reporting for the connection.
type startedEmitter struct {
	next    stream.Emitter
	started bool
}

func (s *startedEmitter) Emit(event *stream.Event) {
	s.started = true
	s.next.Emit(event)
}

// handleStream runs one turn while streaming its events. The request
// body carries either a message or a resume answer.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req struct {
		Message string `json:"message,omitempty"`
		Answer  string `json:"answer,omitempty"`
		Resume  bool   `json:"resume,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	sse, err := newSSEEmitter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	emitter := &startedEmitter{next: stream.NewDedupeEmitter(sse)}

	// Keepalive while generation is in flight.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(sseHeartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				sse.ping()
			}
		}
	}()

	if req.Resume {
		_, err = s.controller.SubmitResumeAnswer(r.Context(), sessionID, req.Answer, emitter)
	} else {
		_, err = s.controller.SubmitMessage(r.Context(), sessionID, req.Message, emitter)
	}
	if err != nil {
		s.logger.Warn("stream turn ended with error", "session", sessionID, "error", err)
		// A turn that started already reported its failure through the
		// controller; only requests rejected before turn_start still
		// need the terminal pair.
		if !emitter.started {
			emitter.Emit(stream.New(stream.ErrorEvent, sessionID).
				WithData("message", tutor.FriendlyError(err)))
			emitter.Emit(stream.New(stream.TurnEnd, sessionID))
		}
	}
}
