// ABOUTME: HTTP API handlers for reading and playing the game
// ABOUTME: Includes idempotent replay of POSTs and a server-sent event stream of views

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/2389/tictac/internal/dedupe"
	"github.com/2389/tictac/internal/game"
)

// IdempotencyHeader carries the client-chosen key of a retryable request.
const IdempotencyHeader = "Idempotency-Key"

// ReplayedHeader is set on responses served from the idempotency cache.
const ReplayedHeader = "Idempotent-Replayed"

// maxBodyBytes bounds request bodies; every body here is a tiny JSON object.
const maxBodyBytes = 1 << 12

// MoveRequest is the body of POST /api/game/moves.
type MoveRequest struct {
	Cell *int `json:"cell"`
}

// MoveResponse reports whether the move changed the game, and the game after it.
type MoveResponse struct {
	Applied bool      `json:"applied"`
	Game    game.View `json:"game"`
}

// GotoRequest is the body of POST /api/game/goto.
type GotoRequest struct {
	Step *int `json:"step"`
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleGame returns the current view.
func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	s.mu.Lock()
	view := s.engine.Snapshot()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, view)
}

// handleMove plays the next mark at the requested cell.
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req MoveRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Cell == nil {
		s.sendJSONError(w, http.StatusBadRequest, "cell is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	applied, err := s.engine.ApplyMove(r.Context(), *req.Cell)
	if errors.Is(err, game.ErrCellOutOfRange) {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	view := s.engine.Snapshot()
	if applied {
		s.events.Publish(view)
	}
	if err != nil {
		s.logger.Error("failed to save move", "cell", *req.Cell, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("move", "cell", *req.Cell, "applied", applied, "step", view.Step)
	writeJSON(w, http.StatusOK, MoveResponse{Applied: applied, Game: view})
}

// handleGoto moves the step cursor.
func (s *Server) handleGoto(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req GotoRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Step == nil {
		s.sendJSONError(w, http.StatusBadRequest, "step is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.engine.GotoStep(r.Context(), *req.Step)
	if errors.Is(err, game.ErrStepOutOfRange) {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	view := s.engine.Snapshot()
	s.events.Publish(view)
	if err != nil {
		s.logger.Error("failed to save step", "step", *req.Step, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// handleReset starts a new game.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.engine.Reset(r.Context())
	view := s.engine.Snapshot()
	s.events.Publish(view)
	if err != nil {
		s.logger.Error("failed to save reset", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("game reset")
	writeJSON(w, http.StatusOK, view)
}

// handleEvents streams a "game" event with the current view, then one after
// every mutation, until the client goes away or the server shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	views, subID := s.events.Subscribe(ctx)

	s.mu.Lock()
	current := s.engine.Snapshot()
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	s.writeSSEEvent(w, "game", current)
	flusher.Flush()

	s.logger.Debug("event stream opened", "sub_id", subID)
	for {
		select {
		case <-ctx.Done():
			return
		case view, ok := <-views:
			if !ok {
				return
			}
			s.writeSSEEvent(w, "game", view)
			flusher.Flush()
		}
	}
}

// idempotent replays the recorded response for a repeated Idempotency-Key
// instead of running next again. Server errors are not recorded so the client
// can retry them.
func (s *Server) idempotent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyHeader)
		if key == "" {
			next(w, r)
			return
		}
		cacheKey := r.Method + " " + r.URL.Path + " " + key

		s.idemMu.Lock()
		defer s.idemMu.Unlock()

		if resp, ok := s.dedupe.Get(cacheKey); ok {
			s.logger.Debug("replaying response", "path", r.URL.Path, "key", key)
			w.Header().Set("Content-Type", resp.ContentType)
			w.Header().Set(ReplayedHeader, "true")
			w.WriteHeader(resp.Status)
			_, _ = w.Write(resp.Body)
			return
		}

		rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		if rec.status < http.StatusInternalServerError {
			s.dedupe.Put(cacheKey, dedupe.Response{
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
		}
	}
}

// recordingWriter passes writes through and keeps a copy for the idempotency cache.
type recordingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *recordingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.body.Write(p)
	return w.ResponseWriter.Write(p)
}

// allowMethod writes 405 and reports false unless r uses method.
func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"})
	return false
}

// decodeBody parses a small JSON body into dst, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeSSEEvent writes a single SSE event to the response writer.
func (s *Server) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
