// ABOUTME: Tests for the game HTTP API handlers
// ABOUTME: Verifies moves, time travel, reset, idempotent replay, errors and the event stream

package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tictac/internal/game"
	"github.com/2389/tictac/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.MockStore) {
	t.Helper()
	kv := store.NewMockStore()
	engine, err := game.Open(context.Background(), kv, game.Options{})
	require.NoError(t, err)

	s := New(Config{
		HTTPAddr:           "127.0.0.1:0",
		IdempotencyTTL:     time.Minute,
		IdempotencyMaxKeys: 16,
	}, engine, nil)
	t.Cleanup(func() {
		s.events.Close()
		s.dedupe.Close()
	})
	return s, kv
}

func do(t *testing.T, s *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) game.View {
	t.Helper()
	var v game.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHandleGame(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/game", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	v := decodeView(t, rec)
	assert.Equal(t, 0, v.Step)
	assert.Equal(t, game.X, v.Next)
	assert.Equal(t, "Next player: X", v.Status)
	assert.Len(t, v.History, 1)
	assert.Equal(t, []game.Move{{Step: 0, Label: "Go to start", Current: true}}, v.Moves)
}

func TestHandleGame_WrongMethod(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/game", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}

func TestHandleMove(t *testing.T) {
	s, kv := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/game/moves", `{"cell": 4}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MoveResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Applied)
	assert.Equal(t, game.X, resp.Game.Squares[4])
	assert.Equal(t, 1, resp.Game.Step)
	assert.Equal(t, game.O, resp.Game.Next)

	step, _ := kv.Entry(game.DefaultStepKey)
	assert.Equal(t, "1", step)
}

func TestHandleMove_OccupiedCellNotApplied(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/game/moves", `{"cell": 4}`)

	rec := do(t, s, http.MethodPost, "/api/game/moves", `{"cell": 4}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MoveResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Applied)
	assert.Equal(t, 1, resp.Game.Step)
}

func TestHandleMove_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "invalid json", body: `{"cell":`, wantErr: "invalid JSON body"},
		{name: "missing cell", body: `{}`, wantErr: "cell is required"},
		{name: "unknown field", body: `{"cell": 1, "mark": "O"}`, wantErr: "invalid JSON body"},
		{name: "cell too large", body: `{"cell": 9}`, wantErr: "cell out of range"},
		{name: "negative cell", body: `{"cell": -1}`, wantErr: "cell out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			rec := do(t, s, http.MethodPost, "/api/game/moves", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeError(t, rec), tt.wantErr)
		})
	}
}

func TestHandleMove_StoreFailure(t *testing.T) {
	s, kv := newTestServer(t)
	kv.FailWith(store.OpSet, errors.New("disk full"))

	rec := do(t, s, http.MethodPost, "/api/game/moves", `{"cell": 0}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeError(t, rec))
}

func TestHandleGoto(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/game/moves", `{"cell": 0}`)
	do(t, s, http.MethodPost, "/api/game/moves", `{"cell": 4}`)

	rec := do(t, s, http.MethodPost, "/api/game/goto", `{"step": 1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, rec)
	assert.Equal(t, 1, v.Step)
	assert.Len(t, v.History, 3)
	assert.Equal(t, game.O, v.Next)

	rec = do(t, s, http.MethodPost, "/api/game/goto", `{"step": 3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "step out of range")

	rec = do(t, s, http.MethodPost, "/api/game/goto", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleReset(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/game/moves", `{"cell": 0}`)

	rec := do(t, s, http.MethodPost, "/api/game/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, rec)
	assert.Equal(t, 0, v.Step)
	assert.Equal(t, game.History{game.EmptyBoard}, v.History)

	rec = do(t, s, http.MethodGet, "/api/game/reset", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestIdempotencyKey_ReplaysResponse(t *testing.T) {
	s, kv := newTestServer(t)

	first := do(t, s, http.MethodPost, "/api/game/moves", `{"cell": 4}`, IdempotencyHeader, "abc")
	require.Equal(t, http.StatusOK, first.Code)
	firstBody := first.Body.String()

	kv.ResetCalls()
	second := do(t, s, http.MethodPost, "/api/game/moves", `{"cell": 4}`, IdempotencyHeader, "abc")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
	assert.Equal(t, firstBody, second.Body.String())
	assert.Empty(t, kv.Calls(), "replay must not touch the store")

	// Without the key the same move is a no-op, not a replay
	third := do(t, s, http.MethodPost, "/api/game/moves", `{"cell": 4}`)
	var resp MoveResponse
	require.NoError(t, json.NewDecoder(third.Body).Decode(&resp))
	assert.False(t, resp.Applied)
	assert.Empty(t, third.Header().Get(ReplayedHeader))
}

func TestIdempotencyKey_ScopedByPath(t *testing.T) {
	s, _ := newTestServer(t)

	do(t, s, http.MethodPost, "/api/game/moves", `{"cell": 4}`, IdempotencyHeader, "same")
	rec := do(t, s, http.MethodPost, "/api/game/reset", "", IdempotencyHeader, "same")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(ReplayedHeader))
	assert.Equal(t, 0, decodeView(t, rec).Step)
}

func TestIdempotencyKey_ServerErrorsNotRecorded(t *testing.T) {
	s, kv := newTestServer(t)
	kv.FailWith(store.OpSet, errors.New("disk full"))

	rec := do(t, s, http.MethodPost, "/api/game/reset", "", IdempotencyHeader, "retry-me")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	kv.FailWith(store.OpSet, nil)
	rec = do(t, s, http.MethodPost, "/api/game/reset", "", IdempotencyHeader, "retry-me")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(ReplayedHeader))
}

func TestIdempotencyKey_ClientErrorsRecorded(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/game/moves", `{"cell": 12}`, IdempotencyHeader, "bad")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/game/moves", `{"cell": 12}`, IdempotencyHeader, "bad")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(ReplayedHeader))
}

func TestHandleEvents(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/game/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readView := func() game.View {
		t.Helper()
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && data != "":
				assert.Equal(t, "game", event)
				var v game.View
				require.NoError(t, json.Unmarshal([]byte(data), &v))
				return v
			}
		}
	}

	initial := readView()
	assert.Equal(t, 0, initial.Step)

	require.Eventually(t, func() bool { return s.events.Len() == 1 }, time.Second, 10*time.Millisecond)

	do(t, s, http.MethodPost, "/api/game/moves", `{"cell": 8}`)
	v := readView()
	assert.Equal(t, 1, v.Step)
	assert.Equal(t, game.X, v.Squares[8])
}

func TestServe_GracefulShutdown(t *testing.T) {
	s, _ := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
