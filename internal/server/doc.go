// Package server exposes a single game over HTTP.
//
// # Endpoints
//
//   - GET  /health              liveness, plain "OK"
//   - GET  /api/game            current game.View
//   - POST /api/game/moves      {"cell": n} -> {"applied": bool, "game": View}
//   - POST /api/game/goto       {"step": n} -> View
//   - POST /api/game/reset      -> View
//   - GET  /api/game/events     server-sent events, one "game" event per change
//
// Errors are JSON objects {"error": "..."}: 400 for malformed bodies or out of
// range cells and steps, 405 for the wrong method, 500 when the store fails.
//
// # Idempotency
//
// POST requests carrying an Idempotency-Key header are recorded for the
// configured TTL. A repeat with the same key and path gets the recorded
// response, marked with Idempotent-Replayed: true, and the engine is not
// touched. 5xx responses are not recorded.
//
// # Concurrency
//
// The engine is single-owner, so every handler takes the server mutex around
// engine access. Event subscribers get buffered channels; a slow subscriber
// misses views rather than stalling moves.
package server
