// Package game implements the tic-tac-toe history engine.
//
// # State
//
// A game is an append-only History of Board snapshots plus a step cursor.
// Snapshot 0 is always the empty board and every later snapshot adds exactly
// one mark. Everything else (current board, next player, winner, status, move
// list) is derived from those two values and never stored.
//
// # Persistence
//
// The step and the history live in two durable slots, by default under the
// keys "ttt-step" and "ttt-hist". Each mutating operation updates memory and
// then commits both slots before returning. NamespacedOptions keeps several
// games side by side in one store.
//
// # Operations
//
//   - ApplyMove: plays NextValue at a cell; drops snapshots after the cursor
//     first (branch on rewind). Finished games and taken cells are no-ops.
//   - GotoStep: moves the cursor; ErrStepOutOfRange outside the history.
//   - Reset: back to a single empty snapshot.
//   - Rename: moves both slots to new keys.
//
// # Restore
//
// Open validates the stored game. Inconsistent or undecodable state fails
// with ErrCorruptState, or is replaced by a new game when
// Options.ResetOnCorrupt is set.
package game
