// Package store provides the key-addressed string store that game state is
// mirrored into.
//
// # Architecture
//
// KVStore is deliberately small: Get, Set, Remove, Keys and Close. Values are
// opaque strings; encoding is owned by the caller (see package durable).
// Several backends implement it:
//
//   - SQLiteStore: kv_entries table, driver "sqlite" (modernc.org/sqlite) or
//     "sqlite3" (github.com/mattn/go-sqlite3, needs cgo)
//   - BadgerStore: embedded BadgerDB directory, or in-memory
//   - MockStore: in-memory map with a call log, used by tests and the
//     "memory" driver
//
// Open picks a backend from Options.Driver.
//
// # Error Handling
//
// Get returns ErrNotFound for a missing key. Remove of a missing key succeeds.
// Backend failures are wrapped with the key they concern.
//
// # Testing
//
// Use NewMockStore() for unit tests:
//
//	kv := store.NewMockStore()
//	kv.Seed("ttt-step", "3")
//	kv.FailWith(store.OpSet, errors.New("disk full"))
//
// Use NewSQLiteStore(ctx, ":memory:", "sqlite", nil) for tests against real SQLite.
package store
