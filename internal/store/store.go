// ABOUTME: KVStore interface and shared types for tictac persistence
// ABOUTME: Defines the key-addressed string store every backend implements

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrNotFound is returned when a key has no entry in the store
var ErrNotFound = errors.New("not found")

// ErrUnknownDriver is returned by Open for a driver name it does not recognise
var ErrUnknownDriver = errors.New("unknown store driver")

// Driver names accepted by Open
const (
	DriverSQLite  = "sqlite"  // modernc.org/sqlite, pure Go
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3, requires cgo
	DriverBadger  = "badger"
	DriverMemory  = "memory"
)

// KVStore is an opaque string-keyed map of string values.
// Get returns ErrNotFound for a missing key. Remove of a missing key is not an error.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error

	// Keys lists stored keys with the given prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the store
	Close() error
}

// Options selects and configures a backend for Open.
type Options struct {
	Driver string
	Path   string // file for sqlite drivers, directory for badger; ignored for memory
	Logger *slog.Logger
}

// Open returns the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (KVStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	switch strings.ToLower(opts.Driver) {
	case DriverSQLite, DriverSQLite3:
		return NewSQLiteStore(ctx, opts.Path, strings.ToLower(opts.Driver), logger)
	case DriverBadger:
		return NewBadgerStore(BadgerConfig{Path: opts.Path, Logger: logger})
	case DriverMemory, "":
		return NewMockStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
