// ABOUTME: Value keeps one in-memory value mirrored under a key in an external store
// ABOUTME: Handles lazy defaults, codec selection, explicit commits and key migration

package durable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/tictac/internal/store"
)

// ErrEmptyKey is returned when a slot is created or moved with an empty key
var ErrEmptyKey = errors.New("durable: key is empty")

// ErrDecode is returned by New when the stored entry cannot be decoded
var ErrDecode = errors.New("durable: cannot decode stored value")

// Store is the store primitive a Value mirrors into.
// Get must return an error matching store.ErrNotFound for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Default is the initial value used when the store has no entry for the key.
// Build one with Literal or Producer.
type Default[T any] struct {
	value   T
	produce func() T
}

// Literal uses v as the default.
func Literal[T any](v T) Default[T] {
	return Default[T]{value: v}
}

// Producer computes the default lazily. fn runs at most once, and only when the
// store has no entry for the key.
func Producer[T any](fn func() T) Default[T] {
	return Default[T]{produce: fn}
}

func (d Default[T]) resolve() T {
	if d.produce != nil {
		return d.produce()
	}
	return d.value
}

// Option configures a Value.
type Option[T any] func(*Value[T])

// WithCodec replaces the default JSON codec.
func WithCodec[T any](c Codec[T]) Option[T] {
	return func(v *Value[T]) { v.codec = c }
}

// WithLogger sets the logger used for commit and migration events.
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(v *Value[T]) { v.logger = l.With("component", "durable") }
}

// Value is an in-memory value of type T mirrored in a Store.
//
// Mutators (Set, Update, SetKey, SetCodec) only touch memory; the owner calls
// Commit after each state transition to bring the store in line. A Value has a
// single owner and is not safe for concurrent use.
type Value[T any] struct {
	store  Store
	codec  Codec[T]
	logger *slog.Logger

	key     string
	prevKey string
	value   T

	dirty       bool
	lastEncoded string
	written     bool
}

// New creates a slot for key. If the store holds a non-empty entry under key it
// is decoded and becomes the value; otherwise def is resolved. The result is
// committed before New returns.
func New[T any](ctx context.Context, s Store, key string, def Default[T], opts ...Option[T]) (*Value[T], error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	v := &Value[T]{
		store:   s,
		codec:   JSONCodec[T]{},
		logger:  slog.Default().With("component", "durable"),
		key:     key,
		prevKey: key,
	}
	for _, opt := range opts {
		opt(v)
	}

	raw, err := s.Get(ctx, key)
	switch {
	case err == nil && raw != "":
		decoded, err := v.codec.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%w under %q: %w", ErrDecode, key, err)
		}
		v.value = decoded
		v.lastEncoded = raw
		v.written = true
		v.logger.Debug("restored value", "key", key)
	case err == nil, errors.Is(err, store.ErrNotFound):
		v.value = def.resolve()
		v.logger.Debug("using default value", "key", key)
	default:
		return nil, fmt.Errorf("reading %q: %w", key, err)
	}

	v.dirty = true
	if err := v.Commit(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

// Get returns the current in-memory value. Reference types are shared with the
// slot; callers must not mutate them in place.
func (v *Value[T]) Get() T {
	return v.value
}

// Key returns the key the value is (or will be, after Commit) stored under.
func (v *Value[T]) Key() string {
	return v.key
}

// Dirty reports whether a Commit is pending.
func (v *Value[T]) Dirty() bool {
	return v.dirty
}

// Set replaces the in-memory value.
func (v *Value[T]) Set(nv T) {
	v.value = nv
	v.dirty = true
}

// Update replaces the value with fn applied to the current one.
func (v *Value[T]) Update(fn func(T) T) {
	v.Set(fn(v.value))
}

// SetKey moves the slot to a new key. The entry under the old key is removed by
// the next Commit, after the value has been written under k.
func (v *Value[T]) SetKey(k string) error {
	if k == "" {
		return ErrEmptyKey
	}
	if k != v.key {
		v.key = k
		v.dirty = true
	}
	return nil
}

// SetCodec swaps the codec; the next Commit re-encodes the value with it.
func (v *Value[T]) SetCodec(c Codec[T]) {
	v.codec = c
	v.dirty = true
}

// Commit synchronises the store with the in-memory state: it writes the encoded
// value under the current key and, if the key changed since the last commit,
// removes the entry under the previous key. Store errors are returned as is
// (wrapped) and leave the slot dirty so a later Commit retries.
func (v *Value[T]) Commit(ctx context.Context) error {
	if !v.dirty {
		return nil
	}

	encoded, err := v.codec.Encode(v.value)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", v.key, err)
	}

	migrating := v.key != v.prevKey
	if migrating || !v.written || encoded != v.lastEncoded {
		if err := v.store.Set(ctx, v.key, encoded); err != nil {
			return fmt.Errorf("writing %q: %w", v.key, err)
		}
		v.lastEncoded = encoded
		v.written = true
	}

	if migrating {
		if err := v.store.Remove(ctx, v.prevKey); err != nil {
			return fmt.Errorf("removing stale key %q: %w", v.prevKey, err)
		}
		v.logger.Debug("migrated key", "from", v.prevKey, "to", v.key)
		v.prevKey = v.key
	}

	v.dirty = false
	return nil
}
