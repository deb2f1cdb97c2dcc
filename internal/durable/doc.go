// Package durable keeps a single in-memory value in sync with an entry in an
// external key-value store.
//
// A Value is created once per logical slot. Its initial value comes from the
// store when an entry exists under the key, otherwise from a Default: either a
// Literal or a Producer that is called at most once. Mutations are made in
// memory (Set, Update, SetKey, SetCodec) and pushed to the store by Commit,
// which the owner calls right after each state transition.
//
// Changing the key migrates the slot: Commit writes under the new key, then
// removes the entry under the old one, so at most one entry per slot remains.
//
// Store errors propagate unchanged; nothing is retried or swallowed. A missing
// key is not an error, it selects the default.
package durable
