// ABOUTME: Engine owns the move history and step cursor of one persisted game
// ABOUTME: Applies moves with branch-on-rewind, time travel and reset over durable slots

package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/tictac/internal/durable"
)

// Default store keys for the two state slots.
const (
	DefaultStepKey    = "ttt-step"
	DefaultHistoryKey = "ttt-hist"
)

// Codec names accepted in Options.Codec.
const (
	CodecJSON = "json"
	CodecYAML = "yaml"
)

var (
	// ErrCellOutOfRange is returned by ApplyMove for a cell outside 0..8
	ErrCellOutOfRange = errors.New("cell out of range")

	// ErrStepOutOfRange is returned by GotoStep for a step outside the history
	ErrStepOutOfRange = errors.New("step out of range")

	// ErrCorruptState is returned by Open when the stored game cannot be a real game
	ErrCorruptState = errors.New("corrupt game state")

	// ErrInvalidKeys is returned for empty or identical slot keys
	ErrInvalidKeys = errors.New("step and history keys must be non-empty and distinct")
)

// History is the ordered list of board snapshots; index 0 is the empty board.
type History []Board

// Options configures Open.
type Options struct {
	StepKey    string
	HistoryKey string
	Codec      string // CodecJSON (default) or CodecYAML
	Logger     *slog.Logger

	// ResetOnCorrupt replaces an unreadable or inconsistent stored game with a
	// fresh one instead of failing.
	ResetOnCorrupt bool
}

// NamespacedOptions returns Options whose keys are prefixed with "ns:".
// An empty namespace selects the default keys.
func NamespacedOptions(ns string) Options {
	if ns == "" {
		return Options{StepKey: DefaultStepKey, HistoryKey: DefaultHistoryKey}
	}
	return Options{
		StepKey:    ns + ":" + DefaultStepKey,
		HistoryKey: ns + ":" + DefaultHistoryKey,
	}
}

// Move is one entry of the move list shown next to the board.
type Move struct {
	Step    int    `json:"step"`
	Label   string `json:"label"`
	Current bool   `json:"current"`
}

// Engine derives every game fact from an append-only history and a cursor into
// it. Both are held in durable slots and committed after each transition.
// An Engine has a single owner and is not safe for concurrent use.
type Engine struct {
	step    *durable.Value[int]
	history *durable.Value[History]
	logger  *slog.Logger
}

// Open restores the game stored under opts' keys, or starts a new one.
func Open(ctx context.Context, s durable.Store, opts Options) (*Engine, error) {
	if opts.StepKey == "" {
		opts.StepKey = DefaultStepKey
	}
	if opts.HistoryKey == "" {
		opts.HistoryKey = DefaultHistoryKey
	}
	if opts.StepKey == opts.HistoryKey {
		return nil, ErrInvalidKeys
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "game")

	stepCodec, historyCodec, err := codecs(opts.Codec)
	if err != nil {
		return nil, err
	}

	step, err := openSlot(ctx, s, opts, logger, opts.StepKey, durable.Literal(0), stepCodec)
	if err != nil {
		return nil, err
	}

	history, err := openSlot(ctx, s, opts, logger, opts.HistoryKey,
		durable.Producer(func() History { return History{EmptyBoard} }), historyCodec)
	if err != nil {
		return nil, err
	}

	e := &Engine{step: step, history: history, logger: logger}

	if err := validate(history.Get(), step.Get()); err != nil {
		if !opts.ResetOnCorrupt {
			return nil, fmt.Errorf("%w: %w", ErrCorruptState, err)
		}
		logger.Warn("stored game is inconsistent, starting over", "error", err)
		if err := e.Reset(ctx); err != nil {
			return nil, err
		}
	}

	logger.Debug("game opened",
		"step_key", step.Key(),
		"history_key", history.Key(),
		"step", step.Get(),
		"moves", len(history.Get())-1,
	)
	return e, nil
}

// openSlot creates one durable slot, discarding an undecodable entry when the
// options ask for recovery.
func openSlot[T any](ctx context.Context, s durable.Store, opts Options, logger *slog.Logger, key string, def durable.Default[T], codec durable.Codec[T]) (*durable.Value[T], error) {
	v, err := durable.New(ctx, s, key, def, durable.WithCodec(codec), durable.WithLogger[T](logger))
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, durable.ErrDecode) {
		return nil, fmt.Errorf("opening %q: %w", key, err)
	}
	if !opts.ResetOnCorrupt {
		return nil, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}

	logger.Warn("discarding unreadable entry", "key", key, "error", err)
	if err := s.Remove(ctx, key); err != nil {
		return nil, fmt.Errorf("removing unreadable %q: %w", key, err)
	}
	v, err = durable.New(ctx, s, key, def, durable.WithCodec(codec), durable.WithLogger[T](logger))
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", key, err)
	}
	return v, nil
}

func codecs(name string) (durable.Codec[int], durable.Codec[History], error) {
	switch strings.ToLower(name) {
	case "", CodecJSON:
		return durable.JSONCodec[int]{}, durable.JSONCodec[History]{}, nil
	case CodecYAML:
		return durable.YAMLCodec[int]{}, durable.YAMLCodec[History]{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown codec %q", name)
	}
}

// validate checks that h could have been produced by legal play and that step
// points into it.
func validate(h History, step int) error {
	if len(h) == 0 {
		return errors.New("history is empty")
	}
	if h[0] != EmptyBoard {
		return errors.New("first snapshot is not the empty board")
	}
	for i := 1; i < len(h); i++ {
		prev, cur := h[i-1], h[i]
		if Winner(prev) != Empty {
			return fmt.Errorf("snapshot %d follows a finished game", i)
		}
		changed := -1
		for c := 0; c < BoardSize; c++ {
			if !cur[c].Valid() {
				return fmt.Errorf("snapshot %d cell %d holds %q", i, c, cur[c])
			}
			if prev[c] == cur[c] {
				continue
			}
			if prev[c] != Empty || changed != -1 {
				return fmt.Errorf("snapshot %d is not a single move", i)
			}
			changed = c
		}
		if changed == -1 {
			return fmt.Errorf("snapshot %d repeats snapshot %d", i, i-1)
		}
		if cur[changed] != NextValue(prev) {
			return fmt.Errorf("snapshot %d plays %s out of turn", i, cur[changed])
		}
	}
	if step < 0 || step >= len(h) {
		return fmt.Errorf("step %d outside history of %d", step, len(h))
	}
	return nil
}

// Step returns the cursor into the history.
func (e *Engine) Step() int {
	return e.step.Get()
}

// History returns a copy of every snapshot.
func (e *Engine) History() History {
	h := e.history.Get()
	out := make(History, len(h))
	copy(out, h)
	return out
}

// CurrentSquares returns the snapshot the cursor points at.
func (e *Engine) CurrentSquares() Board {
	return e.history.Get()[e.step.Get()]
}

// NextValue returns whose turn it is on the current board.
func (e *Engine) NextValue() Cell {
	return NextValue(e.CurrentSquares())
}

// Winner returns the winner on the current board, or Empty.
func (e *Engine) Winner() Cell {
	return Winner(e.CurrentSquares())
}

// WinningLine returns the winning triple on the current board, if any.
func (e *Engine) WinningLine() ([3]int, bool) {
	return WinningLine(e.CurrentSquares())
}

// Status returns the status line for the current board.
func (e *Engine) Status() string {
	b := e.CurrentSquares()
	return Status(Winner(b), b, NextValue(b))
}

// Moves returns the move list with the current step marked.
func (e *Engine) Moves() []Move {
	h := e.history.Get()
	cur := e.step.Get()
	moves := make([]Move, len(h))
	for i := range h {
		label := "Go to start"
		if i > 0 {
			label = fmt.Sprintf("Go to move %d", i)
		}
		moves[i] = Move{Step: i, Label: label, Current: i == cur}
	}
	return moves
}

// Keys returns the store keys of the step and history slots.
func (e *Engine) Keys() (stepKey, historyKey string) {
	return e.step.Key(), e.history.Key()
}

// ApplyMove plays the next mark at cell. It reports false without error when
// the game is already won or the cell is taken. Any snapshots after the cursor
// are discarded before the new one is appended.
func (e *Engine) ApplyMove(ctx context.Context, cell int) (bool, error) {
	if cell < 0 || cell >= BoardSize {
		return false, fmt.Errorf("%w: %d", ErrCellOutOfRange, cell)
	}

	current := e.CurrentSquares()
	if Winner(current) != Empty || current[cell] != Empty {
		e.logger.Debug("move ignored", "cell", cell, "step", e.step.Get())
		return false, nil
	}

	next := current
	next[cell] = NextValue(current)

	step := e.step.Get()
	kept := e.history.Get()[:step+1]
	h := make(History, len(kept), len(kept)+1)
	copy(h, kept)
	h = append(h, next)

	e.history.Set(h)
	e.step.Set(len(kept))

	e.logger.Debug("move applied", "cell", cell, "mark", next[cell], "step", len(kept))
	return true, e.commit(ctx, false)
}

// Reset starts a new game: one empty snapshot, cursor at 0.
func (e *Engine) Reset(ctx context.Context) error {
	e.history.Set(History{EmptyBoard})
	e.step.Set(0)

	e.logger.Debug("game reset")
	return e.commit(ctx, true)
}

// GotoStep moves the cursor without touching the history.
func (e *Engine) GotoStep(ctx context.Context, n int) error {
	if n < 0 || n >= len(e.history.Get()) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrStepOutOfRange, n, len(e.history.Get()))
	}
	e.step.Set(n)

	e.logger.Debug("jumped to step", "step", n)
	return e.commit(ctx, true)
}

// Rename moves both slots to new store keys. The entries under the old keys are
// removed once the new ones are written. A slot may not move onto the other
// slot's current key: the second migration would remove what the first wrote.
func (e *Engine) Rename(ctx context.Context, stepKey, historyKey string) error {
	if stepKey == "" || historyKey == "" || stepKey == historyKey {
		return ErrInvalidKeys
	}
	oldStep, oldHistory := e.Keys()
	if stepKey == oldHistory || historyKey == oldStep {
		return fmt.Errorf("%w: %q and %q overlap the current keys", ErrInvalidKeys, stepKey, historyKey)
	}
	if err := e.step.SetKey(stepKey); err != nil {
		return err
	}
	if err := e.history.SetKey(historyKey); err != nil {
		return err
	}

	e.logger.Debug("renaming game", "step_key", stepKey, "history_key", historyKey)
	return e.commit(ctx, false)
}

// commit pushes both slots to the store. Growing transitions write the history
// first and shrinking ones the step first, so the stored step always indexes
// the stored history.
func (e *Engine) commit(ctx context.Context, stepFirst bool) error {
	saveHistory := func() error {
		if err := e.history.Commit(ctx); err != nil {
			return fmt.Errorf("saving history: %w", err)
		}
		return nil
	}
	saveStep := func() error {
		if err := e.step.Commit(ctx); err != nil {
			return fmt.Errorf("saving step: %w", err)
		}
		return nil
	}

	first, second := saveHistory, saveStep
	if stepFirst {
		first, second = saveStep, saveHistory
	}
	if err := first(); err != nil {
		return err
	}
	return second()
}
