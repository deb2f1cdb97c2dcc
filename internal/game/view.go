// ABOUTME: Read-only view of an engine for rendering layers and the HTTP API
// ABOUTME: Also discovers namespaced games from the keys present in a store

package game

import (
	"context"
	"sort"
	"strings"
)

// View is everything a renderer needs, captured at one instant.
type View struct {
	Squares     Board   `json:"squares"`
	Next        Cell    `json:"next"`
	Winner      Cell    `json:"winner"`
	WinningLine []int   `json:"winning_line,omitempty"`
	Status      string  `json:"status"`
	Step        int     `json:"step"`
	History     History `json:"history"`
	Moves       []Move  `json:"moves"`
}

// Snapshot captures the engine's current view.
func (e *Engine) Snapshot() View {
	b := e.CurrentSquares()
	v := View{
		Squares: b,
		Next:    NextValue(b),
		Winner:  Winner(b),
		Status:  e.Status(),
		Step:    e.Step(),
		History: e.History(),
		Moves:   e.Moves(),
	}
	if l, ok := WinningLine(b); ok {
		v.WinningLine = l[:]
	}
	return v
}

// KeyLister lists store keys by prefix.
type KeyLister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// ListGames returns the namespaces that have a stored history, sorted. The
// game whose history lives under historyKey is reported as the empty
// namespace; an empty historyKey means DefaultHistoryKey.
func ListGames(ctx context.Context, kl KeyLister, historyKey string) ([]string, error) {
	if historyKey == "" {
		historyKey = DefaultHistoryKey
	}
	keys, err := kl.Keys(ctx, "")
	if err != nil {
		return nil, err
	}

	var games []string
	suffix := ":" + DefaultHistoryKey
	for _, k := range keys {
		switch {
		case k == historyKey:
			games = append(games, "")
		case strings.HasSuffix(k, suffix):
			games = append(games, strings.TrimSuffix(k, suffix))
		}
	}
	sort.Strings(games)
	return games, nil
}
