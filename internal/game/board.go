// ABOUTME: Tic-tac-toe board snapshot and the pure derivations over it
// ABOUTME: Computes next player, winner, winning line and the status line

package game

import (
	"encoding/json"
	"fmt"
)

// BoardSize is the number of cells on a board.
const BoardSize = 9

// Cell is the content of one square.
type Cell string

const (
	Empty Cell = ""
	X     Cell = "X"
	O     Cell = "O"
)

// Valid reports whether c is Empty, X or O.
func (c Cell) Valid() bool {
	return c == Empty || c == X || c == O
}

// MarshalJSON encodes an empty cell as null, a mark as its letter.
func (c Cell) MarshalJSON() ([]byte, error) {
	if c == Empty {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

// UnmarshalJSON accepts null, "X" or "O".
func (c *Cell) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Empty
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("cell: %w", err)
	}
	cell := Cell(s)
	if !cell.Valid() {
		return fmt.Errorf("cell: invalid mark %q", s)
	}
	*c = cell
	return nil
}

// Board is one immutable snapshot of the nine squares, indexed row by row.
type Board [BoardSize]Cell

// EmptyBoard is the board every game starts from.
var EmptyBoard = Board{}

// UnmarshalJSON requires exactly nine cells; a null board is rejected.
func (b *Board) UnmarshalJSON(data []byte) error {
	var cells []Cell
	if err := json.Unmarshal(data, &cells); err != nil {
		return fmt.Errorf("board: %w", err)
	}
	if cells == nil {
		return fmt.Errorf("board: expected %d cells, got null", BoardSize)
	}
	if len(cells) != BoardSize {
		return fmt.Errorf("board: expected %d cells, got %d", BoardSize, len(cells))
	}
	copy(b[:], cells)
	return nil
}

// Count returns how many squares hold c.
func (b Board) Count(c Cell) int {
	n := 0
	for _, sq := range b {
		if sq == c {
			n++
		}
	}
	return n
}

// Full reports whether every square is taken.
func (b Board) Full() bool {
	return b.Count(Empty) == 0
}

// lines are the winning triples: rows, then columns, then diagonals.
var lines = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// NextValue returns whose turn it is: X when both have played equally often.
// It trusts that moves alternated.
func NextValue(b Board) Cell {
	if b.Count(X) == b.Count(O) {
		return X
	}
	return O
}

// WinningLine returns the first line of three equal marks, if any.
func WinningLine(b Board) ([3]int, bool) {
	for _, l := range lines {
		a := b[l[0]]
		if a != Empty && a == b[l[1]] && a == b[l[2]] {
			return l, true
		}
	}
	return [3]int{}, false
}

// Winner returns the mark holding a line, or Empty.
func Winner(b Board) Cell {
	l, ok := WinningLine(b)
	if !ok {
		return Empty
	}
	return b[l[0]]
}

// Status is the one-line summary shown to players.
func Status(winner Cell, b Board, next Cell) string {
	switch {
	case winner != Empty:
		return "Winner: " + string(winner)
	case b.Full():
		return "Scratch: Cat's game"
	default:
		return "Next player: " + string(next)
	}
}
