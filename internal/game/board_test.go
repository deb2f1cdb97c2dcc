package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// board builds a Board from a compact string: 'X', 'O', anything else empty.
func board(s string) Board {
	var b Board
	for i, r := range s {
		switch r {
		case 'X':
			b[i] = X
		case 'O':
			b[i] = O
		}
	}
	return b
}

func TestNextValue_Alternates(t *testing.T) {
	b := EmptyBoard
	want := []Cell{X, O, X, O, X, O, X, O, X}
	order := []int{4, 0, 8, 2, 6, 3, 5, 7, 1}

	for i, cell := range order {
		assert.Equal(t, want[i], NextValue(b), "after %d moves", i)
		b[cell] = NextValue(b)
	}
}

func TestWinner(t *testing.T) {
	tests := []struct {
		name  string
		board Board
		want  Cell
		line  [3]int
	}{
		{name: "top row", board: board("XXX......"), want: X, line: [3]int{0, 1, 2}},
		{name: "middle row", board: board("XX.OOO X."), want: O, line: [3]int{3, 4, 5}},
		{name: "left column", board: board("O..O..O.."), want: O, line: [3]int{0, 3, 6}},
		{name: "right column", board: board("..X..X..X"), want: X, line: [3]int{2, 5, 8}},
		{name: "diagonal", board: board("X...X...X"), want: X, line: [3]int{0, 4, 8}},
		{name: "anti diagonal", board: board("..O.O.O.."), want: O, line: [3]int{2, 4, 6}},
		{name: "empty", board: EmptyBoard, want: Empty},
		{name: "draw", board: board("XOXXOOOXX"), want: Empty},
		{name: "mixed line", board: board("XOX......"), want: Empty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Winner(tt.board))
			line, ok := WinningLine(tt.board)
			assert.Equal(t, tt.want != Empty, ok)
			if ok {
				assert.Equal(t, tt.line, line)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	draw := board("XOXXOOOXX")
	assert.Equal(t, "Scratch: Cat's game", Status(Winner(draw), draw, NextValue(draw)))

	won := board("XXXOO....")
	assert.Equal(t, "Winner: X", Status(Winner(won), won, NextValue(won)))

	open := board("X........")
	assert.Equal(t, "Next player: O", Status(Winner(open), open, NextValue(open)))

	// A win on the last square is a win, not a draw
	lastWin := board("XOXOXOOXX")
	assert.Equal(t, "Winner: X", Status(Winner(lastWin), lastWin, NextValue(lastWin)))
}

func TestBoard_CountAndFull(t *testing.T) {
	b := board("XO.X.....")
	assert.Equal(t, 2, b.Count(X))
	assert.Equal(t, 1, b.Count(O))
	assert.Equal(t, 6, b.Count(Empty))
	assert.False(t, b.Full())
	assert.True(t, board("XOXXOOOXX").Full())
}

func TestBoard_JSON(t *testing.T) {
	b := board("X...O....")
	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `["X",null,null,null,"O",null,null,null,null]`, string(data))

	var out Board
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, b, out)
}

func TestBoard_JSONRejectsMalformed(t *testing.T) {
	tests := map[string]string{
		"null board":  `null`,
		"short":       `[null,null]`,
		"long":        `[null,null,null,null,null,null,null,null,null,null]`,
		"bad mark":    `["Z",null,null,null,null,null,null,null,null]`,
		"not a board": `{"a":1}`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			var b Board
			assert.Error(t, json.Unmarshal([]byte(in), &b))
		})
	}
}

func TestHistory_JSONRejectsBareBoard(t *testing.T) {
	// A bare board where a history is expected has null elements
	var h History
	err := json.Unmarshal([]byte(`[null,null,null,null,null,null,null,null,null]`), &h)
	assert.Error(t, err)
}
