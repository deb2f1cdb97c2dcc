// ABOUTME: One-shot tictac commands that read or change a stored game
// ABOUTME: Renders the board and move list to the terminal with color

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/tictac/internal/config"
	"github.com/2389/tictac/internal/game"
	"github.com/2389/tictac/internal/store"
)

// withGame runs fn against the selected game and closes the store afterwards.
func withGame(ctx context.Context, namespace string, fn func(*game.Engine) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	engine, kv, err := openGame(ctx, cfg, namespace, commandLogger(cfg.Logging))
	if err != nil {
		return err
	}
	defer kv.Close()

	return fn(engine)
}

func runShow(ctx context.Context, namespace string) error {
	return withGame(ctx, namespace, func(e *game.Engine) error {
		renderGame(os.Stdout, e.Snapshot())
		return nil
	})
}

func runMove(ctx context.Context, namespace string, args []string) error {
	cell, err := intArg(args, "move CELL")
	if err != nil {
		return err
	}

	return withGame(ctx, namespace, func(e *game.Engine) error {
		applied, err := e.ApplyMove(ctx, cell)
		if err != nil {
			return fmt.Errorf("applying move: %w", err)
		}
		if !applied {
			color.New(color.FgYellow).Printf("  Move ignored: cell %d is taken or the game is over\n\n", cell)
		}
		renderGame(os.Stdout, e.Snapshot())
		return nil
	})
}

func runGoto(ctx context.Context, namespace string, args []string) error {
	step, err := intArg(args, "goto STEP")
	if err != nil {
		return err
	}

	return withGame(ctx, namespace, func(e *game.Engine) error {
		if err := e.GotoStep(ctx, step); err != nil {
			return fmt.Errorf("jumping to step: %w", err)
		}
		renderGame(os.Stdout, e.Snapshot())
		return nil
	})
}

func runReset(ctx context.Context, namespace string) error {
	return withGame(ctx, namespace, func(e *game.Engine) error {
		if err := e.Reset(ctx); err != nil {
			return fmt.Errorf("resetting game: %w", err)
		}
		color.New(color.FgGreen).Println("  ✓ New game")
		fmt.Println()
		renderGame(os.Stdout, e.Snapshot())
		return nil
	})
}

func runHistory(ctx context.Context, namespace string) error {
	return withGame(ctx, namespace, func(e *game.Engine) error {
		renderMoves(os.Stdout, e.Moves())
		return nil
	})
}

func runGames(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	kv, err := store.Open(ctx, store.Options{
		Driver: cfg.Store.Driver,
		Path:   cfg.Store.Path,
		Logger: commandLogger(cfg.Logging),
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer kv.Close()

	games, err := game.ListGames(ctx, kv, cfg.Game.HistoryKey)
	if err != nil {
		return fmt.Errorf("listing games: %w", err)
	}

	if len(games) == 0 {
		fmt.Println("No games stored.")
		return nil
	}
	for _, ns := range games {
		if ns == "" {
			fmt.Println("  (default)")
			continue
		}
		fmt.Printf("  %s\n", ns)
	}
	return nil
}

func runNew(ctx context.Context) error {
	namespace := uuid.New().String()

	return withGame(ctx, namespace, func(e *game.Engine) error {
		green := color.New(color.FgGreen)
		green.Printf("  ✓ Created game %s\n\n", namespace)
		fmt.Println("  Play it with:")
		fmt.Printf("    tictac --game %s move 4\n\n", namespace)
		renderGame(os.Stdout, e.Snapshot())
		return nil
	})
}

func runInit() error {
	configPath := config.Path()
	if err := config.Write(configPath, config.Default()); err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("  ✓ Created config: %s\n", configPath)
	fmt.Println("\nTo start the server:")
	fmt.Println("  tictac serve")
	return nil
}

// intArg parses the single integer argument of a command.
func intArg(args []string, form string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("usage: tictac %s", form)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", args[0])
	}
	return n, nil
}

// renderGame prints the board, the status line and the step.
func renderGame(w io.Writer, v game.View) {
	renderBoard(w, v.Squares, v.WinningLine)
	fmt.Fprintln(w)

	status := color.New(color.Bold)
	if v.Winner != game.Empty {
		status = color.New(color.FgGreen, color.Bold)
	}
	status.Fprintf(w, "  %s\n", v.Status)
	color.New(color.FgHiBlack).Fprintf(w, "  step %d of %d\n", v.Step, len(v.History)-1)
}

// renderBoard prints the three rows. Empty squares show their index so the
// player knows what to pass to "move"; winning squares are highlighted.
func renderBoard(w io.Writer, b game.Board, winning []int) {
	highlight := make(map[int]bool, len(winning))
	for _, i := range winning {
		highlight[i] = true
	}

	for row := 0; row < 3; row++ {
		if row > 0 {
			fmt.Fprintln(w, "  ---+---+---")
		}
		cells := make([]string, 3)
		for col := 0; col < 3; col++ {
			i := row*3 + col
			cells[col] = " " + cellString(b[i], i, highlight[i]) + " "
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(cells, "|"))
	}
}

func cellString(c game.Cell, index int, winning bool) string {
	var attrs []color.Attribute
	switch c {
	case game.X:
		attrs = append(attrs, color.FgRed)
	case game.O:
		attrs = append(attrs, color.FgBlue)
	default:
		return color.HiBlackString("%d", index)
	}
	if winning {
		attrs = append(attrs, color.Bold, color.Underline)
	}
	return color.New(attrs...).Sprint(string(c))
}

// renderMoves prints the move list with the current step marked.
func renderMoves(w io.Writer, moves []game.Move) {
	for _, m := range moves {
		if m.Current {
			color.New(color.FgCyan).Fprintf(w, "→ %2d  %s\n", m.Step, m.Label)
			continue
		}
		fmt.Fprintf(w, "  %2d  %s\n", m.Step, m.Label)
	}
}
