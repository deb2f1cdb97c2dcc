// ABOUTME: Entry point for the tictac command line and game server
// ABOUTME: Dispatches subcommands and builds the logger, store and engine from config

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/tictac/internal/config"
	"github.com/2389/tictac/internal/game"
	"github.com/2389/tictac/internal/server"
	"github.com/2389/tictac/internal/store"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const banner = `
  _   _        _
 | |_(_) ___  | |_ __ _  ___
 | __| |/ __| | __/ _' |/ __|
 | |_| | (__  | || (_| | (__
  \__|_|\___|  \__\__,_|\___|
`

const usage = `Usage: tictac [--game NAME] <command> [args]

Commands:
  serve          Start the HTTP API
  show           Print the current board
  move CELL      Play the next mark at CELL (0-8)
  goto STEP      Jump to STEP in the history
  reset          Start a new game
  history        List the moves of the game
  games          List stored games
  new            Create a game with a fresh name
  init           Write a default config file

Flags:
  --game NAME    Use the game stored under NAME instead of the default one`

func main() {
	cmd, args, namespace, err := parseArgs(os.Args[1:])
	if err != nil || cmd == "" {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		}
		fmt.Println(usage)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "serve":
		err = runServe(ctx, namespace)
	case "show":
		err = runShow(ctx, namespace)
	case "move":
		err = runMove(ctx, namespace, args)
	case "goto":
		err = runGoto(ctx, namespace, args)
	case "reset":
		err = runReset(ctx, namespace)
	case "history":
		err = runHistory(ctx, namespace)
	case "games":
		err = runGames(ctx)
	case "new":
		err = runNew(ctx)
	case "init":
		err = runInit()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseArgs splits the command line into the command, its positional
// arguments and the --game flag, which may appear anywhere.
// Supports both "--game value" and "--game=value" formats.
func parseArgs(argv []string) (cmd string, args []string, namespace string, err error) {
	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--game" || arg == "-g":
			if i+1 >= len(argv) {
				return "", nil, "", fmt.Errorf("%s requires a value", arg)
			}
			namespace = argv[i+1]
			i++
		case strings.HasPrefix(arg, "--game="):
			namespace = strings.TrimPrefix(arg, "--game=")
		case arg == "-h" || arg == "--help":
			return "", nil, "", nil
		case strings.HasPrefix(arg, "-") && !isNumber(arg):
			return "", nil, "", fmt.Errorf("unknown flag: %s", arg)
		case cmd == "":
			cmd = arg
		default:
			args = append(args, arg)
		}
	}
	if err := config.ValidateNamespace(namespace); err != nil {
		return "", nil, "", fmt.Errorf("--game: %w", err)
	}
	return cmd, args, namespace, nil
}

func isNumber(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// loadConfig reads the config file, falling back to defaults when none exists.
func loadConfig() (*config.Config, string, error) {
	configPath := config.Path()
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

// openGame opens the configured store and the game in it. A non-empty
// namespace replaces the configured namespace. The caller closes the store.
func openGame(ctx context.Context, cfg *config.Config, namespace string, logger *slog.Logger) (*game.Engine, store.KVStore, error) {
	kv, err := store.Open(ctx, store.Options{
		Driver: cfg.Store.Driver,
		Path:   cfg.Store.Path,
		Logger: logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	engine, err := game.Open(ctx, kv, gameOptions(cfg, namespace, logger))
	if err != nil {
		_ = kv.Close()
		return nil, nil, fmt.Errorf("opening game: %w", err)
	}
	return engine, kv, nil
}

// gameOptions maps the game config section onto engine options. A namespace
// selects the namespaced default keys.
func gameOptions(cfg *config.Config, namespace string, logger *slog.Logger) game.Options {
	if namespace == "" {
		namespace = cfg.Game.Namespace
	}

	opts := game.Options{
		StepKey:    cfg.Game.StepKey,
		HistoryKey: cfg.Game.HistoryKey,
	}
	if namespace != "" {
		opts = game.NamespacedOptions(namespace)
	}
	opts.Codec = cfg.Game.Codec
	opts.ResetOnCorrupt = cfg.Game.ResetOnCorrupt
	opts.Logger = logger
	return opts
}

func runServe(ctx context.Context, namespace string) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	engine, kv, err := openGame(ctx, cfg, namespace, logger)
	if err != nil {
		return err
	}
	defer kv.Close()

	stepKey, historyKey := engine.Keys()

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Store:     %s %s\n", cfg.Store.Driver, cfg.Store.Path)
	green.Print("    ▶ ")
	fmt.Printf("Game:      %s / %s\n", stepKey, historyKey)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	fmt.Println()

	logger.Info("starting tictac",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"store", cfg.Store.Driver,
	)

	srv := server.New(server.Config{
		HTTPAddr:           cfg.Server.HTTPAddr,
		IdempotencyTTL:     cfg.Server.IdempotencyTTL,
		IdempotencyMaxKeys: cfg.Server.IdempotencyMaxKeys,
	}, engine, logger)

	return srv.Run(ctx)
}

// setupLogger builds the process logger from the logging config.
func setupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = &colorHandler{
			out:   w,
			mu:    &sync.Mutex{},
			level: level,
		}
	}

	return slog.New(handler)
}

// commandLogger is used by the one-shot commands: it writes to stderr and only
// reports warnings unless debug logging is configured.
func commandLogger(cfg config.LoggingConfig) *slog.Logger {
	if parseLevel(cfg.Level) > slog.LevelDebug && parseLevel(cfg.Level) < slog.LevelWarn {
		cfg.Level = "warn"
	}
	return setupLogger(cfg, os.Stderr)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	out    io.Writer
	mu     *sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	prefix := strings.Join(h.groups, ".")
	if prefix != "" {
		prefix += "."
	}

	// Handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + prefix + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, buf.String())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		out:    h.out,
		mu:     h.mu,
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		out:    h.out,
		mu:     h.mu,
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
