// Package config handles configuration loading for tictac.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. Keys missing from the file keep the values from Default().
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from TICTAC_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/tictac/config.yaml
//  3. ~/.config/tictac/config.yaml
//
// A missing file is not an error for LoadOrDefault; `tictac init` writes the
// defaults out.
//
// # Environment Variable Expansion
//
//	store:
//	  path: "${TICTAC_DB}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to an empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//	  idempotency_ttl: "5m"        # replay window for Idempotency-Key
//	  idempotency_max_keys: 1024
//
//	store:
//	  driver: "sqlite"             # sqlite, sqlite3, badger, memory
//	  path: "~/.local/share/tictac/tictac.db"
//
//	game:
//	  namespace: ""                # prefixes both keys with "<ns>:"
//	  step_key: "ttt-step"
//	  history_key: "ttt-hist"
//	  codec: "json"                # json, yaml
//	  reset_on_corrupt: false
//
//	logging:
//	  level: "info"                # debug, info, warn, error
//	  format: "text"               # text, json
//
// # Usage
//
//	cfg, err := config.LoadOrDefault(config.Path())
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
