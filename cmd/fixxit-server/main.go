// fixxit-server is the stdio MCP backend: a JSON-RPC server over
// stdin/stdout exposing the maintenance database as tools. All
// diagnostics go to stderr; stdout carries only protocol frames.
package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/alecthomas/kong"

	. "github.com/fixxit/fixxit/internal/logging"
)

const version = "1.0.0"

var cli struct {
	Config  string           `short:"c" default:"fixxit-server.toml" help:"Path to server config." type:"path"`
	Debug   bool             `short:"d" help:"Enable debug logging."`
	Version kong.VersionFlag `help:"Print version and exit."`
}

// serverConfig is the TOML server configuration.
type serverConfig struct {
	Database databaseConfig `toml:"database"`
	Limits   limitsConfig   `toml:"limits"`
}

type databaseConfig struct {
	Path          string `toml:"path"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
}

type limitsConfig struct {
	DefaultRows int `toml:"default_rows"`
	MaxRows     int `toml:"max_rows"`
}

func loadConfig(path string) (serverConfig, error) {
	cfg := serverConfig{
		Database: databaseConfig{Path: "maintenance.db", BusyTimeoutMS: 5000},
		Limits:   limitsConfig{DefaultRows: 50, MaxRows: 1000},
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	kong.Parse(&cli,
		kong.Name("fixxit-server"),
		kong.Description("Maintenance database MCP server."),
		kong.Vars{"version": "fixxit-server " + version},
	)

	level := LevelInfo
	if cli.Debug {
		level = LevelDebug
	}
	Init(&Config{Level: level})

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		L_fatal("failed to load config: %v", err)
	}

	store, err := openStore(cfg.Database)
	if err != nil {
		L_fatal("failed to open database: %v", err)
	}
	defer store.Close()

	srv := newServer(store, cfg.Limits)
	L_info("fixxit-server %s serving on stdio", version)
	if err := srv.serve(os.Stdin, os.Stdout); err != nil {
		L_fatal("server terminated: %v", err)
	}
}
