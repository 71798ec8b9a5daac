package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/fixxit/fixxit/internal/agent"
	"github.com/fixxit/fixxit/internal/bridge"
	"github.com/fixxit/fixxit/internal/config"
	"github.com/fixxit/fixxit/internal/llm"
	. "github.com/fixxit/fixxit/internal/logging"
	"github.com/fixxit/fixxit/internal/registry"
)

const version = "1.0.0"

var cli struct {
	Config  string           `short:"c" help:"Path to fixxit.json." type:"path"`
	Debug   bool             `short:"d" help:"Enable debug logging."`
	Version kong.VersionFlag `help:"Print version and exit."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("fixxit"),
		kong.Description("Maintenance database assistant."),
		kong.Vars{"version": "fixxit " + version},
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	Init(&Config{
		Level:      logLevel(cfg.Logging.Level, cli.Debug),
		ShowCaller: cfg.Logging.ShowCaller,
	})
	L_info("fixxit %s starting", version)

	reg := registry.New(cfg.Tools.ManifestPath, cfg.Tools.ConfigPath)
	if err := reg.Load(); err != nil {
		// Load errors are advisory: the registry degrades to the
		// always-available set and a /reload can pick up a fixed file.
		L_warn("tool registry loaded with degraded config", "error", err)
	}

	var watcher *registry.Watcher
	if cfg.Tools.Watch() {
		if watcher, err = registry.NewWatcher(reg, 500*time.Millisecond); err != nil {
			L_warn("config watcher unavailable", "error", err)
		} else {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	provider, err := llm.New(cfg.LLM)
	if err != nil {
		L_fatal("failed to create LLM provider: %v", err)
	}

	br := bridge.New(bridge.Config{
		Command:        cfg.Bridge.Command,
		Args:           cfg.Bridge.Args,
		Dir:            cfg.Bridge.Dir,
		ConnectTimeout: cfg.Bridge.ConnectTimeout(),
		CallTimeout:    cfg.Bridge.CallTimeout(),
	}, reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ag := agent.New(cfg.Agent, reg, br, provider)
	if err := ag.Initialize(ctx); err != nil {
		L_fatal("initialization failed: %v", err)
	}
	defer ag.Shutdown()

	repl(ctx, ag)
}

// repl reads user queries from stdin until EOF, /quit, or a signal.
// Lines starting with / are session commands.
func repl(ctx context.Context, ag *agent.Agent) {
	fmt.Println("fixxit ready. Ask about machines, tickets, parts, fault codes.")
	fmt.Println("Commands: /status /reset /reload /quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := command(ag, line); quit {
				return
			}
			continue
		}

		fmt.Println(ag.ProcessUserMessage(ctx, line))
	}
}

// command handles one slash command; returns true to exit the loop.
func command(ag *agent.Agent, line string) bool {
	switch line {
	case "/quit", "/exit":
		return true
	case "/reset":
		ag.ResetContext()
		fmt.Println("Conversation context reset.")
	case "/reload":
		if err := ag.ReloadTools(); err != nil {
			fmt.Printf("Reload failed: %v\n", err)
		} else {
			fmt.Println("Tool configuration reloaded.")
		}
	case "/status":
		encoded, err := json.MarshalIndent(ag.GetStatus(), "", "  ")
		if err != nil {
			fmt.Printf("Status unavailable: %v\n", err)
		} else {
			fmt.Println(string(encoded))
		}
	default:
		fmt.Printf("Unknown command: %s\n", line)
	}
	return false
}

func logLevel(name string, debug bool) int {
	if debug {
		return LevelDebug
	}
	switch strings.ToLower(name) {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
