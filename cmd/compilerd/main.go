package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/autonomy-edge/compilerd/internal/config"
	"github.com/autonomy-edge/compilerd/internal/toolchain"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct {
		NoWatch bool `help:"Disable configuration hot reload"`
	} `cmd:"" help:"Start the compiler service"`

	CheckTools struct{} `cmd:"" name:"check-tools" help:"Verify the external compiler binaries are installed and executable"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Write an example configuration file"`
}

func main() {
	ctx := kong.Parse(&CLI)

	// Set up logging
	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch ctx.Command() {
	case "serve":
		cfg := loadConfig()
		if err := runServe(cfg, CLI.Config, !CLI.Serve.NoWatch); err != nil {
			slog.Error("Serve failed", "error", err)
			os.Exit(1)
		}
	case "check-tools":
		cfg := loadConfig()
		if err := runCheckTools(cfg); err != nil {
			os.Exit(1)
		}
	case "init":
		if err := config.WriteExample(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote example configuration to %s\n", CLI.Config)
	default:
		slog.Error("Unknown command", "command", ctx.Command())
		os.Exit(1)
	}
}

// loadConfig reads the configured file, falling back to defaults when the
// default config path simply does not exist.
func loadConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && CLI.Config == "config.yaml" {
			slog.Info("No configuration file found, using defaults")
			return config.Default()
		}
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	return cfg
}

func runCheckTools(cfg *config.Config) error {
	return checkTools(cfg, os.Stdout, os.Stderr)
}

// checkTools verifies each configured binary in a fixed order so the
// report is stable run to run.
func checkTools(cfg *config.Config, stdout, stderr io.Writer) error {
	inv := &toolchain.Invoker{}
	failed := false
	tools := []struct{ name, path string }{
		{"xml2st", cfg.Toolchain.Xml2st},
		{"iec2c", cfg.Toolchain.Iec2c},
	}
	for _, tool := range tools {
		if err := inv.Check(tool.path); err != nil {
			fmt.Fprintf(stderr, "%s: NOT READY: %v\n", tool.name, err)
			failed = true
			continue
		}
		fmt.Fprintf(stdout, "%s: ok (%s)\n", tool.name, tool.path)
	}
	if failed {
		return fmt.Errorf("toolchain incomplete")
	}
	return nil
}

// waitForSignal blocks until SIGINT or SIGTERM.
func waitForSignal() os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return <-sigCh
}
