package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/surfwatch/surfwatch-go/cmd"
	"github.com/surfwatch/surfwatch-go/internal/conf"
	"github.com/surfwatch/surfwatch-go/internal/logging"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	logging.Init()

	// Config must be loaded before cobra parses flags, so --config is
	// picked out of the arguments by hand here.
	settings, err := conf.Load(configPathArg(os.Args[1:]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return err
	}
	if err := conf.ValidateSettings(settings); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return err
	}

	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
	}

	// A termination signal cancels the command context so in-flight downloads
	// and transactions wind down instead of being killed mid-write.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error("Command failed", "error", err)
		return err
	}
	return nil
}

// configPathArg extracts the value of a --config flag from the arguments,
// returning an empty string when the flag is absent.
func configPathArg(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}
