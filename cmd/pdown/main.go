package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgnsrekt/pdown/internal/config"
	"github.com/urfave/cli/v3"
)

func init() {
	// -h belongs to --human-readable, as in ls(1).
	cli.HelpFlag = &cli.BoolFlag{Name: "help", Usage: "display help for command"}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	runner := NewRunner(RunnerOpts{Config: cfg})
	app := &cli.Command{
		Name:           "pdown",
		Usage:          "List and download Proton Drive shares",
		Version:        "1.0.0",
		DefaultCommand: "dl",
		Flags:          globalFlags(),
		Commands:       runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		if !errors.Is(err, errSharesFailed) {
			if _, writeErr := io.WriteString(os.Stderr, runner.palette.err.Render(err.Error())+"\n"); writeErr != nil {
				slog.Debug("stderr write failed", "error", writeErr)
			}
		}
		stop()
		os.Exit(1)
	}
}
