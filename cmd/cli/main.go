package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/scalegrid/internal/app"
	"github.com/vk/scalegrid/internal/cli"
	"github.com/vk/scalegrid/internal/hcl"
)

// main is the entrypoint for the scalegrid application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The real main function handles errors and exit codes.
	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			stop()
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	env, err := hcl.Environment(appConfig.EnvFiles...)
	if err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	// Instantiate the concrete HCL loader to pass to the app.
	loader := hcl.NewLoader(env)
	scalegridApp := app.NewApp(outW, appConfig, loader)

	return scalegridApp.Run(ctx)
}
