package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/vk/scalegrid/internal/config"
	"github.com/vk/scalegrid/internal/ctxlog"
	"github.com/vk/scalegrid/internal/experiment"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	config  *Config
	loader  config.Loader
	invoker experiment.Invoker
}

// Option configures an App.
type Option func(*App)

// WithInvoker replaces the engine described in the experiment definition.
// It is primarily for testing.
func WithInvoker(inv experiment.Invoker) Option {
	return func(a *App) { a.invoker = inv }
}

// NewApp is the constructor for the main application. It returns an App
// with its own isolated logger. The experiment definition is loaded by Run
// because the init command creates it.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, opts ...Option) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	a := &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		loader: loader,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes the configured command.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", a.config.Command)
	defer a.logger.Debug("App.Run method finished.")

	if a.config.Command == "init" {
		return a.initExperiment(ctx)
	}

	sess, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer sess.close(ctx)

	switch a.config.Command {
	case "write":
		return a.write(ctx, sess)
	case "status":
		return a.status(ctx, sess)
	case "run":
		return a.run(ctx, sess)
	case "collect":
		return a.collect(ctx, sess)
	case "all":
		return a.all(ctx, sess)
	}
	return nil
}
