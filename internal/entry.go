// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/scribe/internal/builder"
	"github.com/starford/scribe/internal/mcpserver"
	"github.com/starford/scribe/internal/metrics"
	"github.com/starford/scribe/internal/server"
)

// BuildOptions are the per-invocation switches of a build.
type BuildOptions struct {
	Clean   bool
	NoCache bool
}

// ServeOptions are the per-invocation switches of the preview server.
type ServeOptions struct {
	// Port overrides server.port when non-zero.
	Port int
	// Build runs a build before serving.
	Build bool
}

func newApplication(opts []Option) (*application, error) {
	app := &application{clock: clockwork.NewRealClock(), output: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger builds the process logger from the app section and installs it as
// the default.
func (a *application) logger() *slog.Logger {
	cfg := a.config.App
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler
	if cfg.LogFormat == LogFormatText {
		handler = slog.NewTextHandler(a.output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(a.output, handlerOpts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func (a *application) builder(logger *slog.Logger, recorder metrics.Recorder) (*builder.Builder, error) {
	return builder.New(a.config.BuilderOptions(),
		builder.WithClock(a.clock),
		builder.WithLogger(logger),
		builder.WithRecorder(recorder))
}

// Build runs one site build.
func Build(ctx context.Context, bo BuildOptions, opts ...Option) (*builder.Stats, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	logger := app.logger()
	cfg := app.config

	logger.Info("Configuration loaded",
		slog.String("config_dir", cfg.Dir()),
		slog.String("output", cfg.Paths.Output),
		slog.String("log_level", cfg.App.LogLevel.String()))

	b, err := app.builder(logger, metrics.NoopRecorder{})
	if err != nil {
		return nil, err
	}
	stats, err := b.Build(ctx, builder.Flags{Clean: bo.Clean, NoCache: bo.NoCache})
	if err != nil {
		logger.Error("Build failed", slog.String("error", err.Error()))
		return nil, err
	}
	logger.Info("Build finished",
		slog.String("id", stats.ID),
		slog.Bool("published", stats.Published),
		slog.Int("new_posts", stats.Counts.NewPosts),
		slog.Int("cached_posts", stats.Counts.CachedPosts))
	return stats, nil
}

// Clean removes the built output, the staging tree and the cache.
func Clean(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	b, err := app.builder(app.logger(), metrics.NoopRecorder{})
	if err != nil {
		return err
	}
	_, err = b.Clean()
	return err
}

// Serve runs the preview server over the output directory.
func Serve(ctx context.Context, so ServeOptions, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger()
	cfg := app.config

	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	if so.Build {
		b, err := app.builder(logger, recorder)
		if err != nil {
			return err
		}
		if _, err := b.Build(ctx, builder.Flags{}); err != nil {
			return err
		}
	}

	port := cfg.Server.Port
	if so.Port != 0 {
		port = so.Port
	}
	srv := server.New(server.Config{
		Address: fmt.Sprintf(":%d", port),
		Root:    cfg.Paths.Output,
		HomeURL: cfg.Site.HomeURL,
		Metrics: recorder.Handler(),
	}, logger)

	if err := srv.Run(ctx); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// ServeMCP runs the MCP management server on stdio. Logs go to stderr so
// they do not corrupt the protocol stream.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()
	b, err := app.builder(logger, metrics.NoopRecorder{})
	if err != nil {
		return err
	}
	logger.Info("Starting MCP server on stdio")
	return mcpserver.New(b).ServeStdio()
}
