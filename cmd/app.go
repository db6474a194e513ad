package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/teemow/calstats/internal/calendar"
	"github.com/teemow/calstats/internal/config"
	"github.com/teemow/calstats/internal/graph"
	"github.com/teemow/calstats/internal/identity"
	"github.com/teemow/calstats/internal/instrumentation"
	"github.com/teemow/calstats/internal/logging"
	"github.com/teemow/calstats/internal/server"
)

// logOptions selects the log handler shared by all commands.
type logOptions struct {
	format string
	level  string
	debug  bool
}

func addLogFlags(cmd *cobra.Command, o *logOptions) {
	cmd.Flags().StringVar(&o.format, "log-format", logging.FormatText, "Log format: text or json")
	cmd.Flags().StringVar(&o.level, "log-level", "info", "Log level: debug, info, warn or error")
	cmd.Flags().BoolVar(&o.debug, "debug", false, "Enable debug logging (same as --log-level debug)")
}

func (o logOptions) newLogger(w io.Writer) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch {
	case o.debug:
		level = slog.LevelDebug
	case o.level != "":
		var err error
		if level, err = logging.ParseLevel(o.level); err != nil {
			return nil, err
		}
	}
	return logging.NewLogger(o.format, level, w), nil
}

// app wires the token manager, the Graph client and the calendar service
// for one configuration.
type app struct {
	tokens   *identity.TokenManager
	graph    *graph.Client
	calendar *calendar.Service
}

func newApp(cfg config.Config, logger *slog.Logger, metrics *instrumentation.Metrics) (*app, error) {
	tokens, err := identity.NewTokenManager(identity.CredentialsFromConfig(cfg.Identity), identity.ManagerConfig{
		ExpiryMargin:   cfg.Identity.ExpiryMargin,
		RequestTimeout: cfg.Graph.Timeout,
		Logger:         logging.NewSlogAdapter(logging.WithComponent(logger, "identity")),
		Metrics:        metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}

	client, err := graph.NewClient(tokens, graph.Config{
		BaseURL:   cfg.Graph.BaseURL,
		Timeout:   cfg.Graph.Timeout,
		RateLimit: cfg.Graph.RateLimit,
		RateBurst: cfg.Graph.RateBurst,
		Logger:    logging.NewSlogAdapter(logging.WithComponent(logger, "graph")),
		Metrics:   metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Graph client: %w", err)
	}

	svc := calendar.NewService(client, calendar.ServiceConfig{
		MaxPages: cfg.Graph.MaxPages,
		Logger:   logging.NewSlogAdapter(logging.WithComponent(logger, "calendar")),
		Metrics:  metrics,
	})

	return &app{tokens: tokens, graph: client, calendar: svc}, nil
}

// serverContext builds the context shared by the HTTP handlers and MCP tools.
func (a *app) serverContext(ctx context.Context, cfg config.Config, logger *slog.Logger) (*server.ServerContext, error) {
	sc, err := server.NewServerContext(ctx, server.ServerContextConfig{
		Calendar:   a.calendar,
		TargetUser: cfg.Graph.TargetUser,
		Tokens:     a.tokens,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create server context: %w", err)
	}
	return sc, nil
}
