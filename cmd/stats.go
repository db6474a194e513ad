package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/calstats/internal/calendar"
)

type statsOptions struct {
	log     logOptions
	start   string
	end     string
	groupBy string
}

func newStatsCmd() *cobra.Command {
	var opts statsOptions

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print hours per category or status for a time range",
		Long: `Read the target mailbox's calendar for [start, end) and print the hours
spent per bucket as JSON. Buckets are the first event category
("Uncategorized" when none) or the free/busy status ("unknown" when absent).`,
		Example: `  calstats stats --start 2025-01-06T00:00:00Z --end 2025-01-13T00:00:00Z
  calstats stats --start 2025-01-06 --end 2025-01-13 --group-by status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runStats(ctx, cmd, opts, os.Getenv, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.start, "start", "", "Start of the range (ISO 8601)")
	cmd.Flags().StringVar(&opts.end, "end", "", "End of the range (ISO 8601)")
	cmd.Flags().StringVar(&opts.groupBy, "group-by", string(calendar.ByCategory), "Grouping: category or status")
	addLogFlags(cmd, &opts.log)
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	addConfigFlags(cmd, upstreamFlags)

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, opts statsOptions, getenv func(string) string, out io.Writer) error {
	if err := calendar.ValidateRange(opts.start, opts.end); err != nil {
		return err
	}
	dim, err := calendar.ParseDimension(opts.groupBy)
	if err != nil {
		return err
	}

	cfg := loadConfig(cmd, getenv)
	if err := cfg.ValidateUpstream(); err != nil {
		return err
	}

	logger, err := opts.log.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a, err := newApp(cfg, logger, nil)
	if err != nil {
		return err
	}

	buckets, err := a.calendar.Stats(ctx, cfg.Graph.TargetUser, opts.start, opts.end, dim)
	if err != nil {
		return fmt.Errorf("computing statistics: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(buckets)
}
