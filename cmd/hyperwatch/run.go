package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"hyperwatch/internal/discord"
	"hyperwatch/internal/observability"
	"hyperwatch/internal/roster"
	"hyperwatch/internal/storage"
	"hyperwatch/internal/tracker"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newRunCmd(a *app) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the update loop",
		Long: `Sweep the roster immediately and then on every poll interval until
SIGINT or SIGTERM. With --once a single sweep runs and its report is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if once {
				return a.runOnce(cmd)
			}
			return a.run()
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep and exit")

	return cmd
}

// pipeline is everything a sweep needs
type pipeline struct {
	store   storage.Store
	tracker *tracker.Tracker
	roster  tracker.RosterFunc
	metrics *observability.Metrics
}

func (a *app) pipeline(ctx context.Context) (*pipeline, error) {
	store, err := storage.Open(ctx, a.cfg.StorageConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	client := a.client()

	sinks := tracker.MultiSink{tracker.LogSink{Logger: a.logger}}
	if a.cfg.Discord.WebhookURL != "" {
		sinks = append(sinks, discord.NewWebhookClient(a.cfg.Discord.WebhookURL, discord.WithLogger(a.logger)))
	}

	metrics := observability.NewMetrics()
	t := tracker.New(client, store, store, sinks, a.cfg.TrackerConfig(),
		tracker.WithLogger(a.logger),
		tracker.WithMetrics(metrics),
	)

	return &pipeline{
		store:   store,
		tracker: t,
		roster:  roster.Open(a.cfg.Roster.Path).RosterFunc(client, a.logger),
		metrics: metrics,
	}, nil
}

func (a *app) run() error {
	p, err := a.pipeline(context.Background())
	if err != nil {
		return err
	}
	defer p.store.Close()

	var server *http.Server
	if addr := a.cfg.Metrics.Addr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", p.metrics.Handler())
		server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		go func() {
			a.logger.Info("metrics: listening", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics: server failed", "error", err)
			}
		}()
	}

	ctx := tracker.SetupSignalHandler(a.logger, func(ctx context.Context) {
		if server == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics: shutdown failed", "error", err)
		}
	})

	err = p.tracker.Run(ctx, p.roster)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) runOnce(cmd *cobra.Command) error {
	ctx := cmd.Context()

	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	defer p.store.Close()

	baselines, err := p.store.Baselines(ctx)
	if err != nil {
		return fmt.Errorf("failed to load baselines: %w", err)
	}
	players, err := p.roster(ctx)
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}

	_, report := p.tracker.Sweep(ctx, players, baselines)

	out := cmd.OutOrStdout()
	for _, res := range report.Results {
		line := fmt.Sprintf("%-20s %s", res.Player.Name, res.Outcome)
		if res.Range != nil {
			line += " " + res.Range.String()
		}
		if res.Err != nil {
			line += ": " + res.Err.Error()
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "seeded %d, unchanged %d, updated %d, failed %d in %s\n",
		report.Seeded, report.Unchanged, report.Updated, report.Failed, report.Duration.Round(time.Millisecond))

	if report.Failed > 0 {
		return fmt.Errorf("%d player(s) failed", report.Failed)
	}
	return nil
}
