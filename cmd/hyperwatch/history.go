package main

import (
	"fmt"
	"text/tabwriter"

	"hyperwatch/internal/bundle"
	"hyperwatch/internal/storage"
	"hyperwatch/internal/tracker"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <before.json> <after.json>",
		Short: "Diff two snapshot files",
		Long: `Compute the stats delta between two snapshot files and print it with its
highlights as JSON. Either file may hold a bare snapshot or a player document.`,
		Args: cobra.ExactArgs(2),
		// Needs no configuration
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := tracker.LoadSnapshot(args[0])
			if err != nil {
				return err
			}
			after, err := tracker.LoadSnapshot(args[1])
			if err != nil {
				return err
			}

			res, err := tracker.Diff(before, after)
			if err != nil {
				return err
			}
			return writeJSON(cmd, res)
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <player-id> [range]",
		Short: "List recorded bundles of a player",
		Long: `Without a range, list every bundle recorded for the player. With a range
("11" or "11-15"), print that bundle as JSON.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := storage.Open(ctx, a.cfg.StorageConfig())
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer store.Close()

			if len(args) == 2 {
				r, err := bundle.ParseRange(args[1])
				if err != nil {
					return err
				}
				b, err := store.Bundle(ctx, args[0], r)
				if err != nil {
					return err
				}
				return writeJSON(cmd, b)
			}

			bundles, err := store.Bundles(ctx, args[0])
			if err != nil {
				return err
			}
			if len(bundles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No bundles recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RANGE\tGAMES\tRECORDED\tKILLS\tDAMAGE\tKD")
			for _, b := range bundles {
				var kills, damage int64
				kd := ""
				if b.Diff != nil {
					kills, damage, kd = b.Diff.Kills, b.Diff.DamageDone, b.Diff.KD
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
					b.Range, b.Games, humanize.Time(b.Time), humanize.Comma(kills), humanize.Comma(damage), kd)
			}
			return w.Flush()
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
