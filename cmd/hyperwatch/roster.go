package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hyperwatch/internal/discord"
	"hyperwatch/internal/hyperscape"
	"hyperwatch/internal/roster"
	"hyperwatch/internal/storage"

	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [platform] <username>",
		Short: "Add a player to the roster",
		Long: `Look a player up and add them to the roster. The platform is one of
uplay (pc), xbl (xbox) or psn (ps, ps4, ps5) and defaults to uplay.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, username := hyperscape.DefaultPlatform, args[0]
			if len(args) == 2 {
				p, err := hyperscape.NormalizePlatform(args[0])
				if err != nil {
					return err
				}
				platform, username = p, args[1]
			}

			file := roster.Open(a.cfg.Roster.Path)
			names, err := file.Names()
			if err != nil {
				return err
			}
			for _, name := range names {
				if strings.EqualFold(name, username) {
					return fmt.Errorf("%w %s", roster.ErrAlreadyWatching, name)
				}
			}

			profile, err := a.client().GetUser(cmd.Context(), platform, username)
			if err != nil {
				return fmt.Errorf("failed to look up %s on %s: %w", username, platform, err)
			}
			if profile.Name == "" {
				profile.Name = username
			}

			entry, err := file.Add(roster.Entry{Username: profile.Name, Platform: platform, ID: profile.ID})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Now watching %s (%s, %s)\n", entry.Username, entry.Platform, entry.ID)
			a.announce(cmd.Context(), "Now watching **"+discord.Escape(entry.Username)+"**")
			return nil
		},
	}
}

func newUnwatchCmd(a *app) *cobra.Command {
	var archive bool

	cmd := &cobra.Command{
		Use:   "unwatch <username>",
		Short: "Remove a player from the roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := roster.Open(a.cfg.Roster.Path).Remove(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Stopped watching %s\n", entry.Username)
			a.announce(cmd.Context(), "Stopped watching **"+discord.Escape(entry.Username)+"**")

			if !archive || entry.ID == "" {
				return nil
			}

			store, err := storage.Open(cmd.Context(), a.cfg.StorageConfig())
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer store.Close()

			fs, ok := store.(*storage.FileStore)
			if !ok {
				return errors.New("--archive is only supported by the file backend")
			}
			n, err := fs.ArchivePlayer(cmd.Context(), entry.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Archived %d bundle(s)\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&archive, "archive", false, "compress the player's history and drop their baseline (file backend)")

	return cmd
}

func newWatchingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watching",
		Short: "List the roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := roster.Open(a.cfg.Roster.Path).Names()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "Not watching anyone")
				return nil
			}
			fmt.Fprintf(out, "Watching: %s\n", strings.Join(names, ", "))
			return nil
		},
	}
}

// announce posts a roster change to the summary webhook when one is set.
// Failures only warn; the roster file is already updated.
func (a *app) announce(ctx context.Context, msg string) {
	if a.cfg.Discord.WebhookURL == "" {
		return
	}
	client := discord.NewWebhookClient(a.cfg.Discord.WebhookURL, discord.WithLogger(a.logger))
	if err := client.Send(ctx, msg); err != nil {
		a.logger.WarnContext(ctx, "discord: failed to announce roster change", "error", err)
	}
}
