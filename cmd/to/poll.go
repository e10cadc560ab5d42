package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/trainorder/internal/config"
	"github.com/zulandar/trainorder/internal/delivery"
	"github.com/zulandar/trainorder/internal/gateway"
	"github.com/zulandar/trainorder/internal/retry"
	"github.com/zulandar/trainorder/internal/roster"
	"github.com/zulandar/trainorder/internal/store"
)

func newPollCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run a single delivery cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			storeClient := store.NewClient(cfg.Store.BaseURL, cfg.Store.Token, cfg.Store.Account, cfg.Store.Timeout)
			registry := roster.NewRegistry()

			syncer, err := roster.NewSyncer(storeClient, registry, cfg.Roster.SyncCron, roster.Hooks{}, out)
			if err != nil {
				return err
			}
			if err := syncer.SyncOnce(ctx); err != nil {
				return err
			}

			loop, err := delivery.NewLoop(delivery.Options{
				Store:    storeClient,
				Gateway:  gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Token, cfg.Gateway.Timeout),
				Registry: registry,
				Retries:  retry.NewTracker(cfg.Retry.Ceiling, cfg.Retry.ResetWindow),
				Poll:     cfg.Poll,
				Fallback: cfg.Fallback,
				Out:      out,
			})
			if err != nil {
				return err
			}

			if err := loop.RunOnce(ctx); err != nil {
				return err
			}

			snap := loop.Counters.Snapshot()
			fmt.Fprintf(out, "Cycle complete: %d delivered, %d suppressed, %d absorbed, %d retried, %d fallbacks\n",
				snap.Delivered, snap.Suppressed, snap.Absorbed, snap.Retried, snap.Fallbacks)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")
	return cmd
}
