package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zulandar/trainorder/internal/config"
	"github.com/zulandar/trainorder/internal/dashboard"
	"github.com/zulandar/trainorder/internal/delivery"
	"github.com/zulandar/trainorder/internal/gateway"
	"github.com/zulandar/trainorder/internal/heartbeat"
	"github.com/zulandar/trainorder/internal/retry"
	"github.com/zulandar/trainorder/internal/roster"
	"github.com/zulandar/trainorder/internal/store"
	"github.com/zulandar/trainorder/internal/telegraph"
)

// shutdownAckTimeout bounds the shutdown acknowledgement call to the store.
const shutdownAckTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the delivery daemon",
		Long:  "Runs the delivery poll loop, per-agent heartbeats, roster sync, and the dashboard until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")
	return cmd
}

func runServe(parent context.Context, configPath string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storeClient := store.NewClient(cfg.Store.BaseURL, cfg.Store.Token, cfg.Store.Account, cfg.Store.Timeout)
	gatewayClient := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Token, cfg.Gateway.Timeout)
	registry := roster.NewRegistry()
	retries := retry.NewTracker(cfg.Retry.Ceiling, cfg.Retry.ResetWindow)

	alerts, err := buildAlerts(cfg.Telegraph)
	if err != nil {
		return err
	}
	defer alerts.Close()

	scheduler, err := heartbeat.NewScheduler(heartbeat.Options{
		Store:    storeClient,
		Gateway:  gatewayClient,
		Registry: registry,
		Alerts:   alerts,
		Config:   cfg.Heartbeat,
		Out:      out,
	})
	if err != nil {
		return err
	}

	syncer, err := roster.NewSyncer(storeClient, registry, cfg.Roster.SyncCron, roster.Hooks{
		OnUpsert: scheduler.Schedule,
		OnRemove: scheduler.Cancel,
	}, out)
	if err != nil {
		return err
	}

	loop, err := delivery.NewLoop(delivery.Options{
		Store:    storeClient,
		Gateway:  gatewayClient,
		Registry: registry,
		Retries:  retries,
		Alerts:   alerts,
		Poll:     cfg.Poll,
		Fallback: cfg.Fallback,
		Out:      out,
	})
	if err != nil {
		return err
	}

	// Seed the roster before anything fires, then replace the per-agent
	// timers with the staggered initial schedule.
	if err := syncer.SyncOnce(ctx); err != nil {
		return fmt.Errorf("serve: initial roster sync: %w", err)
	}
	scheduler.Start(ctx, registry.List())

	go syncer.Run(ctx)

	if cfg.Dashboard.Enabled {
		go func() {
			err := dashboard.Start(ctx, dashboard.StartOpts{
				Loop:      loop,
				Registry:  registry,
				Retries:   retries,
				Scheduler: scheduler,
				Syncer:    syncer,
				Port:      cfg.Dashboard.Port,
				Out:       out,
			})
			if err != nil {
				log.Printf("serve: dashboard: %v", err)
			}
		}()
	}

	loop.Run(ctx)

	// The loop has stopped and ctx cancellation has cleared the heartbeat
	// timers; acknowledge shutdown to the store before exiting.
	scheduler.StopAll()
	ackCtx, cancel := context.WithTimeout(context.Background(), shutdownAckTimeout)
	defer cancel()
	if err := storeClient.AcknowledgeShutdown(ackCtx); err != nil {
		log.Printf("serve: shutdown ack: %v", err)
	}
	fmt.Fprintf(out, "Shutdown complete.\n")
	return nil
}

// buildAlerts assembles the operator telegraph from configured adapters.
func buildAlerts(cfg config.TelegraphConfig) (*telegraph.Multi, error) {
	var notifiers []telegraph.Notifier

	if cfg.Slack.Token != "" {
		slack, err := telegraph.NewSlackNotifier(cfg.Slack.Token, cfg.Slack.Channel)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, slack)
	}
	if cfg.Discord.Token != "" {
		discord, err := telegraph.NewDiscordNotifier(cfg.Discord.Token, cfg.Discord.Channel)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, discord)
	}
	return telegraph.NewMulti(notifiers...), nil
}
