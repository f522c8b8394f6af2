package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/casabot/innkeeper/internal/brain"
	"github.com/casabot/innkeeper/internal/config"
	"github.com/casabot/innkeeper/internal/curator"
	"github.com/casabot/innkeeper/internal/db"
	"github.com/casabot/innkeeper/internal/host"
	"github.com/casabot/innkeeper/internal/observer"
	"github.com/casabot/innkeeper/internal/store"
	"github.com/casabot/innkeeper/internal/worker"
	"github.com/spf13/cobra"
)

func newWorkerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker <thread-id>",
		Short: "Run a single conversation worker directly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx, cmd, cfg, args[0])
		},
	}
}

func runWorker(ctx context.Context, cmd *cobra.Command, cfg *config.Config, threadID string) error {
	out := cmd.OutOrStdout()

	gdb, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}
	st := store.New(gdb)

	obs, err := observer.NewBrowser(ctx, observer.BrowserOpts{Config: cfg.Browser})
	if err != nil {
		return err
	}
	defer obs.Close()

	ai, err := brain.NewGemini(ctx, brain.GeminiOpts{Config: cfg.AI})
	if err != nil {
		return err
	}

	adapter, err := createAdapter(cfg.Notifier)
	if err != nil {
		return err
	}
	if err := adapter.Connect(ctx); err != nil {
		return err
	}
	defer adapter.Close()

	cur, err := curator.New(curator.Opts{Store: st, Brain: ai})
	if err != nil {
		return err
	}
	bridge, err := host.New(host.Opts{
		Store:        st,
		Adapter:      adapter,
		Brain:        ai,
		Curator:      cur,
		WatchTimeout: cfg.WatchTimeout(),
		Retention:    cfg.Retention(),
		Out:          out,
	})
	if err != nil {
		return err
	}

	guestName, err := obs.GuestName(ctx, threadID)
	if err != nil {
		guestName = ""
	}
	w, err := worker.New(worker.Opts{
		ThreadID:      threadID,
		GuestName:     guestName,
		Store:         st,
		Observer:      obs,
		Brain:         ai,
		Bridge:        bridge,
		Curator:       cur,
		CheckInterval: cfg.CheckInterval(),
		IdleTimeout:   cfg.IdleTimeout(),
		MinMessageLen: cfg.Worker.MinMessageLen,
		MessagePause:  cfg.MessagePause(),
		Retention:     cfg.Retention(),
		Location:      cfg.Location(),
		FactsPath:     cfg.Knowledge.FactsPath,
		Out:           out,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "worker started for thread %s\n", threadID)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
