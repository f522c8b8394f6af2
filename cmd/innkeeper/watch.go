package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/casabot/innkeeper/internal/brain"
	"github.com/casabot/innkeeper/internal/config"
	"github.com/casabot/innkeeper/internal/curator"
	"github.com/casabot/innkeeper/internal/dashboard"
	"github.com/casabot/innkeeper/internal/db"
	"github.com/casabot/innkeeper/internal/host"
	"github.com/casabot/innkeeper/internal/notify"
	"github.com/casabot/innkeeper/internal/notify/discord"
	"github.com/casabot/innkeeper/internal/notify/slack"
	"github.com/casabot/innkeeper/internal/observer"
	"github.com/casabot/innkeeper/internal/store"
	"github.com/casabot/innkeeper/internal/supervisor"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func newWatchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the monitor daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, cfg)
		},
	}
}

func runWatch(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
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

	loc := cfg.Location()

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

	sup, err := supervisor.New(supervisor.Opts{
		Store:         st,
		Observer:      obs,
		Brain:         ai,
		Bridge:        bridge,
		Curator:       cur,
		PollInterval:  cfg.PollInterval(),
		CheckInterval: cfg.CheckInterval(),
		IdleTimeout:   cfg.IdleTimeout(),
		MinMessageLen: cfg.Worker.MinMessageLen,
		MessagePause:  cfg.MessagePause(),
		Retention:     cfg.Retention(),
		FactsPath:     cfg.Knowledge.FactsPath,
		Location:      loc,
		Out:           out,
	})
	if err != nil {
		return err
	}
	bridge.SetWaker(sup)

	sched, err := startCron(ctx, cfg, loc, bridge)
	if err != nil {
		return err
	}
	if sched != nil {
		defer sched.Stop()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 3)

	go func() { errCh <- bridge.Run(runCtx) }()
	go func() { errCh <- sup.Run(runCtx) }()
	if cfg.Dashboard.Enabled {
		dash, err := dashboard.New(dashboard.Opts{
			Store:    st,
			Registry: sup.Registry(),
			Events:   sup.Events(),
			Port:     cfg.Dashboard.Port,
		})
		if err != nil {
			return err
		}
		go func() { errCh <- dash.Run(runCtx) }()
		fmt.Fprintf(out, "dashboard listening on :%d\n", cfg.Dashboard.Port)
	}

	fmt.Fprintf(out, "innkeeper watching %s\n", cfg.Property)
	err = <-errCh
	cancel()
	if ctx.Err() != nil {
		fmt.Fprintln(out, "innkeeper stopped")
		return nil
	}
	return err
}

// startCron wires the digest and prune sweeps to their cron expressions.
// Both are optional.
func startCron(ctx context.Context, cfg *config.Config, loc *time.Location, bridge *host.Bridge) (*cron.Cron, error) {
	if cfg.Monitor.DigestCron == "" && cfg.Monitor.PruneCron == "" {
		return nil, nil
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched := cron.New(cron.WithParser(parser), cron.WithLocation(loc))
	if spec := cfg.Monitor.DigestCron; spec != "" {
		if _, err := sched.AddFunc(spec, func() {
			if err := bridge.Digest(ctx); err != nil {
				log.Printf("digest: %v", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("invalid digest cron %q: %w", spec, err)
		}
	}
	if spec := cfg.Monitor.PruneCron; spec != "" {
		if _, err := sched.AddFunc(spec, func() {
			if err := bridge.Sweep(ctx); err != nil {
				log.Printf("sweep: %v", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("invalid prune cron %q: %w", spec, err)
		}
	}
	sched.Start()
	return sched, nil
}

// createAdapter builds the notification adapter for the configured platform.
func createAdapter(cfg config.NotifierConfig) (notify.Adapter, error) {
	switch cfg.Platform {
	case "slack":
		return slack.New(slack.Opts{
			AppToken: cfg.Slack.AppToken,
			BotToken: cfg.Slack.BotToken,
			Channel:  cfg.Channel,
		})
	case "discord":
		return discord.New(discord.Opts{
			BotToken: cfg.Discord.BotToken,
			Channel:  cfg.Channel,
		})
	default:
		return nil, fmt.Errorf("unsupported notifier platform %q", cfg.Platform)
	}
}
