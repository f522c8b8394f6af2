package main

import (
	"os/signal"
	"syscall"

	"github.com/casabot/innkeeper/internal/config"
	"github.com/casabot/innkeeper/internal/dashboard"
	"github.com/casabot/innkeeper/internal/db"
	"github.com/casabot/innkeeper/internal/store"
	"github.com/casabot/innkeeper/internal/supervisor"
	"github.com/spf13/cobra"
)

// newDashboardCmd serves the monitor against the stored state only, with no
// live worker pool. Useful for inspecting a deployment from another machine.
func newDashboardCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the monitoring dashboard standalone",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			gdb, err := db.Connect(cfg.Database)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(gdb); err != nil {
				return err
			}
			dash, err := dashboard.New(dashboard.Opts{
				Store:    store.New(gdb),
				Registry: supervisor.NewRegistry(),
				Port:     cfg.Dashboard.Port,
			})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := dash.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
