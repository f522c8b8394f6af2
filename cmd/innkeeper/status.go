package main

import (
	"fmt"

	"github.com/casabot/innkeeper/internal/config"
	"github.com/casabot/innkeeper/internal/db"
	"github.com/casabot/innkeeper/internal/store"
	"github.com/spf13/cobra"
)

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored threads, waiting requests and knowledge entries",
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
			st := store.New(gdb)
			out := cmd.OutOrStdout()

			threads, err := st.Threads()
			if err != nil {
				return err
			}
			waiting, err := st.WaitingRequests()
			if err != nil {
				return err
			}
			entries, err := st.QASnapshot()
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "property: %s\n", cfg.Property)
			fmt.Fprintf(out, "threads: %d\n", len(threads))
			fmt.Fprintf(out, "waiting host requests: %d\n", len(waiting))
			for _, req := range waiting {
				fmt.Fprintf(out, "  %s (%s): %s\n", req.ID, req.GuestName, req.GuestMessage)
			}
			fmt.Fprintf(out, "knowledge entries: %d\n", len(entries))
			return nil
		},
	}
}
