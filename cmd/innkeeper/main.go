// Command innkeeper monitors a guest-messaging inbox, answers questions from
// a knowledge base and escalates to the host over chat.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "innkeeper",
		Short:         "Guest-conversation monitoring and escalation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "innkeeper.yaml", "path to config file")

	cmd.AddCommand(
		newWatchCmd(&configPath),
		newWorkerCmd(&configPath),
		newDBCmd(&configPath),
		newStatusCmd(&configPath),
		newLoginCmd(&configPath),
		newDashboardCmd(&configPath),
		newVersionCmd(),
	)
	return cmd
}
