package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push any pending mirror upload now",
	Long: `Sync flushes the debounced mirror pusher so the remote copy of the
database image catches up immediately instead of after the quiet period.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application.Flush(cmd.Context())
		fmt.Println("mirror flushed")
		return nil
	},
}
