package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage labeled snapshots of the dataset",
}

func init() {
	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
}

var backupCreateCmd = &cobra.Command{
	Use:   "create [label]",
	Short: "Take a snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := "manual"
		if len(args) == 1 {
			label = args[0]
		}
		key, err := application.Backups.Snapshot(cmd.Context(), label)
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := application.Backups.List()
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Printf("%s  %-20s  %s\n",
				info.Timestamp.Format(time.RFC3339), info.Label, info.Key)
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <key>",
	Short: "Replace the live dataset with a snapshot",
	Long: `Restore replaces everything in the database with the snapshot's contents.
A pre-restore snapshot is taken first, so a restore can itself be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Backups.Restore(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("restored %s\n", args[0])
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the full dataset as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := application.Backups.Export(cmd.Context())
		if err != nil {
			return err
		}
		if len(args) == 0 {
			_, err = os.Stdout.Write(append(data, '\n'))
			return err
		}
		return os.WriteFile(args[0], data, 0o644)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the dataset with a JSON export",
	Long: `Import replaces everything in the database with the exported dataset.
A pre-import snapshot is taken first, so an import can itself be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if err := application.Backups.Import(cmd.Context(), data); err != nil {
			return err
		}
		fmt.Printf("imported %s\n", args[0])
		return nil
	},
}
