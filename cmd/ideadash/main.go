// Package main provides the ideadash CLI over the dashboard data layer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/idea-dashboard/internal/app"
	"github.com/nhle/idea-dashboard/internal/logging"
	"github.com/nhle/idea-dashboard/internal/model"
)

var (
	// configFile is set by the --config flag.
	configFile string

	// application is initialized on startup for commands that touch data.
	application *app.App
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ideadash",
	Short: "ideadash tracks topics, ideas, tasks and priorities",
	Long: `ideadash is a personal dashboard data layer: a hierarchy of topics,
ideas, tasks, projects and reminders in an embedded SQLite database, with
labeled backups and an optional remote mirror of the database image.`,
	PersistentPreRunE:  initApp,
	PersistentPostRunE: closeApp,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default: ~/.config/ideadash/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(reorderCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(priorityCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(tokenCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("ideadash v0.1.0")
	},
}

// skipsInit reports commands that never need the database.
func skipsInit(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "token", "help", "completion":
			return true
		}
	}
	return false
}

// initApp loads config and boots the data layer.
func initApp(cmd *cobra.Command, args []string) error {
	if skipsInit(cmd) {
		return nil
	}

	path := configFile
	if path == "" {
		path = model.DefaultConfigPath()
	}
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.File)
	application = app.New(cfg, logger)
	return application.Init(cmd.Context())
}

func closeApp(cmd *cobra.Command, args []string) error {
	if application == nil {
		return nil
	}
	application.Flush(cmd.Context())
	return application.Close()
}
