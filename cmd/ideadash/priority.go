package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/idea-dashboard/internal/model"
)

var priorityRank int

var priorityCmd = &cobra.Command{
	Use:   "priority",
	Short: "Manage priorities and their item links",
}

func init() {
	priorityAddCmd.Flags().IntVar(&priorityRank, "rank", model.DefaultRank, "rank on the 1-10 scale")

	priorityCmd.AddCommand(priorityAddCmd)
	priorityCmd.AddCommand(priorityListCmd)
	priorityCmd.AddCommand(priorityDeleteCmd)
	priorityCmd.AddCommand(priorityLinkCmd)
	priorityCmd.AddCommand(priorityUnlinkCmd)
}

var priorityAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a priority",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := application.Store.CreatePriority(cmd.Context(), args[0], priorityRank)
		if err != nil {
			return err
		}
		fmt.Printf("created priority %d: %s (rank %d)\n", p.ID, p.Name, p.Rank)
		return nil
	},
}

var priorityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List priorities, highest rank first",
	RunE: func(cmd *cobra.Command, args []string) error {
		priorities, err := application.Store.ListPriorities(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range priorities {
			tier, err := application.Store.TierForRank(cmd.Context(), p.Rank)
			if err != nil {
				return err
			}
			fmt.Printf("%4d  rank=%-2d  %-16s  %s\n", p.ID, p.Rank, tier.Label, p.Name)
		}
		return nil
	},
}

var priorityDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a priority and its item links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return application.Store.DeletePriority(cmd.Context(), id)
	},
}

var priorityLinkCmd = &cobra.Command{
	Use:   "link <item-id> <priority-id>",
	Short: "Attach a priority to an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID, err := parseID(args[0])
		if err != nil {
			return err
		}
		priorityID, err := parseID(args[1])
		if err != nil {
			return err
		}
		return application.Store.LinkPriority(cmd.Context(), itemID, priorityID)
	},
}

var priorityUnlinkCmd = &cobra.Command{
	Use:   "unlink <item-id> <priority-id>",
	Short: "Detach a priority from an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID, err := parseID(args[0])
		if err != nil {
			return err
		}
		priorityID, err := parseID(args[1])
		if err != nil {
			return err
		}
		return application.Store.UnlinkPriority(cmd.Context(), itemID, priorityID)
	},
}
