package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/idea-dashboard/internal/model"
	"github.com/nhle/idea-dashboard/internal/store"
)

var (
	addParent     int64
	addTopic      int64
	addType       string
	addStatus     string
	addDue        string
	addDifficulty string
	addPurpose    string

	listType   string
	listStatus string
	listTopic  int64
	listParent int64

	deleteCascade bool

	moveParent int64

	reorderParent int64

	topLimit int
)

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Create an item",
	Long: `Add creates a new item. The type defaults to task; give --parent to nest
it under another item (a parent task becomes a project automatically).

Example:
  ideadash add "Plan the darkroom session" --parent 3
  ideadash add "Photography" --type topic
  ideadash add "Renew passport" --due 2026-09-15 --difficulty easy`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().Int64Var(&addParent, "parent", 0, "parent item id")
	addCmd.Flags().Int64Var(&addTopic, "topic", 0, "topic item id (derived from parent when omitted)")
	addCmd.Flags().StringVar(&addType, "type", "", "item type: topic, idea, task, project, reminder (default task)")
	addCmd.Flags().StringVar(&addStatus, "status", "", "initial status: new, backlog, done (default new)")
	addCmd.Flags().StringVar(&addDue, "due", "", "due date (YYYY-MM-DD)")
	addCmd.Flags().StringVar(&addDifficulty, "difficulty", "", "difficulty: easy, medium, hard")
	addCmd.Flags().StringVar(&addPurpose, "purpose", "", "why this item exists")

	listCmd.Flags().StringVar(&listType, "type", "", "filter by item type")
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	listCmd.Flags().Int64Var(&listTopic, "topic", 0, "filter by topic id")
	listCmd.Flags().Int64Var(&listParent, "parent", 0, "filter by parent id")

	deleteCmd.Flags().BoolVar(&deleteCascade, "cascade", false,
		"delete the whole subtree instead of making children roots")

	moveCmd.Flags().Int64Var(&moveParent, "parent", 0, "new parent id (omit to make the item a root)")

	reorderCmd.Flags().Int64Var(&reorderParent, "parent", 0, "parent whose children are reordered (omit for roots)")

	topCmd.Flags().IntVar(&topLimit, "limit", 10, "number of rows")
}

func runAdd(cmd *cobra.Command, args []string) error {
	draft := model.ItemDraft{
		Text:     args[0],
		ItemType: addType,
		Status:   addStatus,
	}
	if addParent > 0 {
		draft.ParentID = &addParent
	}
	if addTopic > 0 {
		draft.TopicID = &addTopic
	}
	if addDue != "" {
		draft.DueDate = &addDue
	}
	if addDifficulty != "" {
		draft.Difficulty = &addDifficulty
	}
	if addPurpose != "" {
		draft.Purpose = &addPurpose
	}

	item, err := application.Store.CreateItem(cmd.Context(), draft)
	if err != nil {
		return err
	}
	fmt.Printf("created %s %d: %s\n", item.ItemType, item.ID, item.Text)
	return nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List items",
	RunE: func(cmd *cobra.Command, args []string) error {
		var filter store.ItemFilter
		if listType != "" {
			filter.ItemType = &listType
		}
		if listStatus != "" {
			filter.Status = &listStatus
		}
		if listTopic > 0 {
			filter.TopicID = &listTopic
		}
		if listParent > 0 {
			filter.ParentID = &listParent
		}

		items, err := application.Store.ListItems(cmd.Context(), filter)
		if err != nil {
			return err
		}
		for _, item := range items {
			printItem(item)
		}
		return nil
	},
}

func printItem(item model.Item) {
	var extras []string
	if item.ParentID != nil {
		extras = append(extras, fmt.Sprintf("parent=%d", *item.ParentID))
	}
	if item.DueDate != nil {
		extras = append(extras, "due="+*item.DueDate)
	}
	suffix := ""
	if len(extras) > 0 {
		suffix = "  (" + strings.Join(extras, " ") + ")"
	}
	fmt.Printf("%4d  %-8s  %-7s  %s%s\n", item.ID, item.ItemType, item.Status, item.Text, suffix)
}

var doneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark an item done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		item, err := application.Store.MarkDone(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("done: %s\n", item.Text)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an item; its children become root items",
	Long: `Delete removes a single item. Direct children are kept and become root
items; pass --cascade to delete the whole subtree instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := application.Store.DeleteItem(cmd.Context(), id, deleteMode()); err != nil {
			return err
		}
		fmt.Printf("deleted %d\n", id)
		return nil
	},
}

// deleteMode maps the --cascade flag; orphaning children is the default.
func deleteMode() store.DeleteMode {
	if deleteCascade {
		return store.DeleteCascade
	}
	return store.DeleteOrphan
}

var statusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Move an item to the end of a status lane",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		item, err := application.Store.MoveToStatus(cmd.Context(), id, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", item.Status, item.Text)
		return nil
	},
}

var moveCmd = &cobra.Command{
	Use:   "move <id>",
	Short: "Move an item under a new parent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		var parent *int64
		if moveParent > 0 {
			parent = &moveParent
		}
		item, err := application.Store.MoveItem(cmd.Context(), id, parent)
		if err != nil {
			return err
		}
		fmt.Printf("moved %d under %v\n", item.ID, formatParent(item.ParentID))
		return nil
	},
}

var reorderCmd = &cobra.Command{
	Use:   "reorder <id>...",
	Short: "Reorder siblings into the given sequence",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int64, 0, len(args))
		for _, arg := range args {
			id, err := parseID(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		var parent *int64
		if reorderParent > 0 {
			parent = &reorderParent
		}
		return application.Store.Reorder(cmd.Context(), parent, ids)
	},
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the highest-priority open items",
	RunE: func(cmd *cobra.Command, args []string) error {
		scored, err := application.Store.TopPriorities(cmd.Context(), topLimit)
		if err != nil {
			return err
		}
		for _, row := range scored {
			tier, err := application.Store.TierForRank(cmd.Context(), row.Score)
			if err != nil {
				return err
			}
			topic := row.TopicName
			if topic == "" {
				topic = "-"
			}
			fmt.Printf("%4d  score=%-2d  %-16s  %-20s  %s\n",
				row.ID, row.Score, tier.Label, topic, row.Text)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dataset counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := application.Store.GetStats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("items: %d  priorities: %d  done last 7 days: %d\n",
			stats.TotalItems, stats.Priorities, stats.DoneLastWeek)
		for _, t := range []string{"topic", "project", "task", "idea", "reminder"} {
			if n := stats.ByType[t]; n > 0 {
				fmt.Printf("  %-9s %d\n", t, n)
			}
		}

		counts, err := application.Store.CountsByTopic(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range counts {
			fmt.Printf("  %-20s %d items, %d done\n", c.Name, c.Items, c.Done)
		}
		return nil
	},
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", arg)
	}
	return id, nil
}

func formatParent(id *int64) string {
	if id == nil {
		return "root"
	}
	return strconv.FormatInt(*id, 10)
}
