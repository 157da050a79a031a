package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/idea-dashboard/internal/model"
)

// DeleteMode controls what happens to children when an item is deleted.
type DeleteMode int

const (
	// DeleteOrphan is the default: direct children become root items and
	// keep their stale topic reference.
	DeleteOrphan DeleteMode = iota
	// DeleteCascade removes the item and its whole subtree. Callers opt in
	// explicitly; children are never destroyed by default.
	DeleteCascade
)

// CreateItem inserts a new item. Text is required; type defaults to task and
// status to new. The item is appended to the end of its sibling list, and a
// plain task that gains its first child is promoted to a project.
func (s *Store) CreateItem(ctx context.Context, draft model.ItemDraft) (*model.Item, error) {
	if strings.TrimSpace(draft.Text) == "" {
		return nil, fmt.Errorf("%w: item text must not be empty", model.ErrValidation)
	}
	if draft.ItemType == "" {
		draft.ItemType = model.ItemTypeTask
	}
	if !model.ValidItemType(draft.ItemType) {
		return nil, fmt.Errorf("%w: unknown item type %q", model.ErrValidation, draft.ItemType)
	}
	if draft.Status == "" {
		draft.Status = model.StatusNew
	}
	if !model.ValidStatus(draft.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, draft.Status)
	}
	if draft.Difficulty != nil && !model.ValidDifficulty(*draft.Difficulty) {
		return nil, fmt.Errorf("%w: unknown difficulty %q", model.ErrValidation, *draft.Difficulty)
	}
	if draft.ItemType == model.ItemTypeTopic && draft.ParentID != nil {
		return nil, fmt.Errorf("%w: a topic cannot have a parent", model.ErrValidation)
	}

	var parent *model.Item
	if draft.ParentID != nil {
		var err error
		parent, err = s.GetItem(ctx, *draft.ParentID)
		if err != nil {
			return nil, fmt.Errorf("resolving parent: %w", err)
		}
	}
	topicID := draft.TopicID
	if topicID == nil {
		topicID = topicOf(parent)
	}

	order, err := s.nextOrder(ctx, draft.ParentID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := s.engine.Exec(ctx, `
		INSERT INTO items (
			text, parent_id, topic_id, item_type, status, purpose,
			due_date, icon, color, difficulty, "order", created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		draft.Text, draft.ParentID, topicID, draft.ItemType, draft.Status,
		draft.Purpose, draft.DueDate, draft.Icon, draft.Color, draft.Difficulty,
		order, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	if parent != nil {
		if err := s.promoteIfNeeded(ctx, parent); err != nil {
			return nil, err
		}
	}

	s.notifyChanged()
	return s.GetItem(ctx, res.InsertedID)
}

// nextOrder appends within the sibling list: first child gets 1.
func (s *Store) nextOrder(ctx context.Context, parentID *int64) (int, error) {
	var max int
	var err error
	if parentID == nil {
		err = s.engine.Get(ctx, &max,
			`SELECT COALESCE(MAX("order"), 0) FROM items WHERE parent_id IS NULL`)
	} else {
		err = s.engine.Get(ctx, &max,
			`SELECT COALESCE(MAX("order"), 0) FROM items WHERE parent_id = ?`, *parentID)
	}
	if err != nil {
		return 0, fmt.Errorf("getting max order: %w", err)
	}
	return max + 1, nil
}

// promoteIfNeeded upgrades a task to a project once it holds children.
func (s *Store) promoteIfNeeded(ctx context.Context, parent *model.Item) error {
	if parent.ItemType != model.ItemTypeTask {
		return nil
	}
	_, err := s.engine.Exec(ctx,
		"UPDATE items SET item_type = ? WHERE id = ? AND item_type = ?",
		model.ItemTypeProject, parent.ID, model.ItemTypeTask)
	if err != nil {
		return fmt.Errorf("promoting item %d to project: %w", parent.ID, err)
	}
	s.logger.Debug().Int64("id", parent.ID).Msg("task promoted to project")
	return nil
}

// topicOf resolves the denormalized topic ancestor for a child of parent.
func topicOf(parent *model.Item) *int64 {
	if parent == nil {
		return nil
	}
	if parent.IsTopic() {
		id := parent.ID
		return &id
	}
	return parent.TopicID
}

// GetItem retrieves a single item by ID.
func (s *Store) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	var item model.Item
	err := s.engine.Get(ctx, &item,
		fmt.Sprintf("SELECT %s FROM items WHERE id = ?", itemColumns), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: item %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting item %d: %w", id, err)
	}
	return &item, nil
}

// ListItems returns items matching the filter, in sibling order.
func (s *Store) ListItems(ctx context.Context, filter ItemFilter) ([]model.Item, error) {
	query := fmt.Sprintf("SELECT %s FROM items", itemColumns)
	var conds []string
	var args []interface{}

	if filter.ItemType != nil {
		conds = append(conds, "item_type = ?")
		args = append(args, *filter.ItemType)
	}
	if filter.ParentID != nil {
		conds = append(conds, "parent_id = ?")
		args = append(args, *filter.ParentID)
	}
	if filter.TopicID != nil {
		conds = append(conds, "topic_id = ?")
		args = append(args, *filter.TopicID)
	}
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *filter.Status)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY "order", id`

	var items []model.Item
	if err := s.engine.Select(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

// Topics returns all root topics in display order.
func (s *Store) Topics(ctx context.Context) ([]model.Item, error) {
	topicType := model.ItemTypeTopic
	return s.ListItems(ctx, ItemFilter{ItemType: &topicType})
}

// Children returns the direct children of an item in sibling order.
func (s *Store) Children(ctx context.Context, parentID int64) ([]model.Item, error) {
	return s.ListItems(ctx, ItemFilter{ParentID: &parentID})
}

// UpdateItem applies the non-nil fields of upd. Moving to done stamps
// completed_at once; the stamp survives later status changes.
func (s *Store) UpdateItem(ctx context.Context, id int64, upd model.ItemUpdate) (*model.Item, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	var sets []string
	var args []interface{}
	if upd.Text != nil {
		if strings.TrimSpace(*upd.Text) == "" {
			return nil, fmt.Errorf("%w: item text must not be empty", model.ErrValidation)
		}
		sets = append(sets, "text = ?")
		args = append(args, *upd.Text)
	}
	if upd.Status != nil {
		if !model.ValidStatus(*upd.Status) {
			return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, *upd.Status)
		}
		sets = append(sets, "status = ?")
		args = append(args, *upd.Status)
		if *upd.Status == model.StatusDone && item.CompletedAt == nil {
			sets = append(sets, "completed_at = ?")
			args = append(args, time.Now().UTC())
		}
	}
	if upd.Purpose != nil {
		sets = append(sets, "purpose = ?")
		args = append(args, *upd.Purpose)
	}
	if upd.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, *upd.DueDate)
	}
	if upd.Icon != nil {
		sets = append(sets, "icon = ?")
		args = append(args, *upd.Icon)
	}
	if upd.Color != nil {
		sets = append(sets, "color = ?")
		args = append(args, *upd.Color)
	}
	if upd.Difficulty != nil {
		if !model.ValidDifficulty(*upd.Difficulty) {
			return nil, fmt.Errorf("%w: unknown difficulty %q", model.ErrValidation, *upd.Difficulty)
		}
		sets = append(sets, "difficulty = ?")
		args = append(args, *upd.Difficulty)
	}
	if upd.Order != nil {
		sets = append(sets, `"order" = ?`)
		args = append(args, *upd.Order)
	}
	if len(sets) == 0 {
		return item, nil
	}

	args = append(args, id)
	_, err = s.engine.Exec(ctx,
		"UPDATE items SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("updating item %d: %w", id, err)
	}

	s.notifyChanged()
	return s.GetItem(ctx, id)
}

// MarkDone is the common case of MoveToStatus: status to done.
func (s *Store) MarkDone(ctx context.Context, id int64) (*model.Item, error) {
	return s.MoveToStatus(ctx, id, model.StatusDone)
}

// MoveToStatus changes an item's status and appends it to the end of the
// target status lane among its siblings. Moving to done stamps completed_at
// through UpdateItem.
func (s *Store) MoveToStatus(ctx context.Context, id int64, status string) (*model.Item, error) {
	if !model.ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, status)
	}
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	order, err := s.nextLaneOrder(ctx, item.ParentID, status, id)
	if err != nil {
		return nil, err
	}
	return s.UpdateItem(ctx, id, model.ItemUpdate{Status: &status, Order: &order})
}

// nextLaneOrder appends within the sibling rows that share a status,
// ignoring the item being moved.
func (s *Store) nextLaneOrder(ctx context.Context, parentID *int64, status string, exclude int64) (int, error) {
	query := `SELECT COALESCE(MAX("order"), 0) FROM items
		WHERE status = ? AND id != ? AND parent_id IS NULL`
	args := []interface{}{status, exclude}
	if parentID != nil {
		query = `SELECT COALESCE(MAX("order"), 0) FROM items
			WHERE status = ? AND id != ? AND parent_id = ?`
		args = append(args, *parentID)
	}
	var max int
	if err := s.engine.Get(ctx, &max, query, args...); err != nil {
		return 0, fmt.Errorf("getting max lane order: %w", err)
	}
	return max + 1, nil
}

// DeleteItem removes an item. DeleteOrphan detaches direct children into
// roots, leaving their topic_id as it was; DeleteCascade takes the whole
// subtree with it. Deleting a topic snapshots the dataset first.
func (s *Store) DeleteItem(ctx context.Context, id int64, mode DeleteMode) error {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if item.IsTopic() && s.snapshot != nil {
		if _, err := s.snapshot(ctx, "pre-topic-delete"); err != nil {
			return fmt.Errorf("snapshotting before topic delete: %w", err)
		}
	}

	switch mode {
	case DeleteCascade:
		ids, err := s.subtreeIDs(ctx, id)
		if err != nil {
			return err
		}
		// Children before parents so the self-referencing key stays valid.
		for i := len(ids) - 1; i >= 0; i-- {
			if _, err := s.engine.Exec(ctx, "DELETE FROM items WHERE id = ?", ids[i]); err != nil {
				return fmt.Errorf("deleting item %d: %w", ids[i], err)
			}
		}
	case DeleteOrphan:
		// Children become roots. Their topic_id is left as it was, stale;
		// queries tolerate the orphaned reference.
		_, err := s.engine.Exec(ctx,
			"UPDATE items SET parent_id = NULL WHERE parent_id = ?", id)
		if err != nil {
			return fmt.Errorf("orphaning children of %d: %w", id, err)
		}
		if _, err := s.engine.Exec(ctx, "DELETE FROM items WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting item %d: %w", id, err)
		}
	default:
		return fmt.Errorf("%w: unknown delete mode %d", model.ErrValidation, mode)
	}

	s.notifyChanged()
	return nil
}

// subtreeIDs returns id and every descendant, parents before children.
func (s *Store) subtreeIDs(ctx context.Context, id int64) ([]int64, error) {
	ids := []int64{id}
	frontier := []int64{id}
	for len(frontier) > 0 {
		var next []int64
		for _, parent := range frontier {
			var children []int64
			err := s.engine.Select(ctx, &children,
				"SELECT id FROM items WHERE parent_id = ? ORDER BY id", parent)
			if err != nil {
				return nil, fmt.Errorf("walking subtree of %d: %w", parent, err)
			}
			next = append(next, children...)
		}
		ids = append(ids, next...)
		frontier = next
	}
	return ids, nil
}

// updateSubtreeTopic rewrites topic_id for every descendant of root (and
// root itself unless it is a topic).
func (s *Store) updateSubtreeTopic(ctx context.Context, rootID int64, topicID *int64) error {
	root, err := s.GetItem(ctx, rootID)
	if err != nil {
		return err
	}
	if !root.IsTopic() {
		_, err = s.engine.Exec(ctx,
			"UPDATE items SET topic_id = ? WHERE id = ?", topicID, rootID)
		if err != nil {
			return fmt.Errorf("updating topic of item %d: %w", rootID, err)
		}
	} else {
		id := rootID
		topicID = &id
	}

	children, err := s.Children(ctx, rootID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := s.updateSubtreeTopic(ctx, child.ID, topicID); err != nil {
			return err
		}
	}
	return nil
}

// ChangeType converts an item to another type. A topic keeping children
// cannot stop being a topic, and an item with a parent cannot become one.
func (s *Store) ChangeType(ctx context.Context, id int64, newType string) (*model.Item, error) {
	if !model.ValidItemType(newType) {
		return nil, fmt.Errorf("%w: unknown item type %q", model.ErrValidation, newType)
	}
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.ItemType == newType {
		return item, nil
	}
	if item.IsTopic() && newType != model.ItemTypeTopic {
		children, err := s.Children(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(children) > 0 {
			return nil, fmt.Errorf("%w: topic %d still has children", model.ErrValidation, id)
		}
	}
	if newType == model.ItemTypeTopic && item.ParentID != nil {
		return nil, fmt.Errorf("%w: item %d has a parent and cannot become a topic", model.ErrValidation, id)
	}

	_, err = s.engine.Exec(ctx,
		"UPDATE items SET item_type = ? WHERE id = ?", newType, id)
	if err != nil {
		return nil, fmt.Errorf("changing type of item %d: %w", id, err)
	}
	if newType == model.ItemTypeTopic {
		if _, err := s.engine.Exec(ctx,
			"UPDATE items SET topic_id = NULL WHERE id = ?", id); err != nil {
			return nil, fmt.Errorf("clearing topic of item %d: %w", id, err)
		}
		if err := s.updateSubtreeTopic(ctx, id, nil); err != nil {
			return nil, err
		}
	}

	s.notifyChanged()
	return s.GetItem(ctx, id)
}

// MoveItem reparents an item (nil parent makes it a root) and recomputes the
// topic ancestry of its whole subtree. The item lands at the end of the new
// sibling list.
func (s *Store) MoveItem(ctx context.Context, id int64, newParentID *int64) (*model.Item, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.IsTopic() && newParentID != nil {
		return nil, fmt.Errorf("%w: a topic cannot have a parent", model.ErrValidation)
	}

	var parent *model.Item
	if newParentID != nil {
		if *newParentID == id {
			return nil, fmt.Errorf("%w: item %d cannot be its own parent", model.ErrValidation, id)
		}
		parent, err = s.GetItem(ctx, *newParentID)
		if err != nil {
			return nil, fmt.Errorf("resolving new parent: %w", err)
		}
		cyclic, err := s.isDescendant(ctx, id, *newParentID)
		if err != nil {
			return nil, err
		}
		if cyclic {
			return nil, fmt.Errorf("%w: item %d is a descendant of %d", model.ErrValidation, *newParentID, id)
		}
	}

	order, err := s.nextOrder(ctx, newParentID)
	if err != nil {
		return nil, err
	}
	_, err = s.engine.Exec(ctx,
		`UPDATE items SET parent_id = ?, "order" = ? WHERE id = ?`, newParentID, order, id)
	if err != nil {
		return nil, fmt.Errorf("moving item %d: %w", id, err)
	}
	if err := s.updateSubtreeTopic(ctx, id, topicOf(parent)); err != nil {
		return nil, err
	}
	if parent != nil {
		if err := s.promoteIfNeeded(ctx, parent); err != nil {
			return nil, err
		}
	}

	s.notifyChanged()
	return s.GetItem(ctx, id)
}

// isDescendant reports whether candidate sits somewhere under rootID.
func (s *Store) isDescendant(ctx context.Context, rootID, candidate int64) (bool, error) {
	ids, err := s.subtreeIDs(ctx, rootID)
	if err != nil {
		return false, err
	}
	for _, id := range ids[1:] {
		if id == candidate {
			return true, nil
		}
	}
	return false, nil
}

// Reorder assigns sibling positions 0, 1, 2... following orderedIDs.
// Siblings not listed keep their old positions; no completeness check.
func (s *Store) Reorder(ctx context.Context, parentID *int64, orderedIDs []int64) error {
	for pos, id := range orderedIDs {
		query := `UPDATE items SET "order" = ? WHERE id = ? AND parent_id IS NULL`
		args := []interface{}{pos, id}
		if parentID != nil {
			query = `UPDATE items SET "order" = ? WHERE id = ? AND parent_id = ?`
			args = append(args, *parentID)
		}
		res, err := s.engine.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("reordering item %d: %w", id, err)
		}
		if res.RowsAffected == 0 {
			s.logger.Warn().Int64("id", id).Msg("reorder skipped item outside sibling list")
		}
	}

	s.notifyChanged()
	return nil
}
