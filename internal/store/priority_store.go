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

// CreatePriority inserts a named priority. An out-of-range rank falls back
// to the default rather than failing.
func (s *Store) CreatePriority(ctx context.Context, name string, rank int) (*model.Priority, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: priority name must not be empty", model.ErrValidation)
	}
	if !model.ValidRank(rank) {
		rank = model.DefaultRank
	}

	now := time.Now().UTC()
	res, err := s.engine.Exec(ctx,
		"INSERT INTO priorities (name, rank, created_at) VALUES (?, ?, ?)",
		name, rank, now)
	if err != nil {
		return nil, fmt.Errorf("creating priority: %w", err)
	}

	s.notifyChanged()
	return s.GetPriority(ctx, res.InsertedID)
}

// GetPriority retrieves a single priority by ID.
func (s *Store) GetPriority(ctx context.Context, id int64) (*model.Priority, error) {
	var p model.Priority
	err := s.engine.Get(ctx, &p,
		"SELECT id, name, rank, created_at FROM priorities WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: priority %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting priority %d: %w", id, err)
	}
	return &p, nil
}

// ListPriorities returns all priorities, highest rank first, newest first
// within a rank.
func (s *Store) ListPriorities(ctx context.Context) ([]model.Priority, error) {
	var out []model.Priority
	err := s.engine.Select(ctx, &out,
		"SELECT id, name, rank, created_at FROM priorities ORDER BY rank DESC, created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("listing priorities: %w", err)
	}
	return out, nil
}

// UpdatePriority renames and/or reranks a priority.
func (s *Store) UpdatePriority(ctx context.Context, id int64, name string, rank int) (*model.Priority, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: priority name must not be empty", model.ErrValidation)
	}
	if !model.ValidRank(rank) {
		return nil, fmt.Errorf("%w: rank %d outside 1-10", model.ErrValidation, rank)
	}

	res, err := s.engine.Exec(ctx,
		"UPDATE priorities SET name = ?, rank = ? WHERE id = ?", name, rank, id)
	if err != nil {
		return nil, fmt.Errorf("updating priority %d: %w", id, err)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: priority %d", model.ErrNotFound, id)
	}

	s.notifyChanged()
	return s.GetPriority(ctx, id)
}

// DeletePriority removes a priority; its item links go with it.
func (s *Store) DeletePriority(ctx context.Context, id int64) error {
	res, err := s.engine.Exec(ctx, "DELETE FROM priorities WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting priority %d: %w", id, err)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: priority %d", model.ErrNotFound, id)
	}

	s.notifyChanged()
	return nil
}

// LinkPriority attaches a priority to an item. Linking twice is a no-op.
func (s *Store) LinkPriority(ctx context.Context, itemID, priorityID int64) error {
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return err
	}
	if _, err := s.GetPriority(ctx, priorityID); err != nil {
		return err
	}
	_, err := s.engine.Exec(ctx,
		"INSERT OR IGNORE INTO item_priorities (item_id, priority_id) VALUES (?, ?)",
		itemID, priorityID)
	if err != nil {
		return fmt.Errorf("linking item %d to priority %d: %w", itemID, priorityID, err)
	}

	s.notifyChanged()
	return nil
}

// UnlinkPriority detaches a priority from an item.
func (s *Store) UnlinkPriority(ctx context.Context, itemID, priorityID int64) error {
	_, err := s.engine.Exec(ctx,
		"DELETE FROM item_priorities WHERE item_id = ? AND priority_id = ?",
		itemID, priorityID)
	if err != nil {
		return fmt.Errorf("unlinking item %d from priority %d: %w", itemID, priorityID, err)
	}

	s.notifyChanged()
	return nil
}

// PrioritiesForItem returns the priorities linked to one item, highest rank
// first.
func (s *Store) PrioritiesForItem(ctx context.Context, itemID int64) ([]model.Priority, error) {
	var out []model.Priority
	err := s.engine.Select(ctx, &out, `
		SELECT p.id, p.name, p.rank, p.created_at
		FROM priorities p
		JOIN item_priorities ip ON ip.priority_id = p.id
		WHERE ip.item_id = ?
		ORDER BY p.rank DESC, p.id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("listing priorities of item %d: %w", itemID, err)
	}
	return out, nil
}

// TopPriorities scores every open non-topic item by the highest rank among
// its linked priorities (0 when nothing is linked) and returns the top limit
// rows. Ties break toward the newest item.
func (s *Store) TopPriorities(ctx context.Context, limit int) ([]model.ScoredItem, error) {
	if limit <= 0 {
		limit = 10
	}

	var scored []model.ScoredItem
	err := s.engine.Select(ctx, &scored, fmt.Sprintf(`
		SELECT %s,
		       COALESCE(MAX(p.rank), 0) AS score,
		       COALESCE(t.text, '') AS topic_name,
		       COALESCE(t.color, '') AS topic_color,
		       COALESCE(t.icon, '') AS topic_icon
		FROM items i
		LEFT JOIN item_priorities ip ON ip.item_id = i.id
		LEFT JOIN priorities p ON p.id = ip.priority_id
		LEFT JOIN items t ON t.id = i.topic_id
		WHERE i.item_type != 'topic' AND i.status != 'done'
		GROUP BY i.id
		ORDER BY score DESC, i.created_at DESC, i.id DESC
		LIMIT ?`, prefixedItemColumns("i")), limit)
	if err != nil {
		return nil, fmt.Errorf("scoring items: %w", err)
	}

	for idx := range scored {
		priorities, err := s.PrioritiesForItem(ctx, scored[idx].ID)
		if err != nil {
			return nil, err
		}
		scored[idx].Priorities = priorities
	}
	return scored, nil
}

// prefixedItemColumns qualifies the item column list with a table alias.
func prefixedItemColumns(alias string) string {
	cols := []string{
		"id", "text", "parent_id", "topic_id", "item_type", "status",
		"purpose", "due_date", "icon", "color", "difficulty",
	}
	parts := make([]string, 0, len(cols)+3)
	for _, c := range cols {
		parts = append(parts, alias+"."+c)
	}
	parts = append(parts,
		fmt.Sprintf(`%s."order" AS "order"`, alias),
		alias+".created_at", alias+".completed_at")
	return strings.Join(parts, ", ")
}

// TierForRank returns the descriptive tier covering rank. When the tier
// table is missing or has a gap, a built-in table matching the seeded tiers
// answers instead.
func (s *Store) TierForRank(ctx context.Context, rank int) (*model.PriorityTier, error) {
	var tier model.PriorityTier
	err := s.engine.Get(ctx, &tier, `
		SELECT id, min_rank, max_rank, label, description
		FROM priority_tiers
		WHERE ? BETWEEN min_rank AND max_rank
		ORDER BY id LIMIT 1`, rank)
	if err == nil {
		return &tier, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn().Err(err).Int("rank", rank).Msg("tier lookup failed, using built-in tiers")
	}
	return fallbackTier(rank), nil
}

// fallbackTier mirrors the seeded tier boundaries.
func fallbackTier(rank int) *model.PriorityTier {
	switch {
	case rank <= 2:
		return &model.PriorityTier{MinRank: 1, MaxRank: 2, Label: "Not immediate", Description: "Can wait"}
	case rank <= 4:
		return &model.PriorityTier{MinRank: 3, MaxRank: 4, Label: "Attention soon", Description: "On the radar"}
	case rank <= 6:
		return &model.PriorityTier{MinRank: 5, MaxRank: 6, Label: "Current", Description: "Actively working on"}
	case rank <= 8:
		return &model.PriorityTier{MinRank: 7, MaxRank: 8, Label: "High", Description: "Distracting until sorted"}
	default:
		return &model.PriorityTier{MinRank: 9, MaxRank: 10, Label: "Urgent", Description: "Something is not right"}
	}
}
