package store

import (
	"context"
	"fmt"
)

// Stats is a dashboard summary of the dataset.
type Stats struct {
	TotalItems   int            `json:"total_items"`
	ByType       map[string]int `json:"by_type"`
	ByStatus     map[string]int `json:"by_status"`
	Priorities   int            `json:"priorities"`
	DoneLastWeek int            `json:"done_last_week"`
}

// TopicCount summarizes one topic's descendants for list views.
type TopicCount struct {
	TopicID int64  `db:"topic_id" json:"topic_id"`
	Name    string `db:"name" json:"name"`
	Items   int    `db:"items" json:"items"`
	Done    int    `db:"done" json:"done"`
}

// CountsByTopic returns item and completion totals per topic, in topic
// display order. Topics without items still appear with zero counts.
func (s *Store) CountsByTopic(ctx context.Context) ([]TopicCount, error) {
	var counts []TopicCount
	err := s.engine.Select(ctx, &counts, `
		SELECT t.id AS topic_id, t.text AS name,
		       COUNT(i.id) AS items,
		       COALESCE(SUM(CASE WHEN i.status = 'done' THEN 1 ELSE 0 END), 0) AS done
		FROM items t
		LEFT JOIN items i ON i.topic_id = t.id
		WHERE t.item_type = 'topic'
		GROUP BY t.id
		ORDER BY t."order", t.id`)
	if err != nil {
		return nil, fmt.Errorf("counting items by topic: %w", err)
	}
	return counts, nil
}

// GetStats aggregates item and priority counts.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByType:   make(map[string]int),
		ByStatus: make(map[string]int),
	}

	type bucket struct {
		Key   string `db:"key"`
		Count int    `db:"count"`
	}

	var byType []bucket
	err := s.engine.Select(ctx, &byType,
		"SELECT item_type AS key, COUNT(*) AS count FROM items GROUP BY item_type")
	if err != nil {
		return nil, fmt.Errorf("counting items by type: %w", err)
	}
	for _, b := range byType {
		stats.ByType[b.Key] = b.Count
		stats.TotalItems += b.Count
	}

	var byStatus []bucket
	err = s.engine.Select(ctx, &byStatus,
		"SELECT status AS key, COUNT(*) AS count FROM items WHERE item_type != 'topic' GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("counting items by status: %w", err)
	}
	for _, b := range byStatus {
		stats.ByStatus[b.Key] = b.Count
	}

	err = s.engine.Get(ctx, &stats.Priorities, "SELECT COUNT(*) FROM priorities")
	if err != nil {
		return nil, fmt.Errorf("counting priorities: %w", err)
	}

	err = s.engine.Get(ctx, &stats.DoneLastWeek, `
		SELECT COUNT(*) FROM items
		WHERE status = 'done' AND completed_at >= datetime('now', '-7 days')`)
	if err != nil {
		return nil, fmt.Errorf("counting recent completions: %w", err)
	}

	return stats, nil
}
