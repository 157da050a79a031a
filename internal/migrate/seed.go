package migrate

import (
	"context"
	"fmt"
)

type defaultTopic struct {
	name  string
	color string
	icon  string
}

var defaultTopics = []defaultTopic{
	{"Photography", "#FF6B35", "Photography.ICO"},
	{"Work", "#004E89", "Work.ICO"},
	{"Life Admin", "#F77F00", "LifeAdmin.ICO"},
	{"Relationships", "#06A77D", "Relationships.ICO"},
	{"Living", "#9D4EDD", "Living.ICO"},
	{"Health", "#E63946", "hearts.ICO"},
	{"Creating This Dashboard", "#06A77D", "Ideas.ICO"},
}

type tierSeed struct {
	minRank     int
	maxRank     int
	label       string
	description string
}

var tierSeeds = []tierSeed{
	{1, 2, "Not immediate", "Can wait"},
	{3, 4, "Attention soon", "On the radar"},
	{5, 6, "Current", "Actively working on"},
	{7, 8, "High", "Distracting until sorted"},
	{9, 10, "Urgent", "Something is not right"},
}

// seedTopics inserts the starter topics, but only into a database with no
// topics at all. A dashboard that deliberately deleted a starter topic never
// sees it come back.
func (m *Migrator) seedTopics(ctx context.Context) error {
	var count int
	err := m.engine.Get(ctx, &count,
		"SELECT COUNT(*) FROM items WHERE item_type = 'topic'")
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for i, t := range defaultTopics {
		_, err := m.engine.Exec(ctx, `
			INSERT INTO items (text, item_type, status, icon, color, "order", created_at)
			VALUES (?, 'topic', 'new', ?, ?, ?, CURRENT_TIMESTAMP)`,
			t.name, t.icon, t.color, i)
		if err != nil {
			return fmt.Errorf("seeding topic %q: %w", t.name, err)
		}
	}
	m.logger.Info().Int("topics", len(defaultTopics)).Msg("seeded default topics")
	return nil
}

// seedTiers inserts the rank tier rows if none exist yet.
func (m *Migrator) seedTiers(ctx context.Context) error {
	var count int
	if err := m.engine.Get(ctx, &count, "SELECT COUNT(*) FROM priority_tiers"); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, t := range tierSeeds {
		_, err := m.engine.Exec(ctx, `
			INSERT INTO priority_tiers (min_rank, max_rank, label, description)
			VALUES (?, ?, ?, ?)`,
			t.minRank, t.maxRank, t.label, t.description)
		if err != nil {
			return fmt.Errorf("seeding tier %q: %w", t.label, err)
		}
	}
	return nil
}
