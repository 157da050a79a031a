// Package migrate brings a database image to the current schema. The schema
// generation is detected from the live tables rather than a version counter,
// so images produced by any earlier release migrate forward, and re-running
// a step is harmless. A fresh database gets the final schema directly.
package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/idea-dashboard/internal/backup"
	"github.com/nhle/idea-dashboard/internal/engine"
	"github.com/nhle/idea-dashboard/internal/model"
)

// generation identifies how far along the schema history an image is.
type generation int

const (
	genEmpty       generation = iota // no tables at all
	genFlat                          // flat topics + ideas tables
	genWeighted                      // flat tables with computed weight columns
	genUnified                       // unified items table
	genPrioritized                   // priorities, tiers and item links
)

func (g generation) String() string {
	switch g {
	case genEmpty:
		return "empty"
	case genFlat:
		return "flat"
	case genWeighted:
		return "weighted"
	case genUnified:
		return "unified"
	case genPrioritized:
		return "prioritized"
	}
	return fmt.Sprintf("generation(%d)", int(g))
}

type step struct {
	from  generation
	label string
	apply func(*Migrator, context.Context) error
}

var steps = []step{
	{genFlat, "weight-columns", (*Migrator).addWeightColumns},
	{genWeighted, "unified-items", (*Migrator).unifyItems},
	{genUnified, "priority-engine", (*Migrator).addPriorityEngine},
}

// Migrator runs forward-only schema migrations with a snapshot before each
// step.
type Migrator struct {
	engine  *engine.Engine
	backups *backup.Manager
	logger  zerolog.Logger
}

func New(e *engine.Engine, backups *backup.Manager, logger zerolog.Logger) *Migrator {
	return &Migrator{
		engine:  e,
		backups: backups,
		logger:  logger.With().Str("component", "migrate").Logger(),
	}
}

// Run detects the schema generation and applies every remaining step in
// order, then seeds default topics into an empty database.
func (m *Migrator) Run(ctx context.Context) error {
	gen, err := m.detect(ctx)
	if err != nil {
		return fmt.Errorf("%w: detecting schema generation: %v", model.ErrMigrationFailed, err)
	}
	m.logger.Debug().Stringer("generation", gen).Msg("detected schema generation")

	if gen == genEmpty {
		if err := m.createSchema(ctx); err != nil {
			return fmt.Errorf("%w: creating schema: %v", model.ErrMigrationFailed, err)
		}
	} else {
		for _, s := range steps {
			if gen > s.from {
				continue
			}
			if _, err := m.backups.Snapshot(ctx, "pre-migration-"+s.label); err != nil {
				return fmt.Errorf("%w: snapshot before %s: %v", model.ErrMigrationFailed, s.label, err)
			}
			m.logger.Info().Str("step", s.label).Msg("applying migration")
			if err := s.apply(m, ctx); err != nil {
				return fmt.Errorf("%w: step %s: %v", model.ErrMigrationFailed, s.label, err)
			}
		}
	}

	if err := m.seedTopics(ctx); err != nil {
		return fmt.Errorf("seeding default topics: %w", err)
	}
	return nil
}

// detect probes the live schema. Probing runs newest-first so a fully
// migrated image answers in one query.
func (m *Migrator) detect(ctx context.Context) (generation, error) {
	if ok, err := m.engine.TableExists(ctx, "priorities"); err != nil || ok {
		return genPrioritized, err
	}
	if ok, err := m.engine.TableExists(ctx, "items"); err != nil || ok {
		return genUnified, err
	}
	hasTopics, err := m.engine.TableExists(ctx, "topics")
	if err != nil {
		return genEmpty, err
	}
	if !hasTopics {
		return genEmpty, nil
	}
	if ok, err := m.engine.ColumnExists(ctx, "topics", "weight"); err != nil || ok {
		return genWeighted, err
	}
	return genFlat, nil
}

// topicWeights maps the old categorical topic priority onto a numeric weight.
var topicWeights = map[string]int{
	"always-on":         10,
	"urgent":            10,
	"priority":          8,
	"getting-important": 6,
	"do-prep":           4,
}

const defaultTopicWeight = 5

// ideaWeights maps the old 1-5 star ranking onto a numeric weight.
var ideaWeights = map[int]int{1: 2, 2: 4, 3: 5, 4: 7, 5: 9}

// addWeightColumns widens the flat tables with computed weight columns.
func (m *Migrator) addWeightColumns(ctx context.Context) error {
	for _, table := range []string{"topics", "ideas"} {
		ok, err := m.engine.ColumnExists(ctx, table, "weight")
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if _, err := m.engine.Exec(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN weight INTEGER", table)); err != nil {
			return fmt.Errorf("adding %s.weight: %w", table, err)
		}
	}

	for priority, weight := range topicWeights {
		_, err := m.engine.Exec(ctx,
			"UPDATE topics SET weight = ? WHERE priority = ? AND weight IS NULL", weight, priority)
		if err != nil {
			return err
		}
	}
	if _, err := m.engine.Exec(ctx,
		"UPDATE topics SET weight = ? WHERE weight IS NULL", defaultTopicWeight); err != nil {
		return err
	}

	for ranking, weight := range ideaWeights {
		_, err := m.engine.Exec(ctx,
			"UPDATE ideas SET weight = ? WHERE ranking = ? AND weight IS NULL", weight, ranking)
		if err != nil {
			return err
		}
	}
	_, err := m.engine.Exec(ctx,
		"UPDATE ideas SET weight = ? WHERE weight IS NULL", defaultTopicWeight)
	return err
}

// unifyItems folds the flat topics and ideas tables into the single items
// table: topics become topic items and each idea becomes a task under its
// topic. The flat tables are dropped once copied.
func (m *Migrator) unifyItems(ctx context.Context) error {
	if err := m.createItemsTable(ctx); err != nil {
		return err
	}

	var topics []model.LegacyTopic
	if err := m.engine.Select(ctx, &topics, `
		SELECT id, name, COALESCE(priority, '') AS priority,
		       COALESCE(color, '') AS color, icon, weight
		FROM topics ORDER BY rowid`); err != nil {
		return fmt.Errorf("reading topics: %w", err)
	}
	topicIDs := make(map[string]int64, len(topics))
	for _, t := range topics {
		res, err := m.engine.Exec(ctx, `
			INSERT INTO items (text, item_type, status, icon, color, "order", created_at)
			VALUES (?, 'topic', 'new', ?, NULLIF(?, ''), 0, CURRENT_TIMESTAMP)`,
			t.Name, t.Icon, t.Color)
		if err != nil {
			return fmt.Errorf("migrating topic %q: %w", t.Name, err)
		}
		topicIDs[t.ID] = res.InsertedID
	}

	var ideas []model.LegacyIdea
	err := m.engine.Select(ctx, &ideas, `
		SELECT id, text, COALESCE(topic, '') AS topic,
		       COALESCE(ranking, 0) AS ranking,
		       COALESCE(difficulty, '') AS difficulty,
		       COALESCE(status, '') AS status,
		       COALESCE("order", 0) AS "order",
		       COALESCE(timestamp, '') AS timestamp,
		       status_changed_at, weight
		FROM ideas ORDER BY id`)
	if err != nil {
		return fmt.Errorf("reading ideas: %w", err)
	}
	for _, idea := range ideas {
		var parent *int64
		if id, ok := topicIDs[idea.Topic]; ok {
			parent = &id
		}
		status := idea.Status
		if !model.ValidStatus(status) {
			status = model.StatusNew
		}
		var difficulty *string
		if model.ValidDifficulty(idea.Difficulty) {
			difficulty = &idea.Difficulty
		}
		var completedAt *string
		if status == model.StatusDone {
			completedAt = idea.StatusChangedAt
		}
		created := idea.Timestamp
		if created == "" {
			created = time.Now().UTC().Format(time.RFC3339)
		}
		_, err := m.engine.Exec(ctx, `
			INSERT INTO items (text, parent_id, topic_id, item_type, status,
			                   difficulty, "order", created_at, completed_at)
			VALUES (?, ?, ?, 'task', ?, ?, ?, ?, ?)`,
			idea.Text, parent, parent, status, difficulty, idea.Order,
			created, completedAt)
		if err != nil {
			return fmt.Errorf("migrating idea %q: %w", idea.Text, err)
		}
	}

	for _, table := range []string{"ideas", "topics"} {
		if _, err := m.engine.Exec(ctx, "DROP TABLE "+table); err != nil {
			return fmt.Errorf("dropping %s: %w", table, err)
		}
	}
	return nil
}

// addPriorityEngine creates the priority tables and seeds the rank tiers.
func (m *Migrator) addPriorityEngine(ctx context.Context) error {
	if err := m.createPriorityTables(ctx); err != nil {
		return err
	}
	return m.seedTiers(ctx)
}

// createSchema builds the final schema directly on an empty database.
func (m *Migrator) createSchema(ctx context.Context) error {
	if err := m.createItemsTable(ctx); err != nil {
		return err
	}
	if err := m.createPriorityTables(ctx); err != nil {
		return err
	}
	return m.seedTiers(ctx)
}

// createItemsTable builds the unified items table. topic_id carries no
// foreign key: deleting a topic without cascade leaves children pointing at
// the gone id, and readers tolerate that.
func (m *Migrator) createItemsTable(ctx context.Context) error {
	stmts := []string{`
		CREATE TABLE IF NOT EXISTS items (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			text         TEXT NOT NULL,
			parent_id    INTEGER REFERENCES items(id),
			topic_id     INTEGER,
			item_type    TEXT NOT NULL DEFAULT 'task'
			             CHECK (item_type IN ('topic', 'idea', 'task', 'project', 'reminder')),
			status       TEXT NOT NULL DEFAULT 'new'
			             CHECK (status IN ('new', 'backlog', 'done')),
			purpose      TEXT,
			due_date     TEXT,
			icon         TEXT,
			color        TEXT,
			difficulty   TEXT CHECK (difficulty IN ('easy', 'medium', 'hard')),
			"order"      INTEGER NOT NULL DEFAULT 0,
			created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_items_topic ON items(topic_id)`,
		`CREATE INDEX IF NOT EXISTS idx_items_type ON items(item_type)`,
		`CREATE INDEX IF NOT EXISTS idx_items_status ON items(status)`,
		`CREATE INDEX IF NOT EXISTS idx_items_topic_status ON items(topic_id, status)`,
	}
	for _, stmt := range stmts {
		if _, err := m.engine.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) createPriorityTables(ctx context.Context) error {
	stmts := []string{`
		CREATE TABLE IF NOT EXISTS priorities (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			rank       INTEGER NOT NULL DEFAULT 5 CHECK (rank BETWEEN 1 AND 10),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, `
		CREATE TABLE IF NOT EXISTS priority_tiers (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			min_rank    INTEGER NOT NULL,
			max_rank    INTEGER NOT NULL,
			label       TEXT NOT NULL,
			description TEXT
		)`, `
		CREATE TABLE IF NOT EXISTS item_priorities (
			item_id     INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			priority_id INTEGER NOT NULL REFERENCES priorities(id) ON DELETE CASCADE,
			PRIMARY KEY (item_id, priority_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_item_priorities_item ON item_priorities(item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_item_priorities_priority ON item_priorities(priority_id)`,
	}
	for _, stmt := range stmts {
		if _, err := m.engine.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
