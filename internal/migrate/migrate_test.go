package migrate_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/idea-dashboard/internal/backup"
	"github.com/nhle/idea-dashboard/internal/engine"
	"github.com/nhle/idea-dashboard/internal/migrate"
	"github.com/nhle/idea-dashboard/tests/testutil"
)

func newMigrator(t *testing.T, e *engine.Engine) *migrate.Migrator {
	t.Helper()
	backups := backup.New(e, nil, t.TempDir(), 0, zerolog.Nop())
	return migrate.New(e, backups, zerolog.Nop())
}

// createLegacySchema builds the original flat two-table layout.
func createLegacySchema(t *testing.T, e *engine.Engine) {
	t.Helper()
	ctx := context.Background()
	stmts := []string{`
		CREATE TABLE topics (
			id       TEXT PRIMARY KEY,
			name     TEXT NOT NULL,
			priority TEXT,
			color    TEXT,
			icon     TEXT
		)`, `
		CREATE TABLE ideas (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			text              TEXT NOT NULL,
			topic             TEXT,
			ranking           INTEGER,
			difficulty        TEXT,
			status            TEXT,
			"order"           INTEGER,
			timestamp         TEXT,
			status_changed_at TEXT
		)`,
	}
	for _, stmt := range stmts {
		_, err := e.Exec(ctx, stmt)
		require.NoError(t, err)
	}
}

func TestFreshDatabaseGetsFullSchema(t *testing.T) {
	e := testutil.NewEngine(t)
	ctx := context.Background()

	require.NoError(t, newMigrator(t, e).Run(ctx))

	for _, table := range []string{"items", "priorities", "priority_tiers", "item_priorities"} {
		ok, err := e.TableExists(ctx, table)
		require.NoError(t, err)
		assert.True(t, ok, "missing table %s", table)
	}

	// Flat tables never existed, so they must not appear.
	ok, err := e.TableExists(ctx, "topics")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFreshDatabaseSeedsTopicsAndTiers(t *testing.T) {
	e := testutil.NewEngine(t)
	ctx := context.Background()

	require.NoError(t, newMigrator(t, e).Run(ctx))

	var topics int
	require.NoError(t, e.Get(ctx, &topics, "SELECT COUNT(*) FROM items WHERE item_type = 'topic'"))
	assert.Equal(t, 7, topics)

	var names []string
	require.NoError(t, e.Select(ctx, &names,
		`SELECT text FROM items WHERE item_type = 'topic' ORDER BY "order"`))
	require.NotEmpty(t, names)
	assert.Equal(t, "Photography", names[0])
	assert.Contains(t, names, "Creating This Dashboard")

	var tiers int
	require.NoError(t, e.Get(ctx, &tiers, "SELECT COUNT(*) FROM priority_tiers"))
	assert.Equal(t, 5, tiers)

	var label string
	require.NoError(t, e.Get(ctx, &label,
		"SELECT label FROM priority_tiers WHERE 9 BETWEEN min_rank AND max_rank"))
	assert.Equal(t, "Urgent", label)
}

func TestSeedSkipsNonEmptyDatabase(t *testing.T) {
	e := testutil.NewEngine(t)
	ctx := context.Background()

	require.NoError(t, newMigrator(t, e).Run(ctx))

	// Delete one seeded topic; a second run must not resurrect it.
	_, err := e.Exec(ctx, "DELETE FROM items WHERE text = 'Photography'")
	require.NoError(t, err)

	require.NoError(t, newMigrator(t, e).Run(ctx))

	var count int
	require.NoError(t, e.Get(ctx, &count,
		"SELECT COUNT(*) FROM items WHERE text = 'Photography'"))
	assert.Equal(t, 0, count)
}

func TestMigrateLegacyDatabase(t *testing.T) {
	e := testutil.NewEngine(t)
	ctx := context.Background()
	createLegacySchema(t, e)

	_, err := e.Exec(ctx,
		"INSERT INTO topics (id, name, priority, color, icon) VALUES (?, ?, ?, ?, ?)",
		"work", "Work", "always-on", "#004E89", "Work.ICO")
	require.NoError(t, err)
	_, err = e.Exec(ctx,
		"INSERT INTO topics (id, name, priority, color, icon) VALUES (?, ?, ?, ?, ?)",
		"photo", "Photography", "someday", "#FF6B35", nil)
	require.NoError(t, err)

	_, err = e.Exec(ctx, `
		INSERT INTO ideas (text, topic, ranking, difficulty, status, "order", timestamp, status_changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		"Ship the report", "work", 5, "hard", "new", 1, "2024-03-01T10:00:00Z", nil)
	require.NoError(t, err)
	_, err = e.Exec(ctx, `
		INSERT INTO ideas (text, topic, ranking, difficulty, status, "order", timestamp, status_changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		"Scan negatives", "photo", 2, "easy", "done", 2, "2024-03-02T10:00:00Z", "2024-03-05T09:00:00Z")
	require.NoError(t, err)

	require.NoError(t, newMigrator(t, e).Run(ctx))

	// Flat tables are gone, unified tables are in.
	for _, table := range []string{"topics", "ideas"} {
		ok, err := e.TableExists(ctx, table)
		require.NoError(t, err)
		assert.False(t, ok, "legacy table %s survived", table)
	}

	var topics int
	require.NoError(t, e.Get(ctx, &topics, "SELECT COUNT(*) FROM items WHERE item_type = 'topic'"))
	assert.Equal(t, 2, topics)

	// Ideas became tasks under their topics.
	var tasks []struct {
		Text    string `db:"text"`
		Status  string `db:"status"`
		TopicID int64  `db:"topic_id"`
	}
	require.NoError(t, e.Select(ctx, &tasks, `
		SELECT i.text, i.status, i.topic_id
		FROM items i WHERE i.item_type = 'task' ORDER BY i.id`))
	require.Len(t, tasks, 2)
	assert.Equal(t, "Ship the report", tasks[0].Text)
	assert.Equal(t, "new", tasks[0].Status)
	assert.Equal(t, "done", tasks[1].Status)

	var topicName string
	require.NoError(t, e.Get(ctx, &topicName,
		"SELECT text FROM items WHERE id = ?", tasks[1].TopicID))
	assert.Equal(t, "Photography", topicName)

	// The done idea kept its completion time.
	var completed *string
	require.NoError(t, e.Get(ctx, &completed,
		"SELECT completed_at FROM items WHERE text = 'Scan negatives'"))
	require.NotNil(t, completed)

	// Topics already exist, so the default seed must not run.
	var all int
	require.NoError(t, e.Get(ctx, &all, "SELECT COUNT(*) FROM items WHERE item_type = 'topic'"))
	assert.Equal(t, 2, all)
}

func TestWeightBackfillBeforeUnification(t *testing.T) {
	e := testutil.NewEngine(t)
	ctx := context.Background()
	createLegacySchema(t, e)

	_, err := e.Exec(ctx,
		"INSERT INTO topics (id, name, priority) VALUES ('w', 'Work', 'always-on')")
	require.NoError(t, err)
	_, err = e.Exec(ctx, `
		INSERT INTO ideas (text, topic, ranking, status, "order", timestamp)
		VALUES ('a', 'w', 4, 'new', 1, '2024-01-01T00:00:00Z')`)
	require.NoError(t, err)

	// Running only against the flat layout still ends fully migrated; the
	// intermediate weight step is applied on the way.
	require.NoError(t, newMigrator(t, e).Run(ctx))

	ok, err := e.TableExists(ctx, "items")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMigrationIsIdempotent(t *testing.T) {
	e := testutil.NewEngine(t)
	ctx := context.Background()

	m := newMigrator(t, e)
	require.NoError(t, m.Run(ctx))

	var before int
	require.NoError(t, e.Get(ctx, &before, "SELECT COUNT(*) FROM items"))

	require.NoError(t, m.Run(ctx))
	require.NoError(t, newMigrator(t, e).Run(ctx))

	var after int
	require.NoError(t, e.Get(ctx, &after, "SELECT COUNT(*) FROM items"))
	assert.Equal(t, before, after)
}
