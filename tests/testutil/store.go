// Package testutil builds throwaway data layers for tests.
package testutil

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nhle/idea-dashboard/internal/backup"
	"github.com/nhle/idea-dashboard/internal/engine"
	"github.com/nhle/idea-dashboard/internal/event"
	"github.com/nhle/idea-dashboard/internal/migrate"
	"github.com/nhle/idea-dashboard/internal/store"
)

// Fixture bundles an initialized data layer rooted in a temp directory.
type Fixture struct {
	Engine  *engine.Engine
	Bus     *event.Bus
	Store   *store.Store
	Backups *backup.Manager
	DataDir string
}

// NewEngine creates an initialized empty engine in a temp directory and
// closes it when the test completes. No schema is applied.
func NewEngine(t *testing.T) *engine.Engine {
	t.Helper()

	e := engine.New(t.TempDir(), zerolog.Nop())
	if err := e.Initialize(nil); err != nil {
		t.Fatalf("initializing test engine: %v", err)
	}

	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Errorf("closing test engine: %v", err)
		}
	})

	return e
}

// NewFixture creates a fully migrated data layer in a temp directory.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()

	dataDir := t.TempDir()
	e := engine.New(dataDir, zerolog.Nop())
	if err := e.Initialize(nil); err != nil {
		t.Fatalf("initializing test engine: %v", err)
	}
	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Errorf("closing test engine: %v", err)
		}
	})

	bus := event.NewBus()
	backups := backup.New(e, bus, dataDir, 0, zerolog.Nop())
	if err := migrate.New(e, backups, zerolog.Nop()).Run(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	st := store.New(e, bus, zerolog.Nop())
	st.SetSnapshotHook(backups.Snapshot)
	return &Fixture{
		Engine:  e,
		Bus:     bus,
		Store:   st,
		Backups: backups,
		DataDir: dataDir,
	}
}

// ClearItems removes the seeded default topics so tests start from an empty
// dataset with a fresh id sequence.
func ClearItems(t *testing.T, f *Fixture) {
	t.Helper()
	ctx := context.Background()
	for _, stmt := range []string{
		"DELETE FROM item_priorities",
		"DELETE FROM items",
		"DELETE FROM sqlite_sequence WHERE name = 'items'",
	} {
		if _, err := f.Engine.Exec(ctx, stmt); err != nil {
			t.Fatalf("clearing items: %v", err)
		}
	}
}
