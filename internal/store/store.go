// Package store is the item repository: all reads and writes of the unified
// items table, priority links, and the scoring queries over them. Every
// mutation goes through the persistence engine, so a successful call means
// the image on disk already reflects it.
package store

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nhle/idea-dashboard/internal/engine"
	"github.com/nhle/idea-dashboard/internal/event"
)

const itemColumns = `id, text, parent_id, topic_id, item_type, status, purpose,
	due_date, icon, color, difficulty, "order" AS "order", created_at, completed_at`

// ItemFilter narrows list queries. Nil fields match everything.
type ItemFilter struct {
	ItemType *string
	ParentID *int64
	TopicID  *int64
	Status   *string
}

// Store is the repository over one open database.
type Store struct {
	engine   *engine.Engine
	bus      *event.Bus
	snapshot func(ctx context.Context, label string) (string, error)
	logger   zerolog.Logger
}

// New creates a Store. bus may be nil when no one listens for data changes.
func New(e *engine.Engine, bus *event.Bus, logger zerolog.Logger) *Store {
	return &Store{
		engine: e,
		bus:    bus,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// SetSnapshotHook installs the function called to back the dataset up
// before destructive bulk mutations such as topic deletion. Without a hook
// those mutations run unbacked.
func (s *Store) SetSnapshotHook(fn func(ctx context.Context, label string) (string, error)) {
	s.snapshot = fn
}

// notifyChanged announces a completed mutation to subscribers.
func (s *Store) notifyChanged() {
	if s.bus != nil {
		s.bus.Publish(event.DataChanged)
	}
}
