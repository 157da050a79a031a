// Package backup snapshots the full logical dataset (not the binary image)
// before destructive operations, keeps a bounded ring of recent snapshots,
// and restores them. The same payload shape doubles as the export/import
// format. Snapshots taken at pre-migration schema generations use the
// legacy ideas/topics shape and restore transparently.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/idea-dashboard/internal/engine"
	"github.com/nhle/idea-dashboard/internal/event"
	"github.com/nhle/idea-dashboard/internal/model"
)

// Info is the metadata of one stored snapshot.
type Info struct {
	Key       string
	Label     string
	Timestamp time.Time
}

// Manager owns the snapshot directory.
type Manager struct {
	engine *engine.Engine
	bus    *event.Bus
	dir    string
	keep   int
	logger zerolog.Logger
}

// New creates a Manager storing snapshots under <dataDir>/backups, retaining
// the keep most recent. bus may be nil when no one listens for data changes.
func New(e *engine.Engine, bus *event.Bus, dataDir string, keep int, logger zerolog.Logger) *Manager {
	if keep <= 0 {
		keep = model.BackupKeep
	}
	return &Manager{
		engine: e,
		bus:    bus,
		dir:    filepath.Join(dataDir, "backups"),
		keep:   keep,
		logger: logger.With().Str("component", "backup").Logger(),
	}
}

func (m *Manager) notifyChanged() {
	if m.bus != nil {
		m.bus.Publish(event.DataChanged)
	}
}

// Snapshot serializes the current logical dataset under the given label and
// immediately prunes old snapshots. It returns the snapshot key.
func (m *Manager) Snapshot(ctx context.Context, label string) (string, error) {
	payload, err := m.collect(ctx)
	if err != nil {
		return "", fmt.Errorf("collecting snapshot payload: %w", err)
	}

	now := time.Now().UTC()
	rec := model.BackupRecord{Label: label, Timestamp: now, Payload: *payload}
	key := fmt.Sprintf("%s%s_%s", model.BackupPrefix, label, now.Format("20060102T150405.000000000Z"))

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, key+".json"), data, 0o644); err != nil {
		return "", fmt.Errorf("writing snapshot %s: %w", key, err)
	}

	if err := m.Prune(); err != nil {
		m.logger.Warn().Err(err).Msg("pruning old snapshots failed")
	}
	m.logger.Debug().Str("key", key).Msg("snapshot created")
	return key, nil
}

// collect reads the full logical dataset. Pre-migration databases (no items
// table yet) produce the legacy ideas/topics shape.
func (m *Manager) collect(ctx context.Context) (*model.BackupPayload, error) {
	hasItems, err := m.engine.TableExists(ctx, "items")
	if err != nil {
		return nil, err
	}
	if !hasItems {
		return m.collectLegacy(ctx)
	}

	payload := &model.BackupPayload{}
	err = m.engine.Select(ctx, &payload.Items, `
		SELECT id, text, parent_id, topic_id, item_type, status, purpose,
		       due_date, icon, color, difficulty, "order" AS "order",
		       created_at, completed_at
		FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("reading items: %w", err)
	}

	hasPriorities, err := m.engine.TableExists(ctx, "priorities")
	if err != nil {
		return nil, err
	}
	if hasPriorities {
		err = m.engine.Select(ctx, &payload.Priorities,
			"SELECT id, name, rank, created_at FROM priorities ORDER BY id")
		if err != nil {
			return nil, fmt.Errorf("reading priorities: %w", err)
		}
		err = m.engine.Select(ctx, &payload.Links,
			"SELECT item_id, priority_id FROM item_priorities ORDER BY item_id, priority_id")
		if err != nil {
			return nil, fmt.Errorf("reading item links: %w", err)
		}
	}
	return payload, nil
}

// collectLegacy reads the flat two-table dataset of pre-unification schemas.
func (m *Manager) collectLegacy(ctx context.Context) (*model.BackupPayload, error) {
	payload := &model.BackupPayload{}

	hasTopics, err := m.engine.TableExists(ctx, "topics")
	if err != nil {
		return nil, err
	}
	if !hasTopics {
		// Nothing at all yet; an empty payload is a valid snapshot of an
		// empty database.
		return payload, nil
	}

	hasWeight, err := m.engine.ColumnExists(ctx, "topics", "weight")
	if err != nil {
		return nil, err
	}
	topicCols := "id, name, COALESCE(priority, '') AS priority, COALESCE(color, '') AS color, icon"
	ideaCols := `id, text, COALESCE(topic, '') AS topic, COALESCE(ranking, 0) AS ranking,
		COALESCE(difficulty, '') AS difficulty, COALESCE(status, '') AS status,
		COALESCE("order", 0) AS "order", COALESCE(timestamp, '') AS timestamp, status_changed_at`
	if hasWeight {
		topicCols += ", weight"
		ideaCols += ", weight"
	}

	err = m.engine.Select(ctx, &payload.Topics,
		fmt.Sprintf("SELECT %s FROM topics ORDER BY id", topicCols))
	if err != nil {
		return nil, fmt.Errorf("reading legacy topics: %w", err)
	}
	err = m.engine.Select(ctx, &payload.Ideas,
		fmt.Sprintf("SELECT %s FROM ideas ORDER BY id", ideaCols))
	if err != nil {
		return nil, fmt.Errorf("reading legacy ideas: %w", err)
	}
	return payload, nil
}

// List returns all snapshots ordered most recent first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup dir: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, model.BackupPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := m.load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			m.logger.Warn().Str("file", name).Err(err).Msg("skipping unreadable snapshot")
			continue
		}
		infos = append(infos, Info{
			Key:       strings.TrimSuffix(name, ".json"),
			Label:     rec.Label,
			Timestamp: rec.Timestamp,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})
	return infos, nil
}

// Prune deletes all but the keep most recent snapshots.
func (m *Manager) Prune() error {
	infos, err := m.List()
	if err != nil {
		return err
	}
	for _, info := range infos[min(m.keep, len(infos)):] {
		if err := os.Remove(filepath.Join(m.dir, info.Key+".json")); err != nil {
			return fmt.Errorf("removing snapshot %s: %w", info.Key, err)
		}
		m.logger.Debug().Str("key", info.Key).Msg("snapshot pruned")
	}
	return nil
}

// load decodes one snapshot record by key.
func (m *Manager) load(key string) (*model.BackupRecord, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, key+".json"))
	if err != nil {
		return nil, err
	}
	var rec model.BackupRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Restore replaces the live dataset with the snapshot under key. A missing
// or undecodable snapshot fails before any write; a legitimately empty
// payload restores an empty dataset. Once row repopulation begins, a failure
// partway is not rolled back (the pre-restore snapshot taken here is the
// recovery path).
func (m *Manager) Restore(ctx context.Context, key string) error {
	rec, err := m.load(key)
	if err != nil {
		return fmt.Errorf("%w: %s", model.ErrSnapshotInvalid, key)
	}

	// Restore is itself undo-able.
	if _, err := m.Snapshot(ctx, "pre-restore"); err != nil {
		return fmt.Errorf("taking pre-restore snapshot: %w", err)
	}
	if err := m.apply(ctx, &rec.Payload); err != nil {
		return fmt.Errorf("restoring snapshot %s: %w", key, err)
	}

	m.logger.Info().Str("key", key).Msg("snapshot restored")
	m.notifyChanged()
	return nil
}

// Export serializes the full logical dataset as indented JSON, the same
// payload shape snapshots use.
func (m *Manager) Export(ctx context.Context) ([]byte, error) {
	payload, err := m.collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collecting export payload: %w", err)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding export: %w", err)
	}
	return data, nil
}

// Import replaces the live dataset with an exported payload. Undecodable
// input fails before any write; a pre-import snapshot makes the import
// undo-able. Legacy ideas/topics exports import transparently.
func (m *Manager) Import(ctx context.Context, data []byte) error {
	var payload model.BackupPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: decoding import: %v", model.ErrSnapshotInvalid, err)
	}

	if _, err := m.Snapshot(ctx, "pre-import"); err != nil {
		return fmt.Errorf("taking pre-import snapshot: %w", err)
	}
	if err := m.apply(ctx, &payload); err != nil {
		return fmt.Errorf("importing dataset: %w", err)
	}

	m.logger.Info().Int("items", len(payload.Items)).Msg("dataset imported")
	m.notifyChanged()
	return nil
}

// apply clears the live tables and repopulates them from the payload.
func (m *Manager) apply(ctx context.Context, p *model.BackupPayload) error {
	if err := m.clear(ctx); err != nil {
		return fmt.Errorf("clearing live data: %w", err)
	}
	if len(p.Topics) > 0 || len(p.Ideas) > 0 {
		return m.repopulateLegacy(ctx, p)
	}
	return m.repopulate(ctx, p)
}

// clear empties the live tables. Parent references are nulled first so the
// bulk delete never trips the self-referencing foreign key.
func (m *Manager) clear(ctx context.Context) error {
	stmts := []string{
		"DELETE FROM item_priorities",
		"DELETE FROM priorities",
		"UPDATE items SET parent_id = NULL, topic_id = NULL",
		"DELETE FROM items",
		"DELETE FROM sqlite_sequence WHERE name IN ('items', 'priorities')",
	}
	for _, stmt := range stmts {
		if _, err := m.engine.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// repopulate inserts a current-shape payload. Items go in two passes (rows
// first, hierarchy second) so inserts never reference a row that is not
// there yet.
func (m *Manager) repopulate(ctx context.Context, p *model.BackupPayload) error {
	for _, item := range p.Items {
		_, err := m.engine.Exec(ctx, `
			INSERT INTO items (id, text, item_type, status, purpose, due_date,
			                   icon, color, difficulty, "order", created_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.Text, item.ItemType, item.Status, item.Purpose,
			item.DueDate, item.Icon, item.Color, item.Difficulty, item.Order,
			item.CreatedAt, item.CompletedAt)
		if err != nil {
			return fmt.Errorf("inserting item %d: %w", item.ID, err)
		}
	}
	for _, item := range p.Items {
		if item.ParentID == nil && item.TopicID == nil {
			continue
		}
		_, err := m.engine.Exec(ctx,
			"UPDATE items SET parent_id = ?, topic_id = ? WHERE id = ?",
			item.ParentID, item.TopicID, item.ID)
		if err != nil {
			return fmt.Errorf("linking item %d: %w", item.ID, err)
		}
	}
	for _, pr := range p.Priorities {
		_, err := m.engine.Exec(ctx,
			"INSERT INTO priorities (id, name, rank, created_at) VALUES (?, ?, ?, ?)",
			pr.ID, pr.Name, pr.Rank, pr.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting priority %d: %w", pr.ID, err)
		}
	}
	for _, link := range p.Links {
		_, err := m.engine.Exec(ctx,
			"INSERT INTO item_priorities (item_id, priority_id) VALUES (?, ?)",
			link.ItemID, link.PriorityID)
		if err != nil {
			return fmt.Errorf("linking item %d to priority %d: %w", link.ItemID, link.PriorityID, err)
		}
	}
	return nil
}

// repopulateLegacy maps a legacy ideas/topics payload into the unified items
// table: topics become topic items, ideas become their task children.
func (m *Manager) repopulateLegacy(ctx context.Context, p *model.BackupPayload) error {
	topicIDs := make(map[string]int64, len(p.Topics))
	for _, t := range p.Topics {
		res, err := m.engine.Exec(ctx, `
			INSERT INTO items (text, item_type, status, icon, color, "order", created_at)
			VALUES (?, 'topic', 'new', ?, NULLIF(?, ''), 0, ?)`,
			t.Name, t.Icon, t.Color, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("inserting topic %q: %w", t.Name, err)
		}
		topicIDs[t.ID] = res.InsertedID
	}
	for _, idea := range p.Ideas {
		var parent *int64
		if id, ok := topicIDs[idea.Topic]; ok {
			parent = &id
		}
		status := idea.Status
		if !model.ValidStatus(status) {
			status = model.StatusNew
		}
		var completedAt *string
		if idea.Status == model.StatusDone {
			completedAt = idea.StatusChangedAt
		}
		var difficulty *string
		if model.ValidDifficulty(idea.Difficulty) {
			difficulty = &idea.Difficulty
		}
		created := idea.Timestamp
		if created == "" {
			created = time.Now().UTC().Format(time.RFC3339)
		}
		_, err := m.engine.Exec(ctx, `
			INSERT INTO items (text, parent_id, topic_id, item_type, status,
			                   difficulty, "order", created_at, completed_at)
			VALUES (?, ?, ?, 'task', ?, ?, ?, ?, ?)`,
			idea.Text, parent, parent, status, difficulty,
			idea.Order, created, completedAt)
		if err != nil {
			return fmt.Errorf("inserting idea %q: %w", idea.Text, err)
		}
	}
	return nil
}
