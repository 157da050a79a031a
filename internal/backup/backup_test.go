package backup_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/idea-dashboard/internal/backup"
	"github.com/nhle/idea-dashboard/internal/event"
	"github.com/nhle/idea-dashboard/internal/model"
	"github.com/nhle/idea-dashboard/internal/store"
	"github.com/nhle/idea-dashboard/tests/testutil"
)

func TestSnapshotAndList(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	key, err := f.Backups.Snapshot(ctx, "before-cleanup")
	require.NoError(t, err)
	assert.Contains(t, key, model.BackupPrefix+"before-cleanup")

	infos, err := f.Backups.List()
	require.NoError(t, err)
	require.NotEmpty(t, infos)
	assert.Equal(t, "before-cleanup", infos[0].Label)
	assert.Equal(t, key, infos[0].Key)
}

func TestPruneKeepsMostRecent(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := f.Backups.Snapshot(ctx, fmt.Sprintf("auto-%02d", i))
		require.NoError(t, err)
	}

	infos, err := f.Backups.List()
	require.NoError(t, err)
	require.Len(t, infos, 10)

	// The newest survive; the two oldest are gone.
	labels := make([]string, len(infos))
	for i, info := range infos {
		labels[i] = info.Label
	}
	assert.Equal(t, "auto-11", labels[0])
	assert.NotContains(t, labels, "auto-00")
	assert.NotContains(t, labels, "auto-01")
}

func TestRestoreRoundtrip(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	item, err := f.Store.CreateItem(ctx, model.ItemDraft{Text: "keep me"})
	require.NoError(t, err)
	p, err := f.Store.CreatePriority(ctx, "deadline", 8)
	require.NoError(t, err)
	require.NoError(t, f.Store.LinkPriority(ctx, item.ID, p.ID))

	key, err := f.Backups.Snapshot(ctx, "golden")
	require.NoError(t, err)

	// Mutate everything after the snapshot.
	require.NoError(t, f.Store.DeletePriority(ctx, p.ID))
	_, err = f.Store.CreateItem(ctx, model.ItemDraft{Text: "intruder"})
	require.NoError(t, err)

	require.NoError(t, f.Backups.Restore(ctx, key))

	restored, err := f.Store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep me", restored.Text)

	linked, err := f.Store.PrioritiesForItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "deadline", linked[0].Name)

	items, err := f.Store.ListItems(ctx, store.ItemFilter{})
	require.NoError(t, err)
	for _, it := range items {
		assert.NotEqual(t, "intruder", it.Text)
	}
}

func TestRestoreTakesPreRestoreSnapshot(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	key, err := f.Backups.Snapshot(ctx, "golden")
	require.NoError(t, err)
	require.NoError(t, f.Backups.Restore(ctx, key))

	infos, err := f.Backups.List()
	require.NoError(t, err)

	var found bool
	for _, info := range infos {
		if info.Label == "pre-restore" {
			found = true
		}
	}
	assert.True(t, found, "restore did not leave a pre-restore snapshot")
}

func TestRestoreRejectsUnknownKey(t *testing.T) {
	f := testutil.NewFixture(t)

	err := f.Backups.Restore(context.Background(), "management_system_backup_nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrSnapshotInvalid))

	// Nothing was touched: the seeded topics are still there.
	topics, err := f.Store.Topics(context.Background())
	require.NoError(t, err)
	assert.Len(t, topics, 7)
}

func TestSnapshotOnBareDatabaseIsLegacySafe(t *testing.T) {
	// A snapshot of a database with no tables at all is valid and empty.
	e := testutil.NewEngine(t)
	m := backup.New(e, nil, t.TempDir(), 0, zerolog.Nop())

	key, err := m.Snapshot(context.Background(), "empty")
	require.NoError(t, err)
	assert.NotEmpty(t, key)
}

func TestRestoreEmptySnapshotClearsData(t *testing.T) {
	f := testutil.NewFixture(t)
	testutil.ClearItems(t, f)
	ctx := context.Background()

	// A snapshot of nothing is structurally valid.
	key, err := f.Backups.Snapshot(ctx, "empty")
	require.NoError(t, err)

	_, err = f.Store.CreateItem(ctx, model.ItemDraft{Text: "later"})
	require.NoError(t, err)

	require.NoError(t, f.Backups.Restore(ctx, key))

	items, err := f.Store.ListItems(ctx, store.ItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestExportImportRoundtrip(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	item, err := f.Store.CreateItem(ctx, model.ItemDraft{Text: "keep me"})
	require.NoError(t, err)
	p, err := f.Store.CreatePriority(ctx, "deadline", 8)
	require.NoError(t, err)
	require.NoError(t, f.Store.LinkPriority(ctx, item.ID, p.ID))

	data, err := f.Backups.Export(ctx)
	require.NoError(t, err)

	// Mutate everything after the export.
	require.NoError(t, f.Store.DeletePriority(ctx, p.ID))
	_, err = f.Store.CreateItem(ctx, model.ItemDraft{Text: "intruder"})
	require.NoError(t, err)

	require.NoError(t, f.Backups.Import(ctx, data))

	restored, err := f.Store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep me", restored.Text)

	linked, err := f.Store.PrioritiesForItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "deadline", linked[0].Name)

	items, err := f.Store.ListItems(ctx, store.ItemFilter{})
	require.NoError(t, err)
	for _, it := range items {
		assert.NotEqual(t, "intruder", it.Text)
	}
}

func TestImportTakesPreImportSnapshot(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	data, err := f.Backups.Export(ctx)
	require.NoError(t, err)
	require.NoError(t, f.Backups.Import(ctx, data))

	infos, err := f.Backups.List()
	require.NoError(t, err)
	require.NotEmpty(t, infos)
	assert.Equal(t, "pre-import", infos[0].Label)
}

func TestImportRejectsMalformedJSON(t *testing.T) {
	f := testutil.NewFixture(t)

	err := f.Backups.Import(context.Background(), []byte("{not json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrSnapshotInvalid))

	// Nothing was touched: the seeded topics are still there.
	topics, err := f.Store.Topics(context.Background())
	require.NoError(t, err)
	assert.Len(t, topics, 7)
}

func TestImportLegacyExport(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	legacy := []byte(`{
		"topics": [{"id": "t1", "name": "Photography", "icon": "camera.ICO"}],
		"ideas": [{"id": 1, "text": "shoot film", "topic": "t1", "status": "backlog"}]
	}`)
	require.NoError(t, f.Backups.Import(ctx, legacy))

	topics, err := f.Store.Topics(ctx)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "Photography", topics[0].Text)

	children, err := f.Store.Children(ctx, topics[0].ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "shoot film", children[0].Text)
	assert.Equal(t, model.StatusBacklog, children[0].Status)
}

func TestImportPublishesDataChanged(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()

	data, err := f.Backups.Export(ctx)
	require.NoError(t, err)

	sub := f.Bus.Subscribe(1)
	defer sub.Cancel()

	require.NoError(t, f.Backups.Import(ctx, data))

	select {
	case evt := <-sub.C:
		assert.Equal(t, event.DataChanged, evt.Type)
	default:
		t.Fatal("import did not publish a data-changed event")
	}
}
