// Package engine wraps the embedded SQLite database behind the data layer.
// Every mutation synchronously re-serializes the whole database image and
// writes it to the local durable store before returning; there is no
// write-ahead persistence. That is O(database size) per write, which this
// single-user, small-dataset tool accepts.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/nhle/idea-dashboard/internal/model"
)

// MutationResult reports the outcome of a write.
type MutationResult struct {
	RowsAffected int64
	InsertedID   int64
}

// Engine owns the single process-wide database handle. It is constructed
// unopened; Initialize opens (optionally from an imported image) exactly
// once, and every operation before that fails with ErrNotInitialized.
type Engine struct {
	mu       sync.RWMutex
	db       *sqlx.DB
	dataDir  string
	workPath string
	local    *LocalStore
	logger   zerolog.Logger

	// onPersist runs after each successful local image save. The remote
	// mirror hooks in here; it must not block.
	onPersist func()
}

// New creates an unopened Engine rooted at dataDir. The working database
// lives at <dataDir>/working.db and the durable image at <dataDir>/image.json.
func New(dataDir string, logger zerolog.Logger) *Engine {
	return &Engine{
		dataDir:  dataDir,
		workPath: filepath.Join(dataDir, "working.db"),
		local:    NewLocalStore(filepath.Join(dataDir, "image.json")),
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// LocalImagePath returns the path of the durable local image file.
func (e *Engine) LocalImagePath() string { return e.local.Path() }

// Local returns the engine's local durable store.
func (e *Engine) Local() *LocalStore { return e.local }

// Initialize opens the database. When image is non-nil it becomes the
// working database content (remote or local image takes precedence over
// whatever working file was left behind); when nil and no durable image
// exists either, the database starts empty and the migrator creates the
// schema. Calling Initialize twice is an error.
func (e *Engine) Initialize(image []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db != nil {
		return fmt.Errorf("engine already initialized")
	}
	if err := os.MkdirAll(e.dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	if image != nil {
		if err := e.writeWorkingFile(image); err != nil {
			return err
		}
	}
	return e.openLocked()
}

// openLocked opens the working database file and applies pragmas.
// Caller holds e.mu.
func (e *Engine) openLocked() error {
	db, err := sqlx.Open("sqlite", e.workPath)
	if err != nil {
		return fmt.Errorf("opening sqlite db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return fmt.Errorf("enabling foreign keys: %w", err)
	}
	e.db = db
	return nil
}

// writeWorkingFile replaces the working database file with image and clears
// any stale WAL sidecars. Caller holds e.mu and the db must be closed.
func (e *Engine) writeWorkingFile(image []byte) error {
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(e.workPath + suffix)
	}
	if err := os.WriteFile(e.workPath, image, 0o644); err != nil {
		return fmt.Errorf("writing working database: %w", err)
	}
	return nil
}

// SetOnPersist registers a hook invoked after every successful local image
// save. Used by the remote mirror's debounced pusher.
func (e *Engine) SetOnPersist(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onPersist = fn
}

// Close closes the database handle. Further operations fail with
// ErrNotInitialized.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return err
}

// Select runs a query and scans all rows into dest (a pointer to a slice).
func (e *Engine) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	e.mu.RLock()
	db := e.db
	e.mu.RUnlock()
	if db == nil {
		return model.ErrNotInitialized
	}
	return db.SelectContext(ctx, dest, query, args...)
}

// Get runs a query expected to return one row and scans it into dest.
// A missing row surfaces as sql.ErrNoRows for the caller to translate.
func (e *Engine) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	e.mu.RLock()
	db := e.db
	e.mu.RUnlock()
	if db == nil {
		return model.ErrNotInitialized
	}
	return db.GetContext(ctx, dest, query, args...)
}

// Queryx runs a query and returns the raw sqlx rows, for callers that scan
// by hand. The caller must close the rows.
func (e *Engine) Queryx(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	e.mu.RLock()
	db := e.db
	e.mu.RUnlock()
	if db == nil {
		return nil, model.ErrNotInitialized
	}
	return db.QueryxContext(ctx, query, args...)
}

// Exec runs a mutation, then exports the full image and saves it to the
// local durable store before returning. The persist failure is the caller's
// failure: a write that was not made durable did not succeed.
func (e *Engine) Exec(ctx context.Context, query string, args ...interface{}) (MutationResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		return MutationResult{}, model.ErrNotInitialized
	}
	res, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return MutationResult{}, err
	}
	out := MutationResult{}
	out.RowsAffected, _ = res.RowsAffected()
	out.InsertedID, _ = res.LastInsertId()

	if err := e.persistLocked(ctx); err != nil {
		return out, err
	}
	return out, nil
}

// persistLocked exports the image, saves it locally, and fires the persist
// hook. Caller holds e.mu with the db open.
func (e *Engine) persistLocked(ctx context.Context) error {
	image, err := e.exportLocked(ctx)
	if err != nil {
		return fmt.Errorf("exporting image: %w", err)
	}
	if err := e.local.Save(image); err != nil {
		return fmt.Errorf("saving local image: %w", err)
	}
	if e.onPersist != nil {
		e.onPersist()
	}
	return nil
}

// ExportImage serializes the entire database into a standalone SQLite image.
func (e *Engine) ExportImage(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil, model.ErrNotInitialized
	}
	return e.exportLocked(ctx)
}

// exportLocked snapshots the database via VACUUM INTO a scratch file and
// reads it back. Caller holds e.mu.
func (e *Engine) exportLocked(ctx context.Context) ([]byte, error) {
	scratch := filepath.Join(e.dataDir, "export-"+uuid.New().String()+".db")
	defer os.Remove(scratch)

	if _, err := e.db.ExecContext(ctx, "VACUUM INTO ?", scratch); err != nil {
		return nil, fmt.Errorf("vacuum into scratch file: %w", err)
	}
	image, err := os.ReadFile(scratch)
	if err != nil {
		return nil, fmt.Errorf("reading scratch file: %w", err)
	}
	return image, nil
}

// LoadImage replaces the live database with the given image: the handle is
// closed, the working file overwritten, and the database reopened.
func (e *Engine) LoadImage(image []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		return model.ErrNotInitialized
	}
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("closing before image load: %w", err)
	}
	e.db = nil
	if err := e.writeWorkingFile(image); err != nil {
		return err
	}
	return e.openLocked()
}

// TableExists reports whether a table of the given name exists.
func (e *Engine) TableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := e.Get(ctx, &count,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name)
	if err != nil {
		return false, fmt.Errorf("checking for table %s: %w", name, err)
	}
	return count > 0, nil
}

// ColumnExists reports whether the named table has the named column.
func (e *Engine) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	rows, err := e.Queryx(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return false, fmt.Errorf("reading table info for %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &primaryKey); err != nil {
			return false, fmt.Errorf("scanning table info row: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
