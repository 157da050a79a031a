// Package app wires the whole data layer together: it bootstraps the
// database image (remote mirror first, local copy second, fresh schema
// last), runs migrations, and connects local writes to the debounced mirror
// pusher.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/idea-dashboard/internal/backup"
	"github.com/nhle/idea-dashboard/internal/credential"
	"github.com/nhle/idea-dashboard/internal/engine"
	"github.com/nhle/idea-dashboard/internal/event"
	"github.com/nhle/idea-dashboard/internal/migrate"
	"github.com/nhle/idea-dashboard/internal/mirror"
	"github.com/nhle/idea-dashboard/internal/model"
	"github.com/nhle/idea-dashboard/internal/store"
)

// App owns the initialized subsystems. Construct with New, then call Init
// once before using Store or Backups.
type App struct {
	Config  *model.AppConfig
	Engine  *engine.Engine
	Bus     *event.Bus
	Store   *store.Store
	Backups *backup.Manager

	pusher  *mirror.Pusher
	watcher *event.ImageWatcher
	logger  zerolog.Logger

	initOnce sync.Once
	initErr  error
	ready    chan struct{}
}

// New assembles an App from configuration. Nothing touches disk until Init.
func New(cfg *model.AppConfig, logger zerolog.Logger) *App {
	eng := engine.New(cfg.DataDir, logger)
	bus := event.NewBus()
	st := store.New(eng, bus, logger)
	backups := backup.New(eng, bus, cfg.DataDir, cfg.Backup.Keep, logger)
	// Topic deletion snapshots the dataset before any row goes away.
	st.SetSnapshotHook(backups.Snapshot)
	return &App{
		Config:  cfg,
		Engine:  eng,
		Bus:     bus,
		Store:   st,
		Backups: backups,
		logger:  logger.With().Str("component", "app").Logger(),
		ready:   make(chan struct{}),
	}
}

// Init bootstraps the database exactly once. The freshest available image
// wins: the remote mirror when reachable, otherwise the local image file,
// otherwise an empty database that gets the full schema. Migration and
// seeding run on whatever was loaded, and every later write schedules a
// mirror upload.
func (a *App) Init(ctx context.Context) error {
	a.initOnce.Do(func() {
		a.initErr = a.init(ctx)
		if a.initErr == nil {
			close(a.ready)
			a.Bus.Publish(event.DatabaseReady)
		}
	})
	return a.initErr
}

func (a *App) init(ctx context.Context) error {
	image, client, sha := a.bootstrapImage(ctx)

	if err := a.Engine.Initialize(image); err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}

	migrator := migrate.New(a.Engine, a.Backups, a.logger)
	if err := migrator.Run(ctx); err != nil {
		return err
	}

	if client != nil {
		delay := time.Duration(a.Config.Remote.DebounceSeconds) * time.Second
		a.pusher = mirror.NewPusher(client, a.Engine.ExportImage, delay, sha, a.logger)
		a.Engine.SetOnPersist(a.pusher.Notify)
	}

	// Another process rewriting the local image (a second dashboard on the
	// same data dir) shows up as a data-changed event.
	watcher, err := event.NewImageWatcher(a.Engine.LocalImagePath(), a.Bus, a.logger)
	if err != nil {
		a.logger.Warn().Err(err).Msg("image watcher unavailable")
	} else if err := watcher.Start(); err != nil {
		a.logger.Warn().Err(err).Msg("starting image watcher failed")
	} else {
		a.watcher = watcher
	}
	return nil
}

// bootstrapImage picks the image to start from and, when the mirror is
// usable, returns its client and the revision token of the pulled image.
func (a *App) bootstrapImage(ctx context.Context) ([]byte, *mirror.Client, string) {
	var client *mirror.Client
	var sha string

	if a.Config.Remote.Configured() {
		token, err := credential.Get(credential.TokenKey)
		switch {
		case errors.Is(err, credential.ErrNotFound):
			a.logger.Debug().Msg("no remote token, mirror disabled")
		case err != nil:
			a.logger.Warn().Err(err).Msg("reading remote token failed, mirror disabled")
		default:
			client = mirror.NewClient(a.Config.Remote, token)
		}
	}

	if client != nil {
		remote, err := client.Pull(ctx)
		if err != nil {
			a.logger.Warn().Err(err).Msg("pulling remote image failed, falling back to local")
		} else if remote != nil {
			a.logger.Info().Int("bytes", len(remote.Content)).Msg("starting from remote image")
			return remote.Content, client, remote.SHA
		}
	}

	local, err := a.Engine.Local().Load()
	if err != nil {
		a.logger.Warn().Err(err).Msg("reading local image failed, starting fresh")
	} else if local != nil {
		a.logger.Info().Int("bytes", len(local)).Msg("starting from local image")
		return local, client, sha
	}

	a.logger.Info().Msg("no existing image, starting fresh")
	return nil, client, sha
}

// WaitUntilReady blocks until Init finished or the timeout passed. A timeout
// is not an error; callers proceed and hit ErrNotInitialized if it truly
// never came up.
func (a *App) WaitUntilReady(timeout time.Duration) bool {
	select {
	case <-a.ready:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Flush pushes any pending mirror upload now.
func (a *App) Flush(ctx context.Context) {
	if a.pusher != nil {
		a.pusher.Flush(ctx)
	}
}

// Close flushes the mirror and releases the database.
func (a *App) Close() error {
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn().Err(err).Msg("stopping image watcher")
		}
	}
	if a.pusher != nil {
		a.pusher.Close()
	}
	return a.Engine.Close()
}
