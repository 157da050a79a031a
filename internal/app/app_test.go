package app_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/idea-dashboard/internal/app"
	"github.com/nhle/idea-dashboard/internal/model"
)

func localConfig(dataDir string) *model.AppConfig {
	return &model.AppConfig{
		DataDir: dataDir,
		Backup:  model.BackupConfig{Keep: model.BackupKeep},
	}
}

func TestInitFreshSeedsDefaults(t *testing.T) {
	a := app.New(localConfig(t.TempDir()), zerolog.Nop())
	require.NoError(t, a.Init(context.Background()))
	defer a.Close()

	topics, err := a.Store.Topics(context.Background())
	require.NoError(t, err)
	assert.Len(t, topics, 7)

	assert.True(t, a.WaitUntilReady(time.Second))
}

func TestInitRunsOnce(t *testing.T) {
	a := app.New(localConfig(t.TempDir()), zerolog.Nop())
	defer a.Close()

	require.NoError(t, a.Init(context.Background()))
	require.NoError(t, a.Init(context.Background()))
}

func TestRestartLoadsLocalImage(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()

	first := app.New(localConfig(dataDir), zerolog.Nop())
	require.NoError(t, first.Init(ctx))
	item, err := first.Store.CreateItem(ctx, model.ItemDraft{Text: "survives restart"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := app.New(localConfig(dataDir), zerolog.Nop())
	require.NoError(t, second.Init(ctx))
	defer second.Close()

	got, err := second.Store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "survives restart", got.Text)
}

// remoteFixture serves a contents API, recording pushes.
type remoteFixture struct {
	mu     sync.Mutex
	image  []byte
	sha    string
	pushes int
}

func (r *remoteFixture) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		defer r.mu.Unlock()
		switch req.Method {
		case http.MethodGet:
			if r.image == nil {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"content":  base64.StdEncoding.EncodeToString(r.image),
				"encoding": "base64",
				"sha":      r.sha,
			})
		case http.MethodPut:
			var body struct {
				Content string `json:"content"`
			}
			json.NewDecoder(req.Body).Decode(&body)
			r.image, _ = base64.StdEncoding.DecodeString(body.Content)
			r.pushes++
			r.sha = "rev"
			json.NewEncoder(w).Encode(map[string]interface{}{
				"content": map[string]string{"sha": r.sha},
			})
		}
	})
}

func remoteConfig(dataDir, baseURL string) *model.AppConfig {
	cfg := localConfig(dataDir)
	cfg.Remote = model.RemoteConfig{
		Owner:           "nhle",
		Repo:            "dashboard-data",
		Branch:          "master",
		Path:            "data/database.sqlite",
		BaseURL:         baseURL,
		DebounceSeconds: 1,
	}
	return cfg
}

func TestInitPrefersRemoteImage(t *testing.T) {
	ctx := context.Background()
	t.Setenv("IDEADASH_TOKEN", "tok")

	// Build a populated image to serve as the remote copy.
	seed := app.New(localConfig(t.TempDir()), zerolog.Nop())
	require.NoError(t, seed.Init(ctx))
	item, err := seed.Store.CreateItem(ctx, model.ItemDraft{Text: "remote marker"})
	require.NoError(t, err)
	image, err := seed.Engine.ExportImage(ctx)
	require.NoError(t, err)
	require.NoError(t, seed.Close())

	remote := &remoteFixture{image: image, sha: "initial"}
	srv := httptest.NewServer(remote.handler())
	defer srv.Close()

	a := app.New(remoteConfig(t.TempDir(), srv.URL), zerolog.Nop())
	require.NoError(t, a.Init(ctx))
	defer a.Close()

	got, err := a.Store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "remote marker", got.Text)
}

func TestWritesReachTheMirror(t *testing.T) {
	ctx := context.Background()
	t.Setenv("IDEADASH_TOKEN", "tok")

	remote := &remoteFixture{}
	srv := httptest.NewServer(remote.handler())
	defer srv.Close()

	a := app.New(remoteConfig(t.TempDir(), srv.URL), zerolog.Nop())
	require.NoError(t, a.Init(ctx))
	defer a.Close()

	_, err := a.Store.CreateItem(ctx, model.ItemDraft{Text: "mirror me"})
	require.NoError(t, err)
	a.Flush(ctx)

	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.GreaterOrEqual(t, remote.pushes, 1)
	assert.NotEmpty(t, remote.image)
}

func TestMissingTokenDisablesMirrorSilently(t *testing.T) {
	ctx := context.Background()
	t.Setenv("IDEADASH_TOKEN", "")

	remote := &remoteFixture{}
	srv := httptest.NewServer(remote.handler())
	defer srv.Close()

	// Remote is configured, but no token exists: the app still comes up and
	// never talks to the server.
	a := app.New(remoteConfig(t.TempDir(), srv.URL), zerolog.Nop())
	require.NoError(t, a.Init(ctx))
	defer a.Close()

	_, err := a.Store.CreateItem(ctx, model.ItemDraft{Text: "local only"})
	require.NoError(t, err)
	a.Flush(ctx)

	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.Zero(t, remote.pushes)
}
