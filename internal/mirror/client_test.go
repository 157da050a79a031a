package mirror

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/idea-dashboard/internal/model"
)

func testConfig(baseURL string) model.RemoteConfig {
	return model.RemoteConfig{
		Owner:   "nhle",
		Repo:    "dashboard-data",
		Branch:  "master",
		Path:    "data/database.sqlite",
		BaseURL: baseURL,
	}
}

func TestPullDecodesContentAndSHA(t *testing.T) {
	image := []byte("sqlite image bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/repos/nhle/dashboard-data/contents/data/database.sqlite", r.URL.Path)
		assert.Equal(t, "master", r.URL.Query().Get("ref"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		// The API wraps base64 in newlines.
		enc := base64.StdEncoding.EncodeToString(image)
		wrapped := enc[:8] + "\n" + enc[8:]
		json.NewEncoder(w).Encode(map[string]string{
			"content": wrapped, "encoding": "base64", "sha": "abc123",
		})
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), "tok")
	remote, err := client.Pull(context.Background())
	require.NoError(t, err)
	require.NotNil(t, remote)
	assert.Equal(t, image, remote.Content)
	assert.Equal(t, "abc123", remote.SHA)
}

func TestPullMissingFileReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), "tok")
	remote, err := client.Pull(context.Background())
	require.NoError(t, err)
	assert.Nil(t, remote)
}

func TestPushSendsRevisionToken(t *testing.T) {
	var got contentsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": map[string]string{"sha": "next-sha"},
		})
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), "tok")
	newSHA, err := client.Push(context.Background(), []byte("image"), "old-sha")
	require.NoError(t, err)

	assert.Equal(t, "next-sha", newSHA)
	assert.Equal(t, "old-sha", got.SHA)
	assert.Equal(t, "master", got.Branch)
	assert.Contains(t, got.Message, "Update database - ")

	raw, err := base64.StdEncoding.DecodeString(got.Content)
	require.NoError(t, err)
	assert.Equal(t, []byte("image"), raw)
}

func TestPushStaleRevisionIsConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), "tok")
	_, err := client.Push(context.Background(), []byte("image"), "stale")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrRemoteConflict))
}

func TestPusherCoalescesBurst(t *testing.T) {
	var mu sync.Mutex
	var pushes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			mu.Lock()
			pushes++
			mu.Unlock()
			json.NewEncoder(w).Encode(map[string]interface{}{
				"content": map[string]string{"sha": "s1"},
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), "tok")
	source := func(ctx context.Context) ([]byte, error) { return []byte("image"), nil }
	pusher := NewPusher(client, source, 50*time.Millisecond, "", zerolog.Nop())
	defer pusher.Close()

	// A burst of writes within the quiet period uploads exactly once.
	for i := 0; i < 5; i++ {
		pusher.Notify()
		time.Sleep(5 * time.Millisecond)
	}
	pusher.Flush(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, pushes)
}

func TestPusherRetriesWithFreshRevision(t *testing.T) {
	var mu sync.Mutex
	var attempts int
	image := base64.StdEncoding.EncodeToString([]byte("remote"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]string{
				"content": image, "encoding": "base64", "sha": "fresh",
			})
			return
		}
		var req contentsRequest
		json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		attempts++
		mu.Unlock()
		if req.SHA != "fresh" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": map[string]string{"sha": "after"},
		})
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL), "tok")
	source := func(ctx context.Context) ([]byte, error) { return []byte("image"), nil }
	pusher := NewPusher(client, source, time.Millisecond, "stale", zerolog.Nop())
	defer pusher.Close()

	pusher.Notify()
	pusher.Flush(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}
