// Package mirror replicates the database image to a file in a remote Git
// repository over the contents API. Every push carries the revision token of
// the blob it replaces, so a concurrent writer from another machine surfaces
// as a conflict instead of a silent overwrite.
package mirror

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nhle/idea-dashboard/internal/model"
)

// Client is a thin HTTP client for the repository contents API. It handles
// Bearer token authentication, base64 content transcoding, and revision
// token bookkeeping for conflict detection.
type Client struct {
	baseURL    string
	owner      string
	repo       string
	branch     string
	path       string
	token      string
	httpClient *http.Client
}

// NewClient creates a contents API client for one file in one repository.
func NewClient(cfg model.RemoteConfig, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		owner:   cfg.Owner,
		repo:    cfg.Repo,
		branch:  cfg.Branch,
		path:    strings.TrimLeft(cfg.Path, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RemoteImage is a pulled database image together with the revision token
// that a subsequent push must echo back.
type RemoteImage struct {
	Content []byte
	SHA     string
}

type contentsResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	SHA      string `json:"sha"`
}

type contentsRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

func (c *Client) contentsURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, c.owner, c.repo, c.path)
}

// Pull fetches the mirrored image. A missing remote file is not an error; it
// returns (nil, nil) so a first run can bootstrap the remote side.
func (c *Client) Pull(ctx context.Context) (*RemoteImage, error) {
	reqURL := c.contentsURL() + "?ref=" + url.QueryEscape(c.branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating pull request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pulling remote image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading pull response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pull failed with status %d: %s", resp.StatusCode, truncate(body))
	}

	var parsed contentsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding pull response: %w", err)
	}
	// The API wraps base64 at 76 columns.
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(parsed.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("decoding remote content: %w", err)
	}
	return &RemoteImage{Content: raw, SHA: parsed.SHA}, nil
}

// Push uploads a new image revision. sha is the revision token from the last
// Pull or Push, empty when the remote file does not exist yet. It returns
// the new revision token. A stale sha surfaces as ErrRemoteConflict.
func (c *Client) Push(ctx context.Context, image []byte, sha string) (string, error) {
	payload := contentsRequest{
		Message: "Update database - " + time.Now().UTC().Format(time.RFC3339),
		Content: base64.StdEncoding.EncodeToString(image),
		Branch:  c.branch,
		SHA:     sha,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.contentsURL(), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating push request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("pushing remote image: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading push response: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return "", fmt.Errorf("%w: status %d: %s", model.ErrRemoteConflict, resp.StatusCode, truncate(body))
	default:
		return "", fmt.Errorf("push failed with status %d: %s", resp.StatusCode, truncate(body))
	}

	var parsed struct {
		Content struct {
			SHA string `json:"sha"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding push response: %w", err)
	}
	return parsed.Content.SHA, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
