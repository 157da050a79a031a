package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the pusher waits after the last local write
// before uploading.
const DefaultDebounce = 3 * time.Second

// ImageSource produces the current database image at upload time. Deferring
// the export until the debounce fires means a burst of writes uploads once,
// with the final state.
type ImageSource func(ctx context.Context) ([]byte, error)

// Pusher debounces mirror uploads. Each Notify resets the timer; only the
// last pending upload ever runs. Upload failures are logged and dropped, the
// next local write schedules a fresh attempt.
type Pusher struct {
	client *Client
	source ImageSource
	delay  time.Duration
	logger zerolog.Logger

	mu     sync.Mutex
	timer  *time.Timer
	sha    string
	closed bool
	wg     sync.WaitGroup
}

// NewPusher creates a Pusher. sha is the revision token of the image the
// local database was bootstrapped from, empty if the remote file does not
// exist yet.
func NewPusher(client *Client, source ImageSource, delay time.Duration, sha string, logger zerolog.Logger) *Pusher {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Pusher{
		client: client,
		source: source,
		delay:  delay,
		sha:    sha,
		logger: logger.With().Str("component", "mirror").Logger(),
	}
}

// Notify schedules an upload after the debounce window. Calling it again
// before the window elapses restarts the window.
func (p *Pusher) Notify() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.timer != nil && p.timer.Stop() {
		p.wg.Done()
	}
	p.wg.Add(1)
	p.timer = time.AfterFunc(p.delay, func() {
		defer p.wg.Done()
		p.push(context.Background())
	})
}

// Flush pushes any pending upload immediately and waits for it to finish.
func (p *Pusher) Flush(ctx context.Context) {
	p.mu.Lock()
	pending := p.timer != nil && p.timer.Stop()
	p.timer = nil
	p.mu.Unlock()

	if pending {
		p.push(ctx)
		p.wg.Done()
	}
	p.wg.Wait()
}

// Close cancels any pending upload and waits for an in-flight one.
func (p *Pusher) Close() {
	p.mu.Lock()
	p.closed = true
	cancelled := p.timer != nil && p.timer.Stop()
	p.timer = nil
	p.mu.Unlock()

	if cancelled {
		p.wg.Done()
	}
	p.wg.Wait()
}

// push exports the current image and uploads it. On a revision conflict it
// refreshes the token from the remote and retries once.
func (p *Pusher) push(ctx context.Context) {
	image, err := p.source(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("exporting image for mirror upload failed")
		return
	}

	p.mu.Lock()
	sha := p.sha
	p.mu.Unlock()

	newSHA, err := p.client.Push(ctx, image, sha)
	if err != nil {
		remote, pullErr := p.client.Pull(ctx)
		if pullErr != nil || remote == nil {
			p.logger.Warn().Err(err).Msg("mirror upload failed")
			return
		}
		newSHA, err = p.client.Push(ctx, image, remote.SHA)
		if err != nil {
			p.logger.Warn().Err(err).Msg("mirror upload failed after revision refresh")
			return
		}
	}

	p.mu.Lock()
	p.sha = newSHA
	p.mu.Unlock()
	p.logger.Debug().Str("sha", newSHA).Msg("mirror upload complete")
}
