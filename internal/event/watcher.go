package event

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ImageWatcher watches the local image file and republishes DataChanged on
// the bus when another process rewrites it. This is the coarse
// "something changed, re-read" signal between independent consumers of the
// same data dir; there is no locking or merging behind it.
type ImageWatcher struct {
	watcher   *fsnotify.Watcher
	bus       *Bus
	imagePath string
	logger    zerolog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewImageWatcher creates a watcher for imagePath publishing to bus.
// It must be started with Start before it emits anything.
func NewImageWatcher(imagePath string, bus *Bus, logger zerolog.Logger) (*ImageWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &ImageWatcher{
		watcher:   w,
		bus:       bus,
		imagePath: imagePath,
		logger:    logger.With().Str("component", "image-watcher").Logger(),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching the image file's directory. The directory, not the
// file, is watched because saves replace the file by rename.
func (w *ImageWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("image watcher already running")
	}
	dir := filepath.Dir(w.imagePath)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	w.running = true
	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop stops watching and waits for the event loop to exit.
func (w *ImageWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("closing watcher: %w", err)
	}
	w.wg.Wait()
	return nil
}

func (w *ImageWatcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.imagePath) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				w.bus.Publish(DataChanged)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("watch error")
		}
	}
}
