package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// imageEnvelope is the on-disk wrapper for the database image: the raw bytes
// JSON-wrapped together with the save time. encoding/json base64-encodes the
// Image field.
type imageEnvelope struct {
	SavedAt time.Time `json:"saved_at"`
	Image   []byte    `json:"image"`
}

// LocalStore persists the database image to a single JSON file. Writes go
// through a temp file and rename so a crash never leaves a torn image.
type LocalStore struct {
	path string
}

// NewLocalStore returns a LocalStore writing to path.
func NewLocalStore(path string) *LocalStore {
	return &LocalStore{path: path}
}

// Path returns the image file path.
func (s *LocalStore) Path() string { return s.path }

// Save writes the image durably.
func (s *LocalStore) Save(image []byte) error {
	data, err := json.Marshal(imageEnvelope{SavedAt: time.Now().UTC(), Image: image})
	if err != nil {
		return fmt.Errorf("encoding image envelope: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating image dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing image temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing image file: %w", err)
	}
	return nil
}

// Load reads the stored image. A missing file returns (nil, nil): no local
// image yet is a normal first-run state, not an error.
func (s *LocalStore) Load() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading image file: %w", err)
	}

	var env imageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding image envelope: %w", err)
	}
	return env.Image, nil
}
