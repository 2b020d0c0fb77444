package resume

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Errors
var (
	ErrNoCheckpoint = errors.New("no checkpoint")
	ErrCorrupt      = errors.New("checkpoint is corrupt")
)

// Checkpoint is the last known target and reconnect position.
// Attempt 0 means the session was open when the checkpoint was written.
type Checkpoint struct {
	Host    string        `cbor:"host"`
	Port    int           `cbor:"port"`
	Attempt int           `cbor:"attempt"`
	Delay   time.Duration `cbor:"delay"`
	SavedAt int64         `cbor:"saved_at"` // unix millis
}

// Age returns how long ago the checkpoint was written.
func (c Checkpoint) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(c.SavedAt))
}

// FileStore keeps a single checkpoint in a CBOR file.
type FileStore struct {
	path   string
	maxAge time.Duration
	now    func() time.Time
}

// NewFileStore creates a store at path. Checkpoints older than maxAge are
// treated as absent; zero disables the check.
func NewFileStore(path string, maxAge time.Duration) *FileStore {
	return &FileStore{path: path, maxAge: maxAge, now: time.Now}
}

// Path returns the checkpoint file location.
func (s *FileStore) Path() string {
	return s.path
}

// Save writes cp atomically via a temp file and rename.
func (s *FileStore) Save(cp Checkpoint) error {
	if cp.SavedAt == 0 {
		cp.SavedAt = s.now().UnixMilli()
	}

	data, err := cbor.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// Load reads the checkpoint. A missing or expired file returns ErrNoCheckpoint.
func (s *FileStore) Load() (Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Checkpoint{}, ErrNoCheckpoint
		}
		return Checkpoint{}, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := cbor.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if cp.Host == "" {
		return Checkpoint{}, fmt.Errorf("%w: missing host", ErrCorrupt)
	}

	if s.maxAge > 0 && cp.Age(s.now()) > s.maxAge {
		return Checkpoint{}, ErrNoCheckpoint
	}
	return cp, nil
}

// Clear removes the checkpoint. Clearing an absent checkpoint is not an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}
	return nil
}
