package watcher

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
)

// Watermark is the newest order the watcher has handled.
type Watermark struct {
	LastOrderID   string    `json:"lastOrderId"`
	LastCreatedAt time.Time `json:"lastCreatedAt"`
}

// FileStateStore keeps the watermark in a JSON file.
type FileStateStore struct {
	path string
}

// NewFileStateStore creates a FileStateStore at path.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// Load returns the saved watermark. found is false before the first Save.
func (s *FileStateStore) Load() (wm Watermark, found bool, err error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Watermark{}, false, nil
	}
	if err != nil {
		return Watermark{}, false, errors.Wrap(err, "read state file")
	}
	if err := json.Unmarshal(data, &wm); err != nil {
		return Watermark{}, false, errors.Wrapf(err, "decode state file %s", s.path)
	}
	return wm, true, nil
}

// Save replaces the watermark atomically: a crash leaves the old or the new
// file, never a partial one.
func (s *FileStateStore) Save(wm Watermark) error {
	data, err := json.Marshal(wm)
	if err != nil {
		return errors.Wrap(err, "encode watermark")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp state file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp state file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "sync temp state file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp state file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, "replace state file")
	}
	return nil
}
