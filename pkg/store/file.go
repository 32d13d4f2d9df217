package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fako1024/progressor/pkg/scale"
	"gopkg.in/yaml.v3"
)

// FileStore keeps the calibration in a YAML file
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore instantiates a new file based store
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the calibration from disk
func (f *FileStore) Load() (scale.Calibration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return scale.Calibration{}, ErrNotFound
		}
		return scale.Calibration{}, err
	}

	var c scale.Calibration
	if err := yaml.Unmarshal(data, &c); err != nil {
		return scale.Calibration{}, fmt.Errorf("failed to parse calibration file `%s`: %w", f.path, err)
	}

	return c, nil
}

// Save atomically replaces the calibration file
func (f *FileStore) Save(c scale.Calibration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, f.path)
}
