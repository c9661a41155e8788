package storage

import (
	"os"
	"path/filepath"

	"github.com/yanun0323/errors"
)

// FileStore keeps one JSON file per snapshot under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("snapshot dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create snapshot dir").With("dir", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Load reads <dir>/<name>.json into v.
func (s *FileStore) Load(name string, v any) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "read snapshot").With("name", name)
	}
	if err := decode(name, data, v); err != nil {
		return false, err
	}
	return true, nil
}

// Save writes v to a temp file in the same directory, syncs, then renames it over the target.
func (s *FileStore) Save(name string, v any) error {
	if err := checkName(name); err != nil {
		return err
	}
	data, err := encode(name, v)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp snapshot").With("name", name)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp snapshot").With("name", name)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync temp snapshot").With("name", name)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp snapshot").With("name", name)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		return errors.Wrap(err, "rename snapshot").With("name", name)
	}
	return nil
}
