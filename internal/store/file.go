package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileKV stores one file per key under <dir>/<namespace>.
// Writes go through a temp file, fsync and rename so a reader sees either
// the old blob or the new one, never a torn write.
type FileKV struct {
	dir string
}

// NewFileKV creates the namespace directory if needed.
func NewFileKV(dir, namespace string) (*FileKV, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	path := filepath.Join(dir, namespace)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, storeErr("open", "", err)
	}
	return &FileKV{dir: path}, nil
}

func (f *FileKV) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(f.dir, key), nil
}

// Get reads the blob for key.
func (f *FileKV) Get(key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, storeErr("get", key, err)
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get", key, err)
	}
	return data, nil
}

// Set atomically replaces the blob for key.
func (f *FileKV) Set(key string, blob []byte) error {
	p, err := f.path(key)
	if err != nil {
		return storeErr("set", key, err)
	}

	tmp, err := os.CreateTemp(f.dir, "."+key+".*")
	if err != nil {
		return storeErr("set", key, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		cleanup()
		return storeErr("set", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return storeErr("set", key, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return storeErr("set", key, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		cleanup()
		return storeErr("set", key, err)
	}
	return syncDir(f.dir)
}

// Erase removes key.
func (f *FileKV) Erase(key string) error {
	p, err := f.path(key)
	if err != nil {
		return storeErr("erase", key, err)
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storeErr("erase", key, err)
	}
	return nil
}

// EraseAll removes every key in the namespace, including stray temp files.
func (f *FileKV) EraseAll() error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return storeErr("erase all", "", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(f.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return storeErr("erase all", e.Name(), err)
		}
	}
	return syncDir(f.dir)
}

// Close is a no-op; files are closed after each operation.
func (f *FileKV) Close() error {
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return storeErr("sync", "", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return storeErr("sync", "", err)
	}
	return nil
}
