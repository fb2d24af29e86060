package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// FileStore keeps each blob in its own JSON file under a root directory,
// guarded by a cross-process lock so a CLI and a server can share it.
type FileStore struct {
	root string
	lock *flock.Flock
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FileStore{
		root: filepath.Clean(root),
		lock: flock.New(filepath.Join(root, ".lock")),
	}, nil
}

const lockTimeout = 3 * time.Second

func (s *FileStore) withLock(fn func() error) error {
	deadline := time.Now().Add(lockTimeout)
	for {
		locked, err := s.lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire storage lock: %w", err)
		}
		if locked {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("acquire storage lock: timed out after %s", lockTimeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

// path flattens the key into a file name; keys use "/" as a namespace
// separator but blobs all live directly under the root.
func (s *FileStore) path(key string) string {
	return filepath.Join(s.root, strings.ReplaceAll(key, "/", "__")+".json")
}

func (s *FileStore) Get(key string) ([]byte, error) {
	var value []byte
	err := s.withLock(func() error {
		raw, err := os.ReadFile(s.path(key))
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read blob %q: %w", key, err)
		}
		value = raw
		return nil
	})
	return value, err
}

func (s *FileStore) Put(key string, value []byte) error {
	return s.withLock(func() error {
		path := s.path(key)
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, value, 0o644); err != nil {
			return fmt.Errorf("write blob %q: %w", key, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return fmt.Errorf("commit blob %q: %w", key, err)
		}
		return nil
	})
}

func (s *FileStore) Delete(key string) error {
	return s.withLock(func() error {
		err := os.Remove(s.path(key))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete blob %q: %w", key, err)
		}
		return nil
	})
}
