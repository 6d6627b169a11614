package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend stores objects as files in a local directory. The revision
// is the SHA-256 of the file content.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

// NewFileBackend creates the directory if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(name string) string {
	return filepath.Join(b.dir, filepath.Base(name))
}

func (b *FileBackend) Read(_ context.Context, name string) ([]byte, string, error) {
	data, err := os.ReadFile(b.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	return data, contentRev(data), nil
}

// Write replaces the file atomically through a temp file and rename.
func (b *FileBackend) Write(_ context.Context, name string, data []byte, rev string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	target := b.path(name)
	current, err := os.ReadFile(target)
	switch {
	case os.IsNotExist(err):
		if rev != "" {
			return "", fmt.Errorf("%s was deleted: %w", name, ErrConflict)
		}
	case err != nil:
		return "", err
	default:
		if contentRev(current) != rev {
			return "", fmt.Errorf("%s: %w", name, ErrConflict)
		}
	}

	tmp, err := os.CreateTemp(b.dir, "."+filepath.Base(name)+".*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", err
	}
	return contentRev(data), nil
}
