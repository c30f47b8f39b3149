package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"loom/internal/fileutil"
)

// ErrNotFound is returned when no artifact exists at the requested path.
var ErrNotFound = errors.New("artifact not found")

// Store is the durable blob service boundary. Paths are slash-separated and
// relative to the store root; callers build them with the pathing package.
type Store interface {
	GetJSON(ctx context.Context, path string, dest any) error
	PutJSON(ctx context.Context, path string, value any) error
	PutRaw(ctx context.Context, path string, data []byte) error
	Exists(ctx context.Context, path string) (bool, error)
}

// FSStore persists artifacts on the local filesystem.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem-backed store rooted at dir.
func NewFSStore(dir string) (*FSStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("artifact store: root directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact store: create root %q: %w", dir, err)
	}
	return &FSStore{root: dir}, nil
}

// GetJSON reads and unmarshals the document at path into dest.
func (s *FSStore) GetJSON(ctx context.Context, path string, dest any) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("read artifact %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse artifact %s: %w", path, err)
	}
	return nil
}

// PutJSON marshals value and writes it at path, overwriting any previous
// content. The write goes through a temp file and rename so concurrent
// readers never observe a torn document.
func (s *FSStore) PutJSON(ctx context.Context, path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact %s: %w", path, err)
	}
	return s.PutRaw(ctx, path, data)
}

// PutRaw writes data verbatim at path.
func (s *FSStore) PutRaw(ctx context.Context, path string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(full, data, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	return nil
}

// Exists reports whether an artifact is present at path.
func (s *FSStore) Exists(ctx context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat artifact %s: %w", path, err)
	}
	return !info.IsDir(), nil
}

func (s *FSStore) resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("artifact path must not be empty")
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("artifact path %q escapes store root", path)
	}
	return filepath.Join(s.root, clean), nil
}
