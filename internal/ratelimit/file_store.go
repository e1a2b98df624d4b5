package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mdreader/mdreader/pkg/logger"
)

// FileStore persists one small JSON counter file per client key in a scratch
// directory, outside the documents directory so counter lifecycle is
// independent of document lifecycle. Entries accumulate; cleanup is an
// ops-level concern.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create rate counter dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, "mdreader_rate_"+key+".json")
}

func (f *FileStore) Get(_ context.Context, key string) (*Counter, error) {
	raw, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read counter: %w", err)
	}
	var c Counter
	if err := json.Unmarshal(raw, &c); err != nil {
		// a corrupt counter resets the window rather than blocking saves
		logger.Warnf("corrupt rate counter %s: %v", key, err)
		return nil, nil
	}
	return &c, nil
}

func (f *FileStore) Put(_ context.Context, key string, c *Counter) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal counter: %w", err)
	}
	// stage-and-rename so a crashed write never leaves a truncated counter
	tmp := f.path(key) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("stage counter: %w", err)
	}
	if err := os.Rename(tmp, f.path(key)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit counter: %w", err)
	}
	return nil
}
