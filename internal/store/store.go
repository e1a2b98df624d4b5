// Package store owns the directory of shared markdown documents. Each record
// is a pair of artifacts keyed by an 8-char ID: `<id>.md` (content, required)
// and `<id>.json` (metadata, optional on read). Records are created once and
// never mutated; there is no update or delete path.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mdreader/mdreader/pkg/logger"
)

// DefaultMaxContentBytes caps document content at 5 MiB.
const DefaultMaxContentBytes = 5 << 20

var (
	ErrContentTooLarge = errors.New("content exceeds maximum size")
	ErrMissingID       = errors.New("no document id provided")
	ErrInvalidID       = errors.New("invalid document id format")
	ErrNotFound        = errors.New("document not found")
	ErrForbiddenPath   = errors.New("invalid file path")
	ErrPersistence     = errors.New("persistence failure")
)

// Metadata is the serialized form of the `<id>.json` artifact.
type Metadata struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Created     time.Time `json:"created"`
	Size        int64     `json:"size"`
	ContentHash string    `json:"contentHash"`
}

// Record is a document's full persisted state.
type Record struct {
	Metadata
	Content string
}

// Store is a file-backed document store with rename-based atomic commits.
// Concurrent saves of different IDs never contend; loads only read
// already-committed files and take no locks.
type Store struct {
	dir             string
	resolvedDir     string
	maxContentBytes int64
	now             func() time.Time
}

// New creates the documents directory if needed and returns a Store.
// maxContentBytes <= 0 selects DefaultMaxContentBytes.
func New(dir string, maxContentBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create documents dir: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve documents dir: %w", err)
	}
	if maxContentBytes <= 0 {
		maxContentBytes = DefaultMaxContentBytes
	}
	return &Store{dir: dir, resolvedDir: resolved, maxContentBytes: maxContentBytes, now: time.Now}, nil
}

// MaxContentBytes returns the configured content size cap.
func (s *Store) MaxContentBytes() int64 { return s.maxContentBytes }

func (s *Store) contentPath(id string) string  { return filepath.Join(s.dir, id+".md") }
func (s *Store) metadataPath(id string) string { return filepath.Join(s.dir, id+".json") }

func (s *Store) contentExists(id string) bool {
	_, err := os.Stat(s.contentPath(id))
	return err == nil
}

// Save validates the content size, sanitizes the title, generates a fresh ID
// and commits both artifacts atomically. Save always creates a new record;
// IDs are never reused or overwritten.
func (s *Store) Save(content, title string) (*Record, error) {
	if int64(len(content)) > s.maxContentBytes {
		return nil, ErrContentTooLarge
	}

	cleanTitle := SanitizeTitle(title)
	slug := Slugify(cleanTitle)

	id, err := generateID(s.contentExists)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(content))
	meta := Metadata{
		ID:          id,
		Slug:        slug,
		Title:       cleanTitle,
		Created:     s.now().UTC().Truncate(time.Second),
		Size:        int64(len(content)),
		ContentHash: hex.EncodeToString(sum[:]),
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: marshal metadata: %v", ErrPersistence, err)
	}

	if err := s.commitRecord(id, []byte(content), metaBytes); err != nil {
		return nil, err
	}
	return &Record{Metadata: meta, Content: content}, nil
}

// Load reads a record by share parameter (bare ID or slug-ID form). The ID is
// validated before any filesystem access; this is the sole defense against
// path traversal, so it must come first. Missing or corrupt metadata degrades
// to default title/created rather than failing the load.
func (s *Store) Load(idParam string) (*Record, error) {
	if idParam == "" {
		return nil, ErrMissingID
	}
	id := ExtractID(idParam)
	if !IsValidID(id) {
		return nil, ErrInvalidID
	}

	contentPath, err := s.resolveWithinDir(s.contentPath(id))
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(contentPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: read content: %v", ErrPersistence, err)
	}

	meta := Metadata{ID: id, Title: DefaultTitle}
	raw, err := os.ReadFile(s.metadataPath(id))
	switch {
	case err == nil:
		var parsed Metadata
		if jerr := json.Unmarshal(raw, &parsed); jerr != nil {
			logger.Warnf("corrupt metadata for %s: %v", id, jerr)
		} else {
			meta = parsed
			meta.ID = id
		}
	case !os.IsNotExist(err):
		logger.Warnf("unreadable metadata for %s: %v", id, err)
	}
	meta.Size = int64(len(content))

	return &Record{Metadata: meta, Content: string(content)}, nil
}

// resolveWithinDir resolves symlinks and verifies the result stays inside the
// documents directory.
func (s *Store) resolveWithinDir(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: resolve path: %v", ErrPersistence, err)
	}
	if resolved != s.resolvedDir && !strings.HasPrefix(resolved, s.resolvedDir+string(os.PathSeparator)) {
		return "", ErrForbiddenPath
	}
	return resolved, nil
}
