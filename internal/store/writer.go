package store

import (
	"fmt"
	"os"
)

// seams for fault-injection in tests
var (
	writeFileFunc = os.WriteFile
	renameFunc    = os.Rename
)

// commitRecord stages both artifacts under temporary names, then renames them
// into place. Content commits first: a reader that finds content without
// metadata degrades to default title/created, whereas metadata without
// content would be meaningless.
func (s *Store) commitRecord(id string, content, metadata []byte) error {
	contentPath := s.contentPath(id)
	metadataPath := s.metadataPath(id)
	tmpContent := contentPath + ".tmp"
	tmpMetadata := metadataPath + ".tmp"

	if err := writeFileFunc(tmpContent, content, 0o644); err != nil {
		return fmt.Errorf("%w: stage content: %v", ErrPersistence, err)
	}
	if err := writeFileFunc(tmpMetadata, metadata, 0o644); err != nil {
		_ = os.Remove(tmpContent)
		return fmt.Errorf("%w: stage metadata: %v", ErrPersistence, err)
	}

	if err := renameFunc(tmpContent, contentPath); err != nil {
		_ = os.Remove(tmpContent)
		_ = os.Remove(tmpMetadata)
		return fmt.Errorf("%w: commit content: %v", ErrPersistence, err)
	}
	if err := renameFunc(tmpMetadata, metadataPath); err != nil {
		// roll back the committed content so no content-only record is left
		_ = os.Remove(contentPath)
		_ = os.Remove(tmpMetadata)
		return fmt.Errorf("%w: commit metadata: %v", ErrPersistence, err)
	}
	return nil
}
