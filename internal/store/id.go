package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// IDLength is the fixed length of a document ID.
	IDLength = 8

	idAlphabet    = "abcdefghijklmnopqrstuvwxyz0123456789"
	maxIDAttempts = 10
)

var idPattern = regexp.MustCompile(`^[a-z0-9]{8}$`)

// ErrIDExhausted is returned when no unused ID could be generated within the
// attempt budget. With 36^8 possible IDs this points at a systemic problem
// (broken existence check, unreadable documents dir), not bad luck.
var ErrIDExhausted = errors.New("failed to generate unique document id")

// generateID draws 8-character IDs from a secure random source until one
// passes the exists check, up to maxIDAttempts. IDs are never derived from
// the clock: a predictable ID would let a client enumerate other users'
// documents.
func generateID(exists func(id string) bool) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := randomID()
		if err != nil {
			return "", err
		}
		if !exists(id) {
			return id, nil
		}
	}
	return "", ErrIDExhausted
}

func randomID() (string, error) {
	// rejection sampling keeps the draw uniform over the 36-symbol alphabet
	limit := byte(256 - (256 % len(idAlphabet)))
	id := make([]byte, 0, IDLength)
	buf := make([]byte, 16)
	for len(id) < IDLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			id = append(id, idAlphabet[int(b)%len(idAlphabet)])
			if len(id) == IDLength {
				break
			}
		}
	}
	return string(id), nil
}

// IsValidID reports whether id has the canonical 8-char [a-z0-9] form.
func IsValidID(id string) bool {
	return idPattern.MatchString(id)
}

// ExtractID pulls the document ID out of a share parameter. The parameter is
// either a bare ID ("a3b5c7d9") or a slug-prefixed form
// ("my-document-a3b5c7d9"); the ID is always the last hyphen-delimited
// segment.
func ExtractID(param string) string {
	if i := strings.LastIndex(param, "-"); i >= 0 {
		return param[i+1:]
	}
	return param
}
