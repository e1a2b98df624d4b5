package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateID_FormatAndUniqueness(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		id, err := generateID(func(string) bool { return false })
		require.NoError(t, err)
		assert.True(t, IsValidID(id), "generated id %q should match ^[a-z0-9]{8}$", id)
		assert.False(t, seen[id], "duplicate id %q in sample", id)
		seen[id] = true
	}
}

func TestGenerateID_RetriesOnCollision(t *testing.T) {
	calls := 0
	id, err := generateID(func(string) bool {
		calls++
		return calls <= 3 // first three draws collide
	})
	require.NoError(t, err)
	assert.True(t, IsValidID(id))
	assert.Equal(t, 4, calls)
}

func TestGenerateID_ExhaustsAttemptBudget(t *testing.T) {
	calls := 0
	_, err := generateID(func(string) bool {
		calls++
		return true // every id already exists
	})
	require.ErrorIs(t, err, ErrIDExhausted)
	assert.Equal(t, maxIDAttempts, calls)
}

func TestIsValidID(t *testing.T) {
	assert.True(t, IsValidID("a3b5c7d9"))
	assert.False(t, IsValidID("A3B5C7D9"))
	assert.False(t, IsValidID("a3b5c7d"))
	assert.False(t, IsValidID("a3b5c7d9x"))
	assert.False(t, IsValidID("../../etc"))
	assert.False(t, IsValidID(""))
}

func TestExtractID(t *testing.T) {
	assert.Equal(t, "a3b5c7d9", ExtractID("a3b5c7d9"))
	assert.Equal(t, "a3b5c7d9", ExtractID("my-document-a3b5c7d9"))
	assert.Equal(t, "passwd", ExtractID("../../etc/passwd"))
}
