package kvs

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainLength(s *MemoryStore, key string) int {
	s.db.rw.RLock()
	defer s.db.rw.RUnlock()
	n := 0
	for cur := s.db.entries[key]; cur != nil; cur = cur.prev {
		n++
	}
	return n
}

func TestMemoryPrunesVersions(t *testing.T) {
	s := NewMemory()
	defer s.Close()

	for i := 0; i < 100; i++ {
		put(t, s, "k", fmt.Sprint(i))
	}
	assert.Equal(t, 1, chainLength(s, "k"))

	reader, err := s.Begin(context.Background(), false)
	require.NoError(t, err)

	for i := 100; i < 110; i++ {
		put(t, s, "k", fmt.Sprint(i))
	}
	assert.Equal(t, 2, chainLength(s, "k"), "only the version the open reader sees is kept behind the head")

	value, err := reader.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "99", string(value))
	require.NoError(t, reader.Rollback())

	put(t, s, "k", "last")
	assert.Equal(t, 1, chainLength(s, "k"))
	assert.Empty(t, s.db.snapshots)
}

func TestMemoryDropsTombstones(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	put(t, s, "k", "1")

	tx, err := s.Begin(context.Background(), true)
	require.NoError(t, err)
	require.NoError(t, tx.Delete([]byte("k")))
	require.NoError(t, tx.Commit())

	s.db.rw.RLock()
	_, ok := s.db.entries["k"]
	s.db.rw.RUnlock()
	assert.False(t, ok)
}
