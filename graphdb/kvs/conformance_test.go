package kvs

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendCase struct {
	name string
	open func(t *testing.T) Datastore
	// optimistic backends reject the losing commit; bolt serializes writers instead
	optimistic bool
}

func backends() []backendCase {
	return []backendCase{
		{
			name:       "memory",
			open:       func(t *testing.T) Datastore { return NewMemory() },
			optimistic: true,
		},
		{
			name: "badger",
			open: func(t *testing.T) Datastore {
				s, err := OpenBadger(filepath.Join(t.TempDir(), "badger"))
				require.NoError(t, err)
				return s
			},
			optimistic: true,
		},
		{
			name: "bolt",
			open: func(t *testing.T) Datastore {
				s, err := OpenBolt(filepath.Join(t.TempDir(), "graph.bolt"))
				require.NoError(t, err)
				return s
			},
		},
	}
}

func TestConformance(t *testing.T) {
	tests := map[string]func(*testing.T, Datastore, bool){
		"PutGetCommit":       testPutGetCommit,
		"ReadOnly":           testReadOnly,
		"UsedOnce":           testUsedOnce,
		"Rollback":           testRollback,
		"Delete":             testDelete,
		"IteratePrefix":      testIteratePrefix,
		"Conflict":           testConflict,
		"ConcurrentDisjoint": testConcurrentDisjoint,
		"CancelledContext":   testCancelledContext,
	}

	for _, backend := range backends() {
		backend := backend
		for name, test := range tests {
			test := test
			t.Run(backend.name+"/"+name, func(t *testing.T) {
				ds := backend.open(t)
				defer ds.Close()
				test(t, ds, backend.optimistic)
			})
		}
	}
}

func put(t *testing.T, ds Datastore, key, value string) {
	tx, err := ds.Begin(context.Background(), true)
	require.NoError(t, err)
	require.NoError(t, tx.Put([]byte(key), []byte(value)))
	require.NoError(t, tx.Commit())
}

func testPutGetCommit(t *testing.T, ds Datastore, _ bool) {
	put(t, ds, "a", "1")

	tx, err := ds.Begin(context.Background(), false)
	require.NoError(t, err)
	defer tx.Rollback()

	value, err := tx.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(value))

	_, err = tx.Get([]byte("missing"))
	assert.True(t, errors.Is(err, ErrKeyNotFound))
}

func testReadOnly(t *testing.T, ds Datastore, _ bool) {
	tx, err := ds.Begin(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, tx.Writable())

	assert.Equal(t, ErrTxReadOnly, tx.Put([]byte("a"), []byte("1")))
	assert.Equal(t, ErrTxReadOnly, tx.Delete([]byte("a")))
	require.NoError(t, tx.Rollback())
}

func testUsedOnce(t *testing.T, ds Datastore, _ bool) {
	tx, err := ds.Begin(context.Background(), true)
	require.NoError(t, err)
	require.NoError(t, tx.Put([]byte("a"), []byte("1")))
	require.NoError(t, tx.Commit())
	assert.Equal(t, TxCommitted, tx.State())

	assert.Equal(t, ErrTxClosed, tx.Commit())
	assert.Equal(t, ErrTxClosed, tx.Rollback())
	assert.Equal(t, ErrTxClosed, tx.Put([]byte("b"), []byte("2")))
	_, err = tx.Get([]byte("a"))
	assert.Equal(t, ErrTxClosed, err)

	tx, err = ds.Begin(context.Background(), true)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	assert.Equal(t, TxRolledBack, tx.State())
	assert.Equal(t, ErrTxClosed, tx.Commit())
}

func testRollback(t *testing.T, ds Datastore, _ bool) {
	tx, err := ds.Begin(context.Background(), true)
	require.NoError(t, err)
	require.NoError(t, tx.Put([]byte("a"), []byte("1")))

	value, err := tx.Get([]byte("a"))
	require.NoError(t, err, "own writes are visible before commit")
	assert.Equal(t, "1", string(value))
	require.NoError(t, tx.Rollback())

	tx, err = ds.Begin(context.Background(), false)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = tx.Get([]byte("a"))
	assert.Equal(t, ErrKeyNotFound, err)
}

func testDelete(t *testing.T, ds Datastore, _ bool) {
	put(t, ds, "a", "1")

	tx, err := ds.Begin(context.Background(), true)
	require.NoError(t, err)
	require.NoError(t, tx.Delete([]byte("a")))
	require.NoError(t, tx.Commit())

	tx, err = ds.Begin(context.Background(), false)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = tx.Get([]byte("a"))
	assert.Equal(t, ErrKeyNotFound, err)
}

func testIteratePrefix(t *testing.T, ds Datastore, _ bool) {
	put(t, ds, "v/2", "two")
	put(t, ds, "v/1", "one")
	put(t, ds, "l/x", "")
	put(t, ds, "w/1", "other")

	tx, err := ds.Begin(context.Background(), true)
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, tx.Put([]byte("v/3"), []byte("three")))

	var keys, values []string
	err = tx.Iterate([]byte("v/"), func(key, value []byte) error {
		keys = append(keys, string(key))
		values = append(values, string(value))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"v/1", "v/2", "v/3"}, keys)
	assert.Equal(t, []string{"one", "two", "three"}, values)

	stop := errors.New("stop")
	err = tx.Iterate([]byte("v/"), func(key, value []byte) error { return stop })
	assert.Equal(t, stop, err)
}

func testConflict(t *testing.T, ds Datastore, optimistic bool) {
	if !optimistic {
		t.Skip("backend serializes writers")
	}
	put(t, ds, "counter", "0")

	first, err := ds.Begin(context.Background(), true)
	require.NoError(t, err)
	second, err := ds.Begin(context.Background(), true)
	require.NoError(t, err)

	_, err = first.Get([]byte("counter"))
	require.NoError(t, err)
	_, err = second.Get([]byte("counter"))
	require.NoError(t, err)

	require.NoError(t, second.Put([]byte("counter"), []byte("2")))
	require.NoError(t, second.Commit())

	require.NoError(t, first.Put([]byte("counter"), []byte("1")))
	assert.Equal(t, ErrConflict, first.Commit())
	assert.Equal(t, TxRolledBack, first.State())

	tx, err := ds.Begin(context.Background(), false)
	require.NoError(t, err)
	defer tx.Rollback()
	value, err := tx.Get([]byte("counter"))
	require.NoError(t, err)
	assert.Equal(t, "2", string(value), "the losing commit must not overwrite the winner")
}

func testConcurrentDisjoint(t *testing.T, ds Datastore, _ bool) {
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tx, err := ds.Begin(context.Background(), true)
			if err != nil {
				errs <- err
				return
			}
			if err := tx.Put([]byte(fmt.Sprintf("k/%d", n)), []byte("x")); err != nil {
				tx.Rollback()
				errs <- err
				return
			}
			errs <- tx.Commit()
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	tx, err := ds.Begin(context.Background(), false)
	require.NoError(t, err)
	defer tx.Rollback()
	count := 0
	require.NoError(t, tx.Iterate([]byte("k/"), func(key, value []byte) error {
		count++
		return nil
	}))
	assert.Equal(t, 8, count)
}

func testCancelledContext(t *testing.T, ds Datastore, _ bool) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ds.Begin(ctx, true)
	assert.Equal(t, context.Canceled, err)
}

func TestOpen(t *testing.T) {
	ds, err := Open(Memory, "")
	require.NoError(t, err)
	assert.Equal(t, Memory, ds.Name())
	assert.Equal(t, KeyValueStore, ds.Variant())
	require.NoError(t, ds.Close())

	path := filepath.Join(t.TempDir(), "graph.bolt")
	ds, err = Open("BOLT", path)
	require.NoError(t, err)
	assert.Equal(t, Bolt, ds.Name())
	assert.Equal(t, path, ds.Path())
	require.NoError(t, ds.Close())

	_, err = Open("rocksdb", "")
	assert.True(t, errors.Is(err, ErrUnknownBackend))
}
