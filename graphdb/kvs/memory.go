package kvs

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

type memEntry struct {
	value   []byte
	version uint64
	deleted bool
	prev    *memEntry
}

// visible returns the newest version committed at or before snapshot
func (e *memEntry) visible(snapshot uint64) (*memEntry, bool) {
	for cur := e; cur != nil; cur = cur.prev {
		if cur.version <= snapshot {
			return cur, !cur.deleted
		}
	}
	return nil, false
}

type memDB struct {
	rw      sync.RWMutex
	entries map[string]*memEntry
	version uint64
	// open transactions per snapshot version
	snapshots map[uint64]int
}

// oldestSnapshot is the lowest version an open transaction may still read.
// Caller holds the write lock.
func (db *memDB) oldestSnapshot() uint64 {
	oldest := db.version
	for version := range db.snapshots {
		if version < oldest {
			oldest = version
		}
	}
	return oldest
}

// release forgets one open transaction at snapshot. Caller holds the write lock.
func (db *memDB) release(snapshot uint64) {
	if db.snapshots[snapshot] <= 1 {
		delete(db.snapshots, snapshot)
		return
	}
	db.snapshots[snapshot]--
}

// prune drops the versions of key no open snapshot can see. The head is
// always kept. Caller holds the write lock.
func (db *memDB) prune(key string, oldest uint64) {
	head := db.entries[key]
	// a tombstone nobody can look behind is dropped with its key
	if head.deleted && head.version <= oldest {
		delete(db.entries, key)
		return
	}
	kept, newer := head, head.version
	for cur := head.prev; cur != nil; cur = cur.prev {
		if db.snapshotIn(cur.version, newer) {
			kept.prev = cur
			kept = cur
		}
		newer = cur.version
	}
	kept.prev = nil
}

// snapshotIn reports whether an open snapshot lies in [from, to)
func (db *memDB) snapshotIn(from, to uint64) bool {
	for version := range db.snapshots {
		if version >= from && version < to {
			return true
		}
	}
	return false
}

// MemoryStore keeps everything in process memory. Writes are buffered per
// transaction and applied at commit after the same read/write-set conflict
// check badger performs.
type MemoryStore struct {
	StorageAdapter[*memDB]
}

// NewMemory creates an empty in-memory backend
func NewMemory() *MemoryStore {
	logrus.WithField("component", "MemoryStore").Info("Initializing MemoryStore (no persistence)")
	return &MemoryStore{
		StorageAdapter: NewStorageAdapter(Memory, "", &memDB{entries: map[string]*memEntry{}, snapshots: map[uint64]int{}}, KeyValueStore),
	}
}

// Begin opens an in-memory transaction
func (s *MemoryStore) Begin(ctx context.Context, writable bool) (Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.db.rw.Lock()
	start := s.db.version
	s.db.snapshots[start]++
	s.db.rw.Unlock()

	return &memTx{
		txGuard: newTxGuard(Memory, writable),
		db:      s.db,
		start:   start,
		reads:   map[string]struct{}{},
		writes:  map[string]*[]byte{},
	}, nil
}

// Close drops all data
func (s *MemoryStore) Close() error {
	s.db.rw.Lock()
	s.db.entries = map[string]*memEntry{}
	s.db.snapshots = map[uint64]int{}
	s.db.rw.Unlock()
	logrus.WithField("component", "MemoryStore").Info("MemoryStore closed")
	return nil
}

type memTx struct {
	txGuard
	db     *memDB
	start  uint64
	reads  map[string]struct{}
	writes map[string]*[]byte // nil pointer marks a delete
}

func (tx *memTx) Get(key []byte) ([]byte, error) {
	if err := tx.checkOpen(); err != nil {
		return nil, err
	}
	k := string(key)
	if pending, ok := tx.writes[k]; ok {
		if pending == nil {
			return nil, ErrKeyNotFound
		}
		return copyBytes(*pending), nil
	}
	tx.reads[k] = struct{}{}

	tx.db.rw.RLock()
	defer tx.db.rw.RUnlock()
	head, ok := tx.db.entries[k]
	if !ok {
		return nil, ErrKeyNotFound
	}
	entry, ok := head.visible(tx.start)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return copyBytes(entry.value), nil
}

func (tx *memTx) Put(key, value []byte) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	v := copyBytes(value)
	if v == nil {
		v = []byte{}
	}
	tx.writes[string(key)] = &v
	tx.record(OpPut, key)
	return nil
}

func (tx *memTx) Delete(key []byte) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	tx.writes[string(key)] = nil
	tx.record(OpDelete, key)
	return nil
}

func (tx *memTx) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	if err := tx.checkOpen(); err != nil {
		return err
	}
	view := map[string][]byte{}

	tx.db.rw.RLock()
	for k, head := range tx.db.entries {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if entry, ok := head.visible(tx.start); ok {
			view[k] = copyBytes(entry.value)
		}
	}
	tx.db.rw.RUnlock()

	for k, pending := range tx.writes {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if pending == nil {
			delete(view, k)
		} else {
			view[k] = copyBytes(*pending)
		}
	}

	keys := make([]string, 0, len(view))
	for k := range view {
		keys = append(keys, k)
		tx.reads[k] = struct{}{}
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := fn([]byte(k), view[k]); err != nil {
			return err
		}
	}
	return nil
}

func (tx *memTx) Commit() error {
	if err := tx.checkOpen(); err != nil {
		return err
	}
	tx.db.rw.Lock()
	defer tx.db.rw.Unlock()
	tx.db.release(tx.start)

	if len(tx.writes) == 0 {
		tx.finish(TxCommitted)
		return nil
	}
	if tx.conflicts() {
		tx.log.Warn("Commit rejected by optimistic concurrency check")
		tx.finish(TxRolledBack)
		return ErrConflict
	}

	tx.db.version++
	for k, pending := range tx.writes {
		entry := &memEntry{version: tx.db.version, prev: tx.db.entries[k]}
		if pending == nil {
			entry.deleted = true
		} else {
			entry.value = *pending
		}
		tx.db.entries[k] = entry
	}
	oldest := tx.db.oldestSnapshot()
	for k := range tx.writes {
		tx.db.prune(k, oldest)
	}
	tx.finish(TxCommitted)
	return nil
}

// conflicts reports whether a key this transaction read or wrote was
// committed by someone else after the snapshot was taken. Caller holds the lock.
func (tx *memTx) conflicts() bool {
	for k := range tx.reads {
		if entry, ok := tx.db.entries[k]; ok && entry.version > tx.start {
			return true
		}
	}
	for k := range tx.writes {
		if entry, ok := tx.db.entries[k]; ok && entry.version > tx.start {
			return true
		}
	}
	return false
}

func (tx *memTx) Rollback() error {
	if err := tx.checkOpen(); err != nil {
		return err
	}
	tx.db.rw.Lock()
	tx.db.release(tx.start)
	tx.db.rw.Unlock()
	tx.writes = nil
	tx.finish(TxRolledBack)
	return nil
}
