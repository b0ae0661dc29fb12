// Package kvs is the transactional key-value layer the graph engine runs on.
//
// Every backend implements Datastore. A Datastore owns exactly one engine
// instance for its whole lifetime and hands out Transactions that borrow it.
// A Transaction is used once: after Commit or Rollback every further call
// fails with ErrTxClosed.
package kvs

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AdapterName identifies a storage backend
type AdapterName string

const (
	Badger AdapterName = "badger"
	Bolt   AdapterName = "bolt"
	Memory AdapterName = "memory"
)

// Variant describes the data model a backend exposes
type Variant int

const (
	KeyValueStore Variant = iota
	RelationalStore
)

func (v Variant) String() string {
	switch v {
	case KeyValueStore:
		return "key-value"
	case RelationalStore:
		return "relational"
	default:
		return "unknown"
	}
}

var (
	// ErrTxReadOnly is returned when a read-only transaction is asked to mutate
	ErrTxReadOnly = errors.New("transaction is read-only")
	// ErrTxClosed is returned for any call on a committed or rolled back transaction
	ErrTxClosed = errors.New("transaction already closed")
	// ErrConflict is returned by Commit when another transaction committed a conflicting write first
	ErrConflict = errors.New("transaction conflict")
	// ErrKeyNotFound is returned by Get for a missing key
	ErrKeyNotFound = errors.New("key not found")
	// ErrUnknownBackend is returned by Open for an unsupported adapter name
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// Transaction is a single unit of work against one Datastore
type Transaction interface {
	// Get returns a copy of the value stored under key
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Iterate calls fn for every key with the given prefix in key order.
	// Keys and values passed to fn are copies.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
	Commit() error
	Rollback() error
	Writable() bool
	State() TxState
}

// Datastore is the capability set every storage backend provides
type Datastore interface {
	Begin(ctx context.Context, writable bool) (Transaction, error)
	Name() AdapterName
	Path() string
	Variant() Variant
	Close() error
}

// StorageAdapter holds the engine handle shared by all transactions of a backend
type StorageAdapter[T any] struct {
	name    AdapterName
	path    string
	db      T
	variant Variant
}

// NewStorageAdapter wraps an opened engine instance
func NewStorageAdapter[T any](name AdapterName, path string, db T, variant Variant) StorageAdapter[T] {
	return StorageAdapter[T]{
		name:    name,
		path:    absolutePath(path),
		db:      db,
		variant: variant,
	}
}

// Name returns the backend identifier
func (a *StorageAdapter[T]) Name() AdapterName { return a.name }

// Path returns the resolved storage location
func (a *StorageAdapter[T]) Path() string { return a.path }

// Variant returns the backend's data model
func (a *StorageAdapter[T]) Variant() Variant { return a.variant }

func absolutePath(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// Open creates a Datastore for the named backend at path
func Open(name AdapterName, path string) (Datastore, error) {
	log := logrus.WithFields(logrus.Fields{
		"component": "kvs",
		"backend":   name,
		"path":      path,
	})
	switch AdapterName(strings.ToLower(string(name))) {
	case Badger:
		return OpenBadger(path)
	case Bolt:
		return OpenBolt(path)
	case Memory:
		return NewMemory(), nil
	default:
		log.Error("Unknown storage backend")
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", name)
	}
}
