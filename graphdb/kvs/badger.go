package kvs

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// BadgerStore is a log-structured backend with optimistic concurrency control.
// Conflicts are detected when a transaction commits, never when it writes.
type BadgerStore struct {
	StorageAdapter[*badger.DB]
}

// OpenBadger opens (or creates) a badger database in the directory at path
func OpenBadger(path string) (*BadgerStore, error) {
	log := logrus.WithFields(logrus.Fields{
		"component": "BadgerStore",
		"path":      path,
	})
	log.Info("Initializing BadgerStore")

	opts := badger.DefaultOptions(path).
		WithLogger(logrus.WithField("component", "badger"))
	db, err := badger.Open(opts)
	if err != nil {
		log.WithError(err).Error("Failed to open badger database")
		return nil, errors.Wrapf(err, "failed to open badger database at %s", path)
	}

	return &BadgerStore{
		StorageAdapter: NewStorageAdapter(Badger, path, db, KeyValueStore),
	}, nil
}

// Begin opens a badger transaction
func (s *BadgerStore) Begin(ctx context.Context, writable bool) (Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &badgerTx{
		txGuard: newTxGuard(Badger, writable),
		txn:     s.db.NewTransaction(writable),
	}, nil
}

// Close releases the badger engine
func (s *BadgerStore) Close() error {
	log := logrus.WithField("component", "BadgerStore")
	if err := s.db.Close(); err != nil {
		log.WithError(err).Error("Failed to close badger database")
		return errors.Wrap(err, "failed to close badger database")
	}
	log.Info("BadgerStore closed")
	return nil
}

type badgerTx struct {
	txGuard
	txn *badger.Txn
}

func (tx *badgerTx) Get(key []byte) ([]byte, error) {
	if err := tx.checkOpen(); err != nil {
		return nil, err
	}
	item, err := tx.txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get key %q", key)
	}
	return item.ValueCopy(nil)
}

func (tx *badgerTx) Put(key, value []byte) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	if err := tx.txn.Set(key, value); err != nil {
		return errors.Wrapf(err, "failed to put key %q", key)
	}
	tx.record(OpPut, key)
	return nil
}

func (tx *badgerTx) Delete(key []byte) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	if err := tx.txn.Delete(key); err != nil {
		return errors.Wrapf(err, "failed to delete key %q", key)
	}
	tx.record(OpDelete, key)
	return nil
}

func (tx *badgerTx) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	if err := tx.checkOpen(); err != nil {
		return err
	}
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := tx.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return errors.Wrapf(err, "failed to read value of key %q", item.Key())
		}
		if err := fn(item.KeyCopy(nil), value); err != nil {
			return err
		}
	}
	return nil
}

func (tx *badgerTx) Commit() error {
	if err := tx.checkOpen(); err != nil {
		return err
	}
	err := tx.txn.Commit()
	if err == badger.ErrConflict {
		tx.log.Warn("Commit rejected by optimistic concurrency check")
		tx.finish(TxRolledBack)
		return ErrConflict
	}
	if err != nil {
		tx.log.WithError(err).Error("Failed to commit transaction")
		tx.finish(TxRolledBack)
		return errors.Wrap(err, "failed to commit badger transaction")
	}
	tx.finish(TxCommitted)
	return nil
}

func (tx *badgerTx) Rollback() error {
	if err := tx.checkOpen(); err != nil {
		return err
	}
	tx.txn.Discard()
	tx.finish(TxRolledBack)
	return nil
}
