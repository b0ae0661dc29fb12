package kvs

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("kitedb")

// BoltStore is a single-file embedded transactional backend.
// bbolt allows one writer at a time, so read-write transactions queue up
// in Begin instead of conflicting at commit.
type BoltStore struct {
	StorageAdapter[*bolt.DB]
}

// OpenBolt opens (or creates) the bolt file at path
func OpenBolt(path string) (*BoltStore, error) {
	log := logrus.WithFields(logrus.Fields{
		"component": "BoltStore",
		"path":      path,
	})
	log.Info("Initializing BoltStore")

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.WithError(err).Error("Failed to create database directory")
			return nil, errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		log.WithError(err).Error("Failed to open bolt database")
		return nil, errors.Wrapf(err, "failed to open bolt database at %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		log.WithError(err).Error("Failed to create bucket")
		db.Close()
		return nil, errors.Wrap(err, "failed to create bolt bucket")
	}

	return &BoltStore{
		StorageAdapter: NewStorageAdapter(Bolt, path, db, KeyValueStore),
	}, nil
}

// Begin opens a bolt transaction; a writable Begin blocks while another writer is open
func (s *BoltStore) Begin(ctx context.Context, writable bool) (Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := s.db.Begin(writable)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin bolt transaction")
	}
	return &boltTx{
		txGuard: newTxGuard(Bolt, writable),
		tx:      tx,
		bucket:  tx.Bucket(boltBucket),
	}, nil
}

// Close releases the bolt file
func (s *BoltStore) Close() error {
	log := logrus.WithField("component", "BoltStore")
	if err := s.db.Close(); err != nil {
		log.WithError(err).Error("Failed to close bolt database")
		return errors.Wrap(err, "failed to close bolt database")
	}
	log.Info("BoltStore closed")
	return nil
}

type boltTx struct {
	txGuard
	tx     *bolt.Tx
	bucket *bolt.Bucket
}

func (tx *boltTx) Get(key []byte) ([]byte, error) {
	if err := tx.checkOpen(); err != nil {
		return nil, err
	}
	value := tx.bucket.Get(key)
	if value == nil {
		return nil, ErrKeyNotFound
	}
	return copyBytes(value), nil
}

func (tx *boltTx) Put(key, value []byte) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	if err := tx.bucket.Put(key, value); err != nil {
		return errors.Wrapf(err, "failed to put key %q", key)
	}
	tx.record(OpPut, key)
	return nil
}

func (tx *boltTx) Delete(key []byte) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	if err := tx.bucket.Delete(key); err != nil {
		return errors.Wrapf(err, "failed to delete key %q", key)
	}
	tx.record(OpDelete, key)
	return nil
}

func (tx *boltTx) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	if err := tx.checkOpen(); err != nil {
		return err
	}
	c := tx.bucket.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(copyBytes(k), copyBytes(v)); err != nil {
			return err
		}
	}
	return nil
}

func (tx *boltTx) Commit() error {
	if err := tx.checkOpen(); err != nil {
		return err
	}
	var err error
	if tx.writable {
		err = tx.tx.Commit()
	} else {
		// read-only bolt transactions are closed with Rollback
		err = tx.tx.Rollback()
	}
	if err != nil {
		tx.log.WithError(err).Error("Failed to commit transaction")
		tx.finish(TxRolledBack)
		return errors.Wrap(err, "failed to commit bolt transaction")
	}
	tx.finish(TxCommitted)
	return nil
}

func (tx *boltTx) Rollback() error {
	if err := tx.checkOpen(); err != nil {
		return err
	}
	err := tx.tx.Rollback()
	tx.finish(TxRolledBack)
	if err != nil {
		return errors.Wrap(err, "failed to roll back bolt transaction")
	}
	return nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
