// Package badgerstore implements storage.Store on top of
// github.com/dgraph-io/badger/v4, the embedded ordered KV store used for
// durable local persistence: point gets through a read-only transaction,
// forward prefix scans through a managed iterator, and multi-key writes
// through a single update transaction for atomicity.
package badgerstore

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/graftdb/graft/storage"
)

// Store wraps an open *badger.DB.
type Store struct {
	db *badger.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if absent) a badger database rooted at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: opening %q: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return storage.ErrNotFound
		} else if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) Scan(ctx context.Context, start, end []byte, fn func(key, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(start); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			if end != nil && compareBytes(key, end) >= 0 {
				break
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Write applies batch inside a single badger transaction, so every put and
// delete commits — or none do (badger.WriteBatch intentionally isn't used
// here: it trades atomicity for throughput across many internal
// transactions, which is wrong for a batch whose whole point is that a
// commit's page writes, Snapshot, and Watermarks land together).
func (s *Store) Write(ctx context.Context, batch storage.Batch) error {
	if batch.IsEmpty() {
		return nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, kv := range batch.Puts {
			if err := txn.Set(kv.Key, kv.Value); err != nil {
				return err
			}
		}
		for _, key := range batch.Deletes {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badgerstore: write batch: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}
