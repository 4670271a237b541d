// Package memstore is an in-memory, single-process implementation of
// storage.Store. It backs unit tests across the module and is a legitimate
// standalone backend for ephemeral volumes (e.g. scratch databases that
// never need to survive a restart); storage/badgerstore is the durable
// backend.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/graftdb/graft/storage"
)

// Store is a sorted, mutex-guarded map satisfying storage.Store.
type Store struct {
	mu   sync.RWMutex
	keys [][]byte
	vals map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{vals: make(map[string][]byte)}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vals[string(key)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Scan(ctx context.Context, start, end []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	keys := append([][]byte(nil), s.keys...)
	s.mu.RUnlock()

	i := sort.Search(len(keys), func(i int) bool { return bytes.Compare(keys[i], start) >= 0 })
	for ; i < len(keys); i++ {
		k := keys[i]
		if end != nil && bytes.Compare(k, end) >= 0 {
			break
		}
		s.mu.RLock()
		v, ok := s.vals[string(k)]
		s.mu.RUnlock()
		if !ok {
			continue // concurrently deleted
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Write(ctx context.Context, batch storage.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kv := range batch.Puts {
		s.putLocked(kv.Key, kv.Value)
	}
	for _, key := range batch.Deletes {
		s.deleteLocked(key)
	}
	return nil
}

func (s *Store) putLocked(key, value []byte) {
	k := string(key)
	if _, exists := s.vals[k]; !exists {
		i := sort.Search(len(s.keys), func(i int) bool { return bytes.Compare(s.keys[i], key) >= 0 })
		s.keys = append(s.keys, nil)
		copy(s.keys[i+1:], s.keys[i:])
		s.keys[i] = append([]byte(nil), key...)
	}
	s.vals[k] = append([]byte(nil), value...)
}

func (s *Store) deleteLocked(key []byte) {
	k := string(key)
	if _, exists := s.vals[k]; !exists {
		return
	}
	delete(s.vals, k)
	i := sort.Search(len(s.keys), func(i int) bool { return bytes.Compare(s.keys[i], key) >= 0 })
	if i < len(s.keys) && bytes.Equal(s.keys[i], key) {
		s.keys = append(s.keys[:i], s.keys[i+1:]...)
	}
}

func (s *Store) Close() error {
	return nil
}
