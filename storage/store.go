package storage

import "context"

// KV is an entry in a Batch.
type KV struct {
	Key   []byte
	Value []byte
}

// Batch is a set of puts and deletes applied atomically by Store.Write:
// every operation lands, or none do. Cross-key invariants, like a commit's
// new Snapshot and Watermarks landing together, are maintained by grouping
// every write that must be recovery-safe into one Batch.
type Batch struct {
	Puts    []KV
	Deletes [][]byte
}

// Put appends a put to the batch.
func (b *Batch) Put(key, value []byte) {
	b.Puts = append(b.Puts, KV{Key: append([]byte(nil), key...), Value: append([]byte(nil), value...)})
}

// Delete appends a delete to the batch.
func (b *Batch) Delete(key []byte) {
	b.Deletes = append(b.Deletes, append([]byte(nil), key...))
}

// IsEmpty reports whether the batch has no operations.
func (b *Batch) IsEmpty() bool {
	return len(b.Puts) == 0 && len(b.Deletes) == 0
}

// Store is the ordered key-value abstraction the core is built on.
// The embedded KV engine itself is an external collaborator —
// specified here only by the iterator + atomic-batch contract it must
// satisfy — with a concrete implementation in storage/badgerstore.
type Store interface {
	// Get returns the value for key, or ErrNotFound if absent.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Scan calls fn for every key in [start, end) in ascending order. end
	// may be nil to mean "no upper bound". Scan stops and returns fn's error
	// if fn returns a non-nil error.
	Scan(ctx context.Context, start, end []byte, fn func(key, value []byte) error) error

	// Write applies batch atomically.
	Write(ctx context.Context, batch Batch) error

	// Close releases underlying resources.
	Close() error
}
