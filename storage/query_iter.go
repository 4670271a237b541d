package storage

import (
	"context"
	"fmt"

	"github.com/graftdb/graft/core"
)

// VolumeQueryIter aggregates the flat stream of volume-state keys into one
// VolumeState per volume. It assumes the underlying scan
// delivers keys in ascending vid order — true for any Store, since
// AllVolumeStatesPrefix keys sort by vid after the shared family byte — and
// is a fused iterator: once it has returned ok=false, every subsequent call
// also returns ok=false.
type VolumeQueryIter struct {
	ctx   context.Context
	store Store

	rows  []volumeStateRow
	pos   int
	err   error
	done  bool
	fused bool
}

type volumeStateRow struct {
	vid   core.VolumeId
	tag   byte
	value []byte
}

// NewVolumeQueryIter loads every volume-state key from store and prepares to
// iterate. The scan happens eagerly so that Next never blocks on I/O.
func NewVolumeQueryIter(ctx context.Context, store Store) (*VolumeQueryIter, error) {
	it := &VolumeQueryIter{ctx: ctx, store: store}
	err := store.Scan(ctx, AllVolumeStatesPrefix(), AllVolumeStatesPrefixEnd(), func(key, value []byte) error {
		if len(key) != 18 {
			return &CorruptVolumeStateError{Detail: fmt.Sprintf("volume-state key has unexpected length %d", len(key))}
		}
		var vid core.VolumeId
		copy(vid[:], key[1:17])
		it.rows = append(it.rows, volumeStateRow{vid: vid, tag: key[17], value: append([]byte(nil), value...)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

// Err returns the first error encountered while building a VolumeState, if
// any. Once set, Next always returns ok=false.
func (it *VolumeQueryIter) Err() error {
	return it.err
}

// Next returns the VolumeState for the next distinct vid, or ok=false once
// exhausted (or after an error, or after Next has already returned false
// once — the fused guarantee).
func (it *VolumeQueryIter) Next() (VolumeState, bool) {
	if it.fused || it.err != nil || it.pos >= len(it.rows) {
		it.fused = true
		return VolumeState{}, false
	}

	var vs = VolumeState{VolumeId: it.rows[it.pos].vid}
	var start = it.pos
	for it.pos < len(it.rows) && it.rows[it.pos].vid == vs.VolumeId {
		row := it.rows[it.pos]
		if err := applyTag(&vs, row.tag, row.value); err != nil {
			it.err = err
			it.fused = true
			return VolumeState{}, false
		}
		it.pos++
	}
	if it.pos == start {
		// Defensive: should be unreachable given the loop above always
		// advances by at least one row.
		it.fused = true
		return VolumeState{}, false
	}
	return vs, true
}

func applyTag(vs *VolumeState, tag byte, value []byte) error {
	switch tag {
	case TagConfig:
		cfg, err := UnmarshalVolumeConfig(value)
		if err != nil {
			return err
		}
		vs.Config = cfg
	case TagStatus:
		status, err := UnmarshalVolumeStatus(value)
		if err != nil {
			return err
		}
		vs.Status = status
	case TagSnapshot:
		snap, err := UnmarshalSnapshot(value)
		if err != nil {
			return err
		}
		vs.Snapshot = snap
	case TagWatermarks:
		wm, err := UnmarshalWatermarks(value)
		if err != nil {
			return err
		}
		vs.Watermarks = wm
	default:
		return &CorruptVolumeStateError{Tag: tag, Detail: "unknown volume-state tag"}
	}
	return nil
}

// Collect drains the iterator into a slice, for callers that don't need the
// streaming behavior.
func (it *VolumeQueryIter) Collect() ([]VolumeState, error) {
	var out []VolumeState
	for {
		vs, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, vs)
	}
	return out, it.Err()
}
