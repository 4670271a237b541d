package storage

import (
	"context"
	"encoding/binary"
	"sort"

	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/splinter"
)

// SegmentEntry is one row of a volume's local segment catalog: segment sid
// covers the offsets in Offsets as of commit LSN.
type SegmentEntry struct {
	LSN     core.LSN
	SID     core.SegmentId
	Offsets *splinter.Splinter
}

// StageSegment appends a put recording that sid covers offsets as of lsn.
func StageSegment(batch *Batch, vid core.VolumeId, lsn core.LSN, sid core.SegmentId, offsets *splinter.Splinter) {
	batch.Put(SegmentKey(vid, lsn, sid), offsets.Serialize())
}

// SegmentsAtOrBefore returns every catalog entry for vid with LSN <= atLSN,
// newest-first, matching the scan order the read-paging algorithm wants.
func SegmentsAtOrBefore(ctx context.Context, store Store, vid core.VolumeId, atLSN core.LSN) ([]SegmentEntry, error) {
	var entries []SegmentEntry
	prefix := SegmentPrefix(vid)
	// SegmentKey is `familySegment | vid | lsn(8,BE) | sid`; atLSN's
	// successor bounds the scan to LSNs <= atLSN.
	end := make([]byte, 0, len(prefix)+8)
	end = append(end, prefix...)
	var lsnBuf [8]byte
	binary.BigEndian.PutUint64(lsnBuf[:], uint64(atLSN)+1)
	end = append(end, lsnBuf[:]...)

	err := store.Scan(ctx, prefix, end, func(key, value []byte) error {
		if len(key) != 1+16+8+16 {
			return &CorruptVolumeStateError{Detail: "malformed segment-index key"}
		}
		var sid core.SegmentId
		copy(sid[:], key[25:41])
		offsets, perr := splinter.Parse(value)
		if perr != nil {
			return perr
		}
		entries = append(entries, SegmentEntry{
			LSN:     core.LSN(binary.BigEndian.Uint64(key[17:25])),
			SID:     sid,
			Offsets: offsets,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].LSN > entries[j].LSN })
	return entries, nil
}
