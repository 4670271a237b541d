package storage

import (
	"encoding/binary"
	"math"

	"github.com/graftdb/graft/core"
)

// Volume-state tags, composed as `familyVolumeState | vid(16B) | tag(1B)`.
// The leading one-byte family discriminator lets volume-state, page-data,
// and segment-index keys share one flat ordered keyspace without a vid
// colliding with another family's prefix byte.
const (
	TagConfig     byte = 1
	TagStatus     byte = 2
	TagSnapshot   byte = 3
	TagWatermarks byte = 4
)

const (
	familyVolumeState byte = 0x00
	familyPage        byte = 0x10
	familySegment     byte = 0x20
)

// VolumeStateKey builds the 18-byte key `familyVolumeState | vid | tag` for
// one of the four volume-state tags.
func VolumeStateKey(vid core.VolumeId, tag byte) []byte {
	key := make([]byte, 18)
	key[0] = familyVolumeState
	copy(key[1:17], vid[:])
	key[17] = tag
	return key
}

// VolumeStatePrefix returns the key prefix shared by all four of a volume's
// state keys, for use as a Scan lower bound.
func VolumeStatePrefix(vid core.VolumeId) []byte {
	key := make([]byte, 0, 17)
	key = append(key, familyVolumeState)
	return append(key, vid[:]...)
}

// VolumeStatePrefixEnd returns the exclusive upper bound matching
// VolumeStatePrefix.
func VolumeStatePrefixEnd(vid core.VolumeId) []byte {
	return incrementBytes(VolumeStatePrefix(vid))
}

// AllVolumeStatesPrefix and AllVolumeStatesPrefixEnd bound a Scan over every
// volume's state keys, for VolumeQueryIter.
func AllVolumeStatesPrefix() []byte {
	return []byte{familyVolumeState}
}

func AllVolumeStatesPrefixEnd() []byte {
	return []byte{familyVolumeState + 1}
}

func incrementBytes(b []byte) []byte {
	out := append([]byte(nil), b...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	// All 0xFF: every key that sorts at or after b has prefix b, so there is
	// no finite upper bound; nil means "no upper bound" to Store.Scan.
	return nil
}

// invertLSN maps an LSN onto a monotonically decreasing uint64, so that
// ascending key order corresponds to descending LSN order. This lets
// PageKey's "latest version at or before a target LSN" query run as a
// forward Scan from a single seek key (see PageSeekKey).
func invertLSN(lsn core.LSN) uint64 {
	return math.MaxUint64 - uint64(lsn)
}

// PageKeyPrefix returns the key prefix shared by every materialized version
// of page pageIdx in volume vid: `familyPage | vid(16) | pageIdx(4, BE)`.
func PageKeyPrefix(vid core.VolumeId, pageIdx core.PageIdx) []byte {
	key := make([]byte, 0, 21)
	key = append(key, familyPage)
	key = append(key, vid[:]...)
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(pageIdx))
	return append(key, idx[:]...)
}

// PageKey returns the key under which the version of pageIdx written at lsn
// is stored: `PageKeyPrefix | invertLSN(lsn) (8, BE)`.
func PageKey(vid core.VolumeId, pageIdx core.PageIdx, lsn core.LSN) []byte {
	prefix := PageKeyPrefix(vid, pageIdx)
	key := make([]byte, 0, len(prefix)+8)
	key = append(key, prefix...)
	var inv [8]byte
	binary.BigEndian.PutUint64(inv[:], invertLSN(lsn))
	return append(key, inv[:]...)
}

// PageSeekKey returns the key to begin a forward Scan at in order to find
// the newest materialized version of pageIdx at or before atLSN: the first
// matching key returned by that scan (if its prefix is still
// PageKeyPrefix(vid, pageIdx)) is the answer.
func PageSeekKey(vid core.VolumeId, pageIdx core.PageIdx, atLSN core.LSN) []byte {
	return PageKey(vid, pageIdx, atLSN)
}

// SegmentKey returns the key for the catalog entry recording that segment
// sid covers some offsets of volume vid as of lsn:
// `familySegment | vid(16) | lsn(8, BE) | sid(16)`.
func SegmentKey(vid core.VolumeId, lsn core.LSN, sid core.SegmentId) []byte {
	key := make([]byte, 0, 41)
	key = append(key, familySegment)
	key = append(key, vid[:]...)
	var lsnBuf [8]byte
	binary.BigEndian.PutUint64(lsnBuf[:], uint64(lsn))
	key = append(key, lsnBuf[:]...)
	return append(key, sid[:]...)
}

// SegmentPrefix returns the key prefix covering every segment-index entry
// for vid, for use as a Scan bound.
func SegmentPrefix(vid core.VolumeId) []byte {
	key := make([]byte, 0, 17)
	key = append(key, familySegment)
	return append(key, vid[:]...)
}

// SegmentPrefixEnd returns the exclusive upper bound matching SegmentPrefix.
func SegmentPrefixEnd(vid core.VolumeId) []byte {
	return incrementBytes(SegmentPrefix(vid))
}
