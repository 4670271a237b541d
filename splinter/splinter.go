// Package splinter implements a compressed ordered set of 32-bit page
// offsets. Offsets are split into a 16-bit container key and a 16-bit low
// value, and only non-empty containers are stored, so sparse offset sets
// (the common case for a single commit's dirty pages) cost far less than a
// flat 4-byte-per-offset array.
//
// Splinter is the key primitive read-paging uses to subtract offsets a
// segment has already satisfied from the outstanding request.
package splinter

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Splinter is a compressed ordered set of uint32 offsets. The zero value is
// an empty set ready to use.
type Splinter struct {
	// containers maps a 16-bit high word to the sorted, deduplicated list of
	// 16-bit low words present for that high word. A key is only present
	// when its list is non-empty.
	containers map[uint16][]uint16
}

// New returns an empty Splinter.
func New() *Splinter {
	return &Splinter{}
}

// FromSlice builds a Splinter containing every offset in values.
func FromSlice(values []uint32) *Splinter {
	var s = New()
	for _, v := range values {
		s.Insert(v)
	}
	return s
}

func split(offset uint32) (hi, lo uint16) {
	return uint16(offset >> 16), uint16(offset)
}

func join(hi, lo uint16) uint32 {
	return uint32(hi)<<16 | uint32(lo)
}

// IsEmpty reports whether the set contains no offsets.
func (s *Splinter) IsEmpty() bool {
	return s == nil || len(s.containers) == 0
}

// Cardinality returns the number of offsets in the set.
func (s *Splinter) Cardinality() int {
	if s == nil {
		return 0
	}
	var n int
	for _, lows := range s.containers {
		n += len(lows)
	}
	return n
}

// Insert adds offset to the set. It is a no-op if already present.
func (s *Splinter) Insert(offset uint32) {
	if s.containers == nil {
		s.containers = make(map[uint16][]uint16)
	}
	hi, lo := split(offset)
	lows := s.containers[hi]
	i := sort.Search(len(lows), func(i int) bool { return lows[i] >= lo })
	if i < len(lows) && lows[i] == lo {
		return
	}
	lows = append(lows, 0)
	copy(lows[i+1:], lows[i:])
	lows[i] = lo
	s.containers[hi] = lows
}

// Contains reports whether offset is in the set.
func (s *Splinter) Contains(offset uint32) bool {
	if s == nil {
		return false
	}
	hi, lo := split(offset)
	lows, ok := s.containers[hi]
	if !ok {
		return false
	}
	i := sort.Search(len(lows), func(i int) bool { return lows[i] >= lo })
	return i < len(lows) && lows[i] == lo
}

// sortedKeys returns the set's container keys in ascending order.
func (s *Splinter) sortedKeys() []uint16 {
	if s == nil {
		return nil
	}
	keys := make([]uint16, 0, len(s.containers))
	for k := range s.containers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Iter calls yield for every offset in the set in ascending order, stopping
// early if yield returns false.
func (s *Splinter) Iter(yield func(offset uint32) bool) {
	for _, hi := range s.sortedKeys() {
		for _, lo := range s.containers[hi] {
			if !yield(join(hi, lo)) {
				return
			}
		}
	}
}

// Slice returns every offset in the set, ascending.
func (s *Splinter) Slice() []uint32 {
	out := make([]uint32, 0, s.Cardinality())
	s.Iter(func(o uint32) bool {
		out = append(out, o)
		return true
	})
	return out
}

// Cut removes every offset also present in other from s, and returns the
// removed offsets as a new Splinter: after `removed := s.Cut(other)`,
// `removed == s ∩ other` and s itself holds `s \ other`.
func (s *Splinter) Cut(other *Splinter) *Splinter {
	var removed = New()
	if s == nil || other == nil {
		return removed
	}
	for hi, lows := range s.containers {
		otherLows, ok := other.containers[hi]
		if !ok {
			continue
		}
		var kept = lows[:0:0]
		var cut []uint16
		i, j := 0, 0
		for i < len(lows) && j < len(otherLows) {
			switch {
			case lows[i] < otherLows[j]:
				kept = append(kept, lows[i])
				i++
			case lows[i] > otherLows[j]:
				j++
			default:
				cut = append(cut, lows[i])
				i++
				j++
			}
		}
		kept = append(kept, lows[i:]...)
		if len(kept) == 0 {
			delete(s.containers, hi)
		} else {
			s.containers[hi] = kept
		}
		if len(cut) > 0 {
			if removed.containers == nil {
				removed.containers = make(map[uint16][]uint16)
			}
			removed.containers[hi] = cut
		}
	}
	return removed
}

// Union returns a new Splinter containing every offset in s or other. It
// does not mutate either argument.
func (s *Splinter) Union(other *Splinter) *Splinter {
	var out = New()
	merge := func(src *Splinter) {
		if src == nil {
			return
		}
		for hi, lows := range src.containers {
			if out.containers == nil {
				out.containers = make(map[uint16][]uint16)
			}
			existing := out.containers[hi]
			merged := make([]uint16, 0, len(existing)+len(lows))
			i, j := 0, 0
			for i < len(existing) && j < len(lows) {
				switch {
				case existing[i] < lows[j]:
					merged = append(merged, existing[i])
					i++
				case existing[i] > lows[j]:
					merged = append(merged, lows[j])
					j++
				default:
					merged = append(merged, existing[i])
					i++
					j++
				}
			}
			merged = append(merged, existing[i:]...)
			merged = append(merged, lows[j:]...)
			out.containers[hi] = merged
		}
	}
	merge(s)
	merge(other)
	return out
}

// Equal reports whether s and other contain exactly the same offsets.
func (s *Splinter) Equal(other *Splinter) bool {
	if s.Cardinality() != other.Cardinality() {
		return false
	}
	var eq = true
	s.Iter(func(o uint32) bool {
		if !other.Contains(o) {
			eq = false
			return false
		}
		return true
	})
	return eq
}

// Serialize encodes the set into its compact wire form:
//
//	numContainers uint32 LE
//	per container, ascending key order:
//	  key   uint16 LE
//	  count uint32 LE
//	  count * uint16 LE sorted low words
func (s *Splinter) Serialize() []byte {
	keys := s.sortedKeys()
	buf := make([]byte, 4, 4+len(keys)*6+s.Cardinality()*2)
	binary.LittleEndian.PutUint32(buf, uint32(len(keys)))
	for _, hi := range keys {
		lows := s.containers[hi]
		var head [6]byte
		binary.LittleEndian.PutUint16(head[0:2], hi)
		binary.LittleEndian.PutUint32(head[2:6], uint32(len(lows)))
		buf = append(buf, head[:]...)
		for _, lo := range lows {
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], lo)
			buf = append(buf, b[:]...)
		}
	}
	return buf
}

// ErrDecode is returned by Parse when the payload is malformed.
type ErrDecode struct {
	Reason string
}

func (e *ErrDecode) Error() string {
	return fmt.Sprintf("splinter: decode error: %s", e.Reason)
}

// Parse decodes a Splinter previously produced by Serialize.
func Parse(buf []byte) (*Splinter, error) {
	if len(buf) < 4 {
		return nil, &ErrDecode{Reason: "payload shorter than header"}
	}
	numContainers := binary.LittleEndian.Uint32(buf[0:4])
	buf = buf[4:]

	var s = New()
	if numContainers > 0 {
		s.containers = make(map[uint16][]uint16, numContainers)
	}
	var lastKey uint16
	for i := uint32(0); i < numContainers; i++ {
		if len(buf) < 6 {
			return nil, &ErrDecode{Reason: "truncated container header"}
		}
		key := binary.LittleEndian.Uint16(buf[0:2])
		count := binary.LittleEndian.Uint32(buf[2:6])
		buf = buf[6:]
		if i > 0 && key <= lastKey {
			return nil, &ErrDecode{Reason: "container keys out of order"}
		}
		lastKey = key

		if uint64(len(buf)) < uint64(count)*2 {
			return nil, &ErrDecode{Reason: "truncated container body"}
		}
		lows := make([]uint16, count)
		var lastLow uint16
		for j := uint32(0); j < count; j++ {
			low := binary.LittleEndian.Uint16(buf[:2])
			buf = buf[2:]
			if j > 0 && low <= lastLow {
				return nil, &ErrDecode{Reason: "low words out of order"}
			}
			lastLow = low
			lows[j] = low
		}
		if count > 0 {
			s.containers[key] = lows
		}
	}
	return s, nil
}
