// Package core defines the fixed-layout identifiers and page primitives
// shared by every other Graft package: volume and segment identifiers, log
// sequence numbers, page indices, and the opaque 4096-byte page itself.
package core

import (
	"encoding/base32"
	"fmt"

	"github.com/google/uuid"
)

// idEncoding is a lexicographically-ordered, unpadded base32 alphabet
// (Crockford-style) used for pretty-printing 16-byte identifiers. Ordering
// matters: VolumeId.String() must sort the same way the underlying bytes do,
// since commit keys embed the pretty encoding.
var idEncoding = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// VolumeId is a 16-byte globally-unique volume identifier.
type VolumeId [16]byte

// NewVolumeId generates a fresh random VolumeId.
func NewVolumeId() VolumeId {
	return VolumeId(uuid.New())
}

// String returns the lexicographically-ordered pretty encoding.
func (id VolumeId) String() string {
	return idEncoding.EncodeToString(id[:])
}

// ParseVolumeId parses a pretty-encoded VolumeId.
func ParseVolumeId(s string) (VolumeId, error) {
	var id VolumeId
	b, err := idEncoding.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("parsing volume id %q: %w", s, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("parsing volume id %q: expected %d bytes, got %d", s, len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// IsZero reports whether id is the zero-value identifier.
func (id VolumeId) IsZero() bool {
	return id == VolumeId{}
}

// SegmentId is a 16-byte content-addressed segment identifier, assigned by
// the pagestore server when pages are written.
type SegmentId [16]byte

// NewSegmentId generates a fresh random SegmentId.
func NewSegmentId() SegmentId {
	return SegmentId(uuid.New())
}

// String returns the lexicographically-ordered pretty encoding.
func (id SegmentId) String() string {
	return idEncoding.EncodeToString(id[:])
}

// ParseSegmentId parses a pretty-encoded SegmentId.
func ParseSegmentId(s string) (SegmentId, error) {
	var id SegmentId
	b, err := idEncoding.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("parsing segment id %q: %w", s, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("parsing segment id %q: expected %d bytes, got %d", s, len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}
