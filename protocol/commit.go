// Package protocol defines the wire contracts the core depends on: the
// binary commit log record format and the request/response
// messages exchanged with the metastore and pagestore.
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/splinter"
)

// CommitMagic is the little-endian magic number identifying a commit record:
// byte sequence 31 99 BF 00.
const CommitMagic uint32 = 0x00BF9931

// The commit header is exactly 48 bytes: magic(4) + vid(16) + meta(28).
// Asserted below via init so a layout drift fails loudly at startup.
const (
	commitMetaSize   = 28
	commitHeaderSize = 4 + 16 + commitMetaSize
)

func init() {
	if commitHeaderSize != 48 {
		panic("protocol: CommitHeader size invariant violated")
	}
}

// CommitMeta is the fixed-layout metadata block of a commit record.
type CommitMeta struct {
	LSN           core.LSN
	CheckpointLSN core.LSN
	LastOffset    core.Offset
	TimestampMs   uint64
}

// Validate checks CheckpointLSN <= LSN.
func (m CommitMeta) Validate() error {
	if m.CheckpointLSN > m.LSN {
		return fmt.Errorf("protocol: checkpoint_lsn (%s) > lsn (%s)", m.CheckpointLSN, m.LSN)
	}
	return nil
}

func (m CommitMeta) marshal(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(m.LSN))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(m.CheckpointLSN))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(m.LastOffset))
	binary.LittleEndian.PutUint64(buf[20:28], m.TimestampMs)
}

func unmarshalCommitMeta(buf []byte) CommitMeta {
	return CommitMeta{
		LSN:           core.LSN(binary.LittleEndian.Uint64(buf[0:8])),
		CheckpointLSN: core.LSN(binary.LittleEndian.Uint64(buf[8:16])),
		LastOffset:    core.Offset(binary.LittleEndian.Uint32(buf[16:20])),
		TimestampMs:   binary.LittleEndian.Uint64(buf[20:28]),
	}
}

// SegmentOffsets pairs a segment with the offsets of vid's pages it holds at
// this commit's LSN.
type SegmentOffsets struct {
	SID     core.SegmentId
	Offsets *splinter.Splinter
}

// Commit is one remote commit log record.
type Commit struct {
	VolumeId core.VolumeId
	Meta     CommitMeta
	Segments []SegmentOffsets
}

// CommitValidationErr enumerates the ways a byte payload can fail to decode
// into a Commit.
type CommitValidationErr struct {
	Kind   CommitValidationKind
	Detail string
}

type CommitValidationKind int

const (
	CommitErrMagic CommitValidationKind = iota
	CommitErrTooSmall
	CommitErrTruncatedSegment
)

func (e *CommitValidationErr) Error() string {
	switch e.Kind {
	case CommitErrMagic:
		return "protocol: invalid commit magic"
	case CommitErrTooSmall:
		return "protocol: commit payload shorter than header"
	case CommitErrTruncatedSegment:
		return "protocol: commit payload truncated mid-segment: " + e.Detail
	default:
		return "protocol: invalid commit payload"
	}
}

// IntoPayload encodes the commit into its wire form: header || offsets-block.
func (c Commit) IntoPayload() []byte {
	buf := make([]byte, commitHeaderSize, commitHeaderSize+64)
	binary.LittleEndian.PutUint32(buf[0:4], CommitMagic)
	copy(buf[4:20], c.VolumeId[:])
	c.Meta.marshal(buf[20:48])

	for _, seg := range c.Segments {
		splinterBytes := seg.Offsets.Serialize()
		var head [20]byte
		copy(head[0:16], seg.SID[:])
		binary.LittleEndian.PutUint32(head[16:20], uint32(len(splinterBytes)))
		buf = append(buf, head[:]...)
		buf = append(buf, splinterBytes...)
	}
	return buf
}

// CommitFromBytes decodes a Commit previously produced by IntoPayload.
func CommitFromBytes(payload []byte) (Commit, error) {
	if len(payload) < commitHeaderSize {
		return Commit{}, &CommitValidationErr{Kind: CommitErrTooSmall}
	}
	if binary.LittleEndian.Uint32(payload[0:4]) != CommitMagic {
		return Commit{}, &CommitValidationErr{Kind: CommitErrMagic}
	}

	var c Commit
	copy(c.VolumeId[:], payload[4:20])
	c.Meta = unmarshalCommitMeta(payload[20:48])
	if err := c.Meta.Validate(); err != nil {
		return Commit{}, err
	}

	rest := payload[commitHeaderSize:]
	for len(rest) > 0 {
		if len(rest) < 20 {
			return Commit{}, &CommitValidationErr{Kind: CommitErrTruncatedSegment, Detail: "short segment header"}
		}
		var sid core.SegmentId
		copy(sid[:], rest[0:16])
		size := binary.LittleEndian.Uint32(rest[16:20])
		rest = rest[20:]
		if uint64(len(rest)) < uint64(size) {
			return Commit{}, &CommitValidationErr{Kind: CommitErrTruncatedSegment, Detail: "short splinter body"}
		}
		offsets, err := splinter.Parse(rest[:size])
		if err != nil {
			return Commit{}, &CommitValidationErr{Kind: CommitErrTruncatedSegment, Detail: err.Error()}
		}
		c.Segments = append(c.Segments, SegmentOffsets{SID: sid, Offsets: offsets})
		rest = rest[size:]
	}
	return c, nil
}

// ObjectKey returns the remote object-store key for a commit:
// "volumes/{vid}/{lsn:018x}", which sorts lexicographically in ascending LSN
// order because of the fixed-width hex encoding.
func ObjectKey(vid core.VolumeId, lsn core.LSN) string {
	return fmt.Sprintf("volumes/%s/%s", vid.String(), lsn.String())
}
