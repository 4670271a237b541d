package core

import (
	"encoding/binary"
	"fmt"
)

// watermarkSize is the fixed wire size of a Watermark: tag(1) + pad(3) +
// lsn(8) + pages(4) = 16 bytes. The padding
// exists solely so both the Unmapped and Mapped variants occupy the same
// width when packed into a tagged union.
const watermarkSize = 16

const (
	watermarkTagUnmapped byte = 0
	watermarkTagMapped   byte = 1
)

// Watermark is a tagged union: either Unmapped, or Mapped to a specific LSN
// and page count. It marks the progress of one phase of sync.
type Watermark struct {
	mapped bool
	lsn    LSN
	pages  PageCount
}

// UnmappedWatermark is the zero-value, unmapped watermark.
var UnmappedWatermark = Watermark{}

// MappedWatermark builds a Watermark mapped to lsn and pages.
func MappedWatermark(lsn LSN, pages PageCount) Watermark {
	return Watermark{mapped: true, lsn: lsn, pages: pages}
}

// IsMapped reports whether the watermark carries an LSN.
func (w Watermark) IsMapped() bool {
	return w.mapped
}

// LSN returns the mapped LSN, or LSNZero if unmapped.
func (w Watermark) LSN() LSN {
	if !w.mapped {
		return LSNZero
	}
	return w.lsn
}

// Pages returns the mapped page count, or 0 if unmapped.
func (w Watermark) Pages() PageCount {
	if !w.mapped {
		return 0
	}
	return w.pages
}

// Marshal encodes the watermark into its fixed 16-byte little-endian layout.
func (w Watermark) Marshal() [watermarkSize]byte {
	var buf [watermarkSize]byte
	if w.mapped {
		buf[0] = watermarkTagMapped
		binary.LittleEndian.PutUint64(buf[4:12], uint64(w.lsn))
		binary.LittleEndian.PutUint32(buf[12:16], uint32(w.pages))
	}
	return buf
}

// UnmarshalWatermark decodes a Watermark from its fixed 16-byte layout.
func UnmarshalWatermark(buf []byte) (Watermark, error) {
	if len(buf) != watermarkSize {
		return Watermark{}, fmt.Errorf("core: watermark payload must be %d bytes, got %d", watermarkSize, len(buf))
	}
	switch buf[0] {
	case watermarkTagUnmapped:
		return UnmappedWatermark, nil
	case watermarkTagMapped:
		return Watermark{
			mapped: true,
			lsn:    LSN(binary.LittleEndian.Uint64(buf[4:12])),
			pages:  PageCount(binary.LittleEndian.Uint32(buf[12:16])),
		}, nil
	default:
		return Watermark{}, fmt.Errorf("core: invalid watermark tag %d", buf[0])
	}
}

func (w Watermark) String() string {
	if !w.mapped {
		return "Unmapped"
	}
	return fmt.Sprintf("Mapped{lsn=%s, pages=%d}", w.lsn, w.pages)
}
