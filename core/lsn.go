package core

import "fmt"

// LSN is a monotonically increasing log sequence number. LSNZero is the
// sentinel value meaning "no commit has happened yet".
type LSN uint64

// LSNZero is the pre-first-commit sentinel value.
const LSNZero LSN = 0

// Next returns the LSN immediately following lsn.
func (lsn LSN) Next() LSN {
	return lsn + 1
}

// String renders the LSN as a fixed-width 18-digit lowercase hex string, the
// same encoding used for commit log keys:
// "volumes/{vid}/{lsn:018x}" sorts lexicographically in ascending LSN order.
func (lsn LSN) String() string {
	return fmt.Sprintf("%018x", uint64(lsn))
}

// PageIdx is a 1-based page number. PageIdx(0) is never a valid page.
type PageIdx uint32

// Offset returns the 0-based page offset corresponding to this index.
func (p PageIdx) Offset() Offset {
	if p == 0 {
		panic("core: PageIdx(0) has no offset")
	}
	return Offset(p - 1)
}

// PageCount is a 0-based count of pages in a volume.
type PageCount uint32

// Contains reports whether PageIdx p falls within [1, count].
func (count PageCount) Contains(p PageIdx) bool {
	return p >= 1 && uint32(p) <= uint32(count)
}

// Offset is a 32-bit 0-based page offset: Offset(p) == PageIdx(p+1).
type Offset uint32

// PageIdx returns the 1-based page index corresponding to this offset.
func (o Offset) PageIdx() PageIdx {
	return PageIdx(o + 1)
}

// PageSize is the fixed size in bytes of every page.
const PageSize = 4096

// Page is an opaque, fixed-size byte array. The core never interprets its
// contents.
type Page [PageSize]byte

// Fill returns a Page with every byte set to b, handy for tests.
func Fill(b byte) Page {
	var p Page
	for i := range p {
		p[i] = b
	}
	return p
}
