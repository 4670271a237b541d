package protocol

import "github.com/graftdb/graft/core"

// BoundKind distinguishes the three ways an LsnRange endpoint can be
// specified.
type BoundKind int

const (
	BoundUnbounded BoundKind = iota
	BoundIncluded
	BoundExcluded
)

// Bound is one endpoint of an LsnRange.
type Bound struct {
	Kind  BoundKind
	Value core.LSN
}

// Included returns an inclusive bound at lsn.
func Included(lsn core.LSN) Bound { return Bound{Kind: BoundIncluded, Value: lsn} }

// Excluded returns an exclusive bound at lsn.
func Excluded(lsn core.LSN) Bound { return Bound{Kind: BoundExcluded, Value: lsn} }

// Unbounded returns an unspecified bound.
func Unbounded() Bound { return Bound{Kind: BoundUnbounded} }

// LsnRange is the range argument to pull_offsets and pull_commits.
// Endpoints follow half-open/closed semantics:
//
//	start() = included start; Excluded(x) => x+1.
//	end()   = included end;   Excluded(x) => x-1, saturating at LSNZero.
//
// An unspecified start defaults to the snapshot's checkpoint.
type LsnRange struct {
	Start Bound
	End   Bound
}

// NewClosedRange returns the inclusive range [start, end].
func NewClosedRange(start, end core.LSN) LsnRange {
	return LsnRange{Start: Included(start), End: Included(end)}
}

// StartLSN returns the included start of the range, substituting
// defaultStart when the range leaves the start unspecified.
func (r LsnRange) StartLSN(defaultStart core.LSN) core.LSN {
	switch r.Start.Kind {
	case BoundIncluded:
		return r.Start.Value
	case BoundExcluded:
		return r.Start.Value + 1
	default:
		return defaultStart
	}
}

// EndLSN returns the included end of the range and true, or ok=false if the
// range has no upper bound.
func (r LsnRange) EndLSN() (lsn core.LSN, ok bool) {
	switch r.End.Kind {
	case BoundIncluded:
		return r.End.Value, true
	case BoundExcluded:
		if r.End.Value == core.LSNZero {
			return core.LSNZero, true
		}
		return r.End.Value - 1, true
	default:
		return core.LSNZero, false
	}
}

// Contains reports whether lsn falls within the range, given defaultStart
// for an unspecified start.
func (r LsnRange) Contains(lsn core.LSN, defaultStart core.LSN) bool {
	if lsn < r.StartLSN(defaultStart) {
		return false
	}
	if end, ok := r.EndLSN(); ok && lsn > end {
		return false
	}
	return true
}
