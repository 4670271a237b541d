package storage

import "errors"

// Storage error taxonomy.
var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("storage: key not found")
	// ErrCorruptKey names a stored key that does not match the expected
	// fixed layout for its family. Nothing in this package returns it: the
	// scans here report malformed keys as *CorruptVolumeStateError.
	ErrCorruptKey = errors.New("storage: corrupt key")
	// ErrConflict names an atomic batch write that lost a race with another
	// writer. No Store in this module returns it; a commit whose base
	// snapshot is stale fails with runtime.ErrCommitConflict instead.
	ErrConflict = errors.New("storage: conflict")
)

// CorruptVolumeStateError reports a malformed volume-state value for a
// specific key tag, preserving enough detail for an operator to diagnose it.
type CorruptVolumeStateError struct {
	Tag    byte
	Detail string
}

func (e *CorruptVolumeStateError) Error() string {
	return "storage: corrupt volume state (tag " + tagName(e.Tag) + "): " + e.Detail
}

func tagName(tag byte) string {
	switch tag {
	case TagConfig:
		return "Config"
	case TagStatus:
		return "Status"
	case TagSnapshot:
		return "Snapshot"
	case TagWatermarks:
		return "Watermarks"
	default:
		return "Unknown"
	}
}
