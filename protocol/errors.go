package protocol

import "errors"

// GraftErrCode enumerates the error codes a metastore or pagestore response
// can carry in place of a successful payload.
type GraftErrCode int

const (
	ErrCodeUnknown GraftErrCode = iota
	ErrCodeSnapshotMissing
	ErrCodeCommitRejected
	ErrCodeCorruptKey
	ErrCodeCorruptVolumeState
	ErrCodeConflict
	ErrCodeBusy
	ErrCodeBusySnapshot
	ErrCodeInvalidLockTransition
	ErrCodeSplinterParse
)

func (c GraftErrCode) String() string {
	switch c {
	case ErrCodeSnapshotMissing:
		return "snapshot_missing"
	case ErrCodeCommitRejected:
		return "commit_rejected"
	case ErrCodeCorruptKey:
		return "corrupt_key"
	case ErrCodeCorruptVolumeState:
		return "corrupt_volume_state"
	case ErrCodeConflict:
		return "conflict"
	case ErrCodeBusy:
		return "busy"
	case ErrCodeBusySnapshot:
		return "busy_snapshot"
	case ErrCodeInvalidLockTransition:
		return "invalid_lock_transition"
	case ErrCodeSplinterParse:
		return "splinter_parse"
	default:
		return "unknown"
	}
}

// GraftErr is the structured error a metastore or pagestore response can
// carry instead of a payload. It satisfies the error interface so callers
// can use errors.As/errors.Is against it directly.
type GraftErr struct {
	Code    GraftErrCode
	Message string
}

func (e *GraftErr) Error() string {
	if e.Message != "" {
		return "graft: " + e.Code.String() + ": " + e.Message
	}
	return "graft: " + e.Code.String()
}

// Is lets errors.Is(err, ErrSnapshotMissing) match any *GraftErr carrying the
// same code, regardless of Message.
func (e *GraftErr) Is(target error) bool {
	var t *GraftErr
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel GraftErr values for use with errors.Is.
var (
	ErrSnapshotMissing       = &GraftErr{Code: ErrCodeSnapshotMissing}
	ErrCommitRejected        = &GraftErr{Code: ErrCodeCommitRejected}
	ErrCorruptKey            = &GraftErr{Code: ErrCodeCorruptKey}
	ErrCorruptVolumeState    = &GraftErr{Code: ErrCodeCorruptVolumeState}
	ErrConflict              = &GraftErr{Code: ErrCodeConflict}
	ErrBusy                  = &GraftErr{Code: ErrCodeBusy}
	ErrBusySnapshot          = &GraftErr{Code: ErrCodeBusySnapshot}
	ErrInvalidLockTransition = &GraftErr{Code: ErrCodeInvalidLockTransition}
	ErrSplinterParse         = &GraftErr{Code: ErrCodeSplinterParse}
)

// IsSnapshotMissing reports whether err is (or wraps) a snapshot-missing
// GraftErr.
func IsSnapshotMissing(err error) bool {
	return errors.Is(err, ErrSnapshotMissing)
}

// IsCommitRejected reports whether err is (or wraps) a commit-rejected
// GraftErr.
func IsCommitRejected(err error) bool {
	return errors.Is(err, ErrCommitRejected)
}
