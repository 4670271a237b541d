package runtime

import "errors"

// Sentinel errors raised by the volume handle/reader/writer path.
var (
	// ErrPageOutOfRange is returned when a read targets a page index outside
	// the requester's visible page count, or a write targets PageIdx(0).
	ErrPageOutOfRange = errors.New("runtime: page index out of range")
	// ErrPageUnavailable is returned by a read that misses the local store
	// and has no Fetcher configured to consult.
	ErrPageUnavailable = errors.New("runtime: page not present locally and no fetcher configured")
	// ErrCommitConflict is returned by Writer.Commit when another commit has
	// interleaved since the writer's base snapshot was taken.
	ErrCommitConflict = errors.New("runtime: commit base snapshot is stale")
)
