package runtime

import (
	"context"
	"errors"

	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/storage"
	log "github.com/sirupsen/logrus"
)

// Handle is the per-volume façade: it owns the right to read the latest
// persisted snapshot and to admit a single writer at a time. The vfs package
// is responsible for actually
// serializing writer admission across threads; Handle itself only enforces
// the base-snapshot conflict check at commit time.
type Handle struct {
	store   storage.Store
	vid     core.VolumeId
	fetcher Fetcher
}

// NewHandle returns a Handle over store for volume vid. fetcher may be nil,
// in which case reads that miss the local store fail with
// ErrPageUnavailable instead of consulting a remote service.
func NewHandle(store storage.Store, vid core.VolumeId, fetcher Fetcher) *Handle {
	return &Handle{store: store, vid: vid, fetcher: fetcher}
}

func (h *Handle) VolumeId() core.VolumeId {
	return h.vid
}

func (h *Handle) log() *log.Entry {
	return log.WithField("vid", h.vid.String())
}

// Snapshot returns the latest persisted snapshot for this volume, or the
// zero-value Snapshot (LocalLSN = core.LSNZero, Pages = 0) if the volume has
// never committed.
func (h *Handle) Snapshot(ctx context.Context) (storage.Snapshot, error) {
	val, err := h.store.Get(ctx, storage.VolumeStateKey(h.vid, storage.TagSnapshot))
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Snapshot{}, nil
	}
	if err != nil {
		return storage.Snapshot{}, err
	}
	return storage.UnmarshalSnapshot(val)
}

// Config returns the volume's persisted sync configuration, defaulting to
// SyncDisabled if none has ever been written.
func (h *Handle) Config(ctx context.Context) (storage.VolumeConfig, error) {
	val, err := h.store.Get(ctx, storage.VolumeStateKey(h.vid, storage.TagConfig))
	if errors.Is(err, storage.ErrNotFound) {
		return storage.VolumeConfig{Sync: storage.SyncDisabled}, nil
	}
	if err != nil {
		return storage.VolumeConfig{}, err
	}
	return storage.UnmarshalVolumeConfig(val)
}

// SetConfig persists cfg for this volume.
func (h *Handle) SetConfig(ctx context.Context, cfg storage.VolumeConfig) error {
	var batch storage.Batch
	batch.Put(storage.VolumeStateKey(h.vid, storage.TagConfig), cfg.Marshal())
	return h.store.Write(ctx, batch)
}

// Status returns the volume's sticky status record.
func (h *Handle) Status(ctx context.Context) (storage.VolumeStatus, error) {
	val, err := h.store.Get(ctx, storage.VolumeStateKey(h.vid, storage.TagStatus))
	if errors.Is(err, storage.ErrNotFound) {
		return storage.StatusOk, nil
	}
	if err != nil {
		return 0, err
	}
	return storage.UnmarshalVolumeStatus(val)
}

// Watermarks returns the volume's persisted sync watermarks, defaulting to
// both-unmapped if none have ever been written.
func (h *Handle) Watermarks(ctx context.Context) (storage.Watermarks, error) {
	val, err := h.store.Get(ctx, storage.VolumeStateKey(h.vid, storage.TagWatermarks))
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Watermarks{}, nil
	}
	if err != nil {
		return storage.Watermarks{}, err
	}
	return storage.UnmarshalWatermarks(val)
}

// Reader opens a read transaction at the latest persisted snapshot.
func (h *Handle) Reader(ctx context.Context) (*Reader, error) {
	snap, err := h.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &Reader{handle: h, snapshot: snap}, nil
}

// ReaderAt opens a read transaction pinned to an already-captured snapshot,
// used by the VFS layer to re-expose a reader after a commit without an
// extra round trip to storage.
func (h *Handle) ReaderAt(snapshot storage.Snapshot) *Reader {
	return &Reader{handle: h, snapshot: snapshot}
}

// WriterAt opens a copy-on-write overlay atop the caller-supplied base
// snapshot. Reads within the writer serve from the overlay first.
func (h *Handle) WriterAt(base storage.Snapshot) *Writer {
	return &Writer{
		handle:  h,
		base:    base,
		pages:   base.Pages,
		overlay: make(map[core.PageIdx]core.Page),
	}
}
