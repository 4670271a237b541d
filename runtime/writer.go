package runtime

import (
	"context"
	"time"

	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/splinter"
	"github.com/graftdb/graft/storage"
	log "github.com/sirupsen/logrus"
)

// Writer exclusively owns an overlay of dirty pages atop a base snapshot. It
// must either Commit or be discarded; nothing about a Writer is persisted
// until Commit succeeds.
type Writer struct {
	handle  *Handle
	base    storage.Snapshot
	pages   core.PageCount
	overlay map[core.PageIdx]core.Page
}

// Read serves from the overlay first, falling back to the base snapshot's
// read-through path.
func (w *Writer) Read(ctx context.Context, oracle Oracle, pageIdx core.PageIdx) (core.Page, error) {
	if page, ok := w.overlay[pageIdx]; ok {
		return page, nil
	}
	if !w.pages.Contains(pageIdx) {
		return core.Page{}, ErrPageOutOfRange
	}
	return readThrough(ctx, w.handle, oracle, w.base.LocalLSN, pageIdx)
}

// Write stages page into the overlay at pageIdx. There is no gap
// enforcement at write time: writing page 5 of an empty volume
// is legal and simply extends Pages() to 5.
func (w *Writer) Write(pageIdx core.PageIdx, page core.Page) error {
	if pageIdx < 1 {
		return ErrPageOutOfRange
	}
	w.overlay[pageIdx] = page
	if count := core.PageCount(pageIdx); count > w.pages {
		w.pages = count
	}
	return nil
}

// Truncate marks the volume's new size. Pages with index greater than pages
// are logically deleted on commit.
func (w *Writer) Truncate(pages core.PageCount) {
	w.pages = pages
	for idx := range w.overlay {
		if !pages.Contains(idx) {
			delete(w.overlay, idx)
		}
	}
}

// Pages returns the overlay-adjusted page count.
func (w *Writer) Pages() core.PageCount {
	return w.pages
}

// Commit atomically assigns the next local LSN, persists every overlay page
// under that LSN, persists the updated Snapshot, and — iff the volume's sync
// direction pushes — advances Watermarks.PendingSync.
// It fails with ErrCommitConflict if another commit has
// interleaved since base was captured.
func (w *Writer) Commit(ctx context.Context) (*Reader, error) {
	current, err := w.handle.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if current.LocalLSN != w.base.LocalLSN {
		return nil, ErrCommitConflict
	}

	cfg, err := w.handle.Config(ctx)
	if err != nil {
		return nil, err
	}

	newLSN := w.base.LocalLSN.Next()
	var batch storage.Batch
	dirty := splinter.New()
	for idx, page := range w.overlay {
		storage.StagePage(&batch, w.handle.vid, idx, newLSN, page)
		dirty.Insert(uint32(idx.Offset()))
	}

	// Record this commit's dirty offsets under the zero-value SegmentId as a
	// local-origin placeholder. A completed push later adds the real
	// server-assigned segment entry alongside it; the syncer scans these
	// placeholders to find locally-dirty offsets it has not yet pushed
	// upstream.
	storage.StageSegment(&batch, w.handle.vid, newLSN, core.SegmentId{}, dirty)

	newSnapshot := storage.Snapshot{
		LocalLSN:  newLSN,
		Remote:    w.base.Remote,
		Pages:     w.pages,
		Timestamp: time.Now().UTC(),
	}
	batch.Put(storage.VolumeStateKey(w.handle.vid, storage.TagSnapshot), newSnapshot.Marshal())

	if cfg.Sync.ShouldPush() {
		wm, err := w.handle.Watermarks(ctx)
		if err != nil {
			return nil, err
		}
		wm.PendingSync = core.MappedWatermark(newLSN, w.pages)
		batch.Put(storage.VolumeStateKey(w.handle.vid, storage.TagWatermarks), wm.Marshal())
	}

	if err := w.handle.store.Write(ctx, batch); err != nil {
		return nil, err
	}

	w.handle.log().WithFields(log.Fields{
		"local_lsn": newLSN,
		"pages":     w.pages,
	}).Debug("committed volume writer")

	return &Reader{handle: w.handle, snapshot: newSnapshot}, nil
}
