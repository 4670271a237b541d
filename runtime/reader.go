package runtime

import (
	"context"

	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/storage"
	log "github.com/sirupsen/logrus"
)

// Reader borrows an immutable Snapshot; many readers may coexist against one
// Handle. A reader never observes a write from a later commit; it must be
// reopened via Handle.Reader to do so.
type Reader struct {
	handle   *Handle
	snapshot storage.Snapshot
}

// Snapshot returns the immutable snapshot this reader is pinned to.
func (r *Reader) Snapshot() storage.Snapshot {
	return r.snapshot
}

// Read returns the content of pageIdx at the reader's snapshot. If the page
// is not materialized locally, it consults the configured Fetcher and may
// populate the local page cache.
func (r *Reader) Read(ctx context.Context, oracle Oracle, pageIdx core.PageIdx) (core.Page, error) {
	if !r.snapshot.Pages.Contains(pageIdx) {
		return core.Page{}, ErrPageOutOfRange
	}
	return readThrough(ctx, r.handle, oracle, r.snapshot.LocalLSN, pageIdx)
}

// readThrough is shared by Reader.Read and Writer.Read's base-snapshot
// fallback: look up the newest locally-materialized version at or before
// atLSN, falling back to the Fetcher and opportunistically caching the
// result.
func readThrough(ctx context.Context, h *Handle, oracle Oracle, atLSN core.LSN, pageIdx core.PageIdx) (core.Page, error) {
	page, ok, err := storage.ReadPage(ctx, h.store, h.vid, pageIdx, atLSN)
	if err != nil {
		return core.Page{}, err
	}
	if ok {
		return page, nil
	}
	if h.fetcher == nil {
		return core.Page{}, ErrPageUnavailable
	}
	page, err = h.fetcher.Fetch(ctx, oracle, h.vid, atLSN, pageIdx)
	if err != nil {
		return core.Page{}, err
	}
	var batch storage.Batch
	storage.StagePage(&batch, h.vid, pageIdx, atLSN, page)
	if werr := h.store.Write(ctx, batch); werr != nil {
		log.WithField("vid", h.vid.String()).WithError(werr).Warn("failed to cache fetched page")
	}
	return page, nil
}
