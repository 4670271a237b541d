package storage

import (
	"context"
	"fmt"

	"github.com/graftdb/graft/core"
)

// StagePage appends a put for the materialized version of pageIdx written at
// lsn into batch. Callers group every page of a commit into one batch
// together with the updated Snapshot and Watermarks so the write lands
// atomically.
func StagePage(batch *Batch, vid core.VolumeId, pageIdx core.PageIdx, lsn core.LSN, page core.Page) {
	batch.Put(PageKey(vid, pageIdx, lsn), page[:])
}

// ReadPage returns the newest materialized version of pageIdx at or before
// atLSN, or ok=false if no local version exists at or before that LSN.
func ReadPage(ctx context.Context, store Store, vid core.VolumeId, pageIdx core.PageIdx, atLSN core.LSN) (core.Page, bool, error) {
	var (
		page  core.Page
		found bool
	)
	prefix := PageKeyPrefix(vid, pageIdx)
	seek := PageSeekKey(vid, pageIdx, atLSN)
	end := incrementBytes(prefix)

	err := store.Scan(ctx, seek, end, func(key, value []byte) error {
		if len(value) != core.PageSize {
			return fmt.Errorf("storage: page value has unexpected length %d", len(value))
		}
		copy(page[:], value)
		found = true
		return errStopScan
	})
	if err != nil && err != errStopScan {
		return core.Page{}, false, err
	}
	return page, found, nil
}

// InvalidatePages deletes every materialized version of the given page
// indices for vid. Used by pull reconciliation to drop cached pages that a
// newly-applied remote commit has overwritten.
func InvalidatePages(ctx context.Context, store Store, batch *Batch, vid core.VolumeId, indices []core.PageIdx) error {
	for _, idx := range indices {
		prefix := PageKeyPrefix(vid, idx)
		end := incrementBytes(prefix)
		err := store.Scan(ctx, prefix, end, func(key, value []byte) error {
			batch.Delete(append([]byte(nil), key...))
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// errStopScan is a sentinel used internally to end a Scan after the first
// matching row; it is never returned to callers.
var errStopScan = fmt.Errorf("storage: stop scan")
