package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/protocol"
	"github.com/graftdb/graft/splinter"
	"github.com/graftdb/graft/storage"
)

// PagestoreClient is the subset of client.PagestoreClient the Fetcher needs,
// narrowed to an interface so tests can substitute a fake.
type PagestoreClient interface {
	ReadPages(ctx context.Context, vid core.VolumeId, lsn core.LSN, requested *splinter.Splinter) ([]protocol.PageEntry, error)
}

// PagestoreFetcher is the concrete Fetcher implementing the read-paging
// algorithm: scan the local segment catalog newest-first,
// dispatch one concurrent pagestore load per segment that can satisfy part
// of the outstanding request, and stop as soon as the request is fully
// covered.
type PagestoreFetcher struct {
	store     storage.Store
	pagestore PagestoreClient
}

func NewPagestoreFetcher(store storage.Store, pagestore PagestoreClient) *PagestoreFetcher {
	return &PagestoreFetcher{store: store, pagestore: pagestore}
}

var _ Fetcher = (*PagestoreFetcher)(nil)

// Fetch implements Fetcher by running the read-paging algorithm for a single
// requested page (plus any Oracle-hinted prefetch pages) and returning the
// one page the caller actually asked for.
func (f *PagestoreFetcher) Fetch(ctx context.Context, oracle Oracle, vid core.VolumeId, atLSN core.LSN, pageIdx core.PageIdx) (core.Page, error) {
	requested := splinter.New()
	requested.Insert(uint32(pageIdx.Offset()))
	for _, hint := range oracle.Prefetch {
		requested.Insert(uint32(hint.Offset()))
	}

	pages, err := f.FetchOffsets(ctx, vid, atLSN, requested)
	if err != nil {
		return core.Page{}, err
	}
	page, ok := pages[pageIdx.Offset()]
	if !ok {
		return core.Page{}, fmt.Errorf("runtime: pagestore did not return requested offset %d", pageIdx.Offset())
	}
	return page, nil
}

// FetchOffsets runs the read-paging algorithm for an arbitrary
// set of requested offsets and returns every page found, keyed by offset.
func (f *PagestoreFetcher) FetchOffsets(ctx context.Context, vid core.VolumeId, atLSN core.LSN, requested *splinter.Splinter) (map[core.Offset]core.Page, error) {
	entries, err := storage.SegmentsAtOrBefore(ctx, f.store, vid, atLSN)
	if err != nil {
		return nil, err
	}

	type segmentLoad struct {
		lsn core.LSN
		cut *splinter.Splinter
	}
	var loads []segmentLoad
	for _, entry := range entries {
		if requested.IsEmpty() {
			break // request fully covered, stop scanning
		}
		cut := requested.Cut(entry.Offsets)
		if cut.IsEmpty() {
			continue
		}
		loads = append(loads, segmentLoad{lsn: entry.LSN, cut: cut})
	}

	results := make(map[core.Offset]core.Page, requested.Cardinality())
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	for _, load := range loads {
		wg.Add(1)
		go func(load segmentLoad) {
			defer wg.Done()
			pageEntries, err := f.pagestore.ReadPages(ctx, vid, load.lsn, load.cut)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}

			found := make(map[core.Offset]core.Page, len(pageEntries))
			for _, pe := range pageEntries {
				found[pe.Offset] = pe.Page
			}
			// Every offset in the cut must be present in the loaded segment.
			// Absence means the local segment index points at a segment that
			// no longer has the page it promised: a corrupt index.
			load.cut.Iter(func(offset uint32) bool {
				if _, ok := found[core.Offset(offset)]; !ok {
					panic(fmt.Sprintf("runtime: segment index corrupt: offset %d missing from segment at lsn %s", offset, load.lsn))
				}
				return true
			})

			mu.Lock()
			for off, page := range found {
				results[off] = page
			}
			mu.Unlock()
		}(load)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
