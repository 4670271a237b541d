package runtime

import (
	"context"

	"github.com/graftdb/graft/core"
)

// Fetcher is the external page-fetch service consulted when a read misses
// the local store. Implementations typically talk to the pagestore over its
// read-paging protocol; see runtime/pagestore_fetcher.go for the concrete
// implementation wired to client.PagestoreClient.
type Fetcher interface {
	// Fetch returns the content of pageIdx for vid as of atLSN. It is only
	// ever called after a local lookup has already missed.
	Fetch(ctx context.Context, oracle Oracle, vid core.VolumeId, atLSN core.LSN, pageIdx core.PageIdx) (core.Page, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface, mirroring
// http.HandlerFunc — handy for tests that only need to stub one page.
type FetcherFunc func(ctx context.Context, oracle Oracle, vid core.VolumeId, atLSN core.LSN, pageIdx core.PageIdx) (core.Page, error)

func (f FetcherFunc) Fetch(ctx context.Context, oracle Oracle, vid core.VolumeId, atLSN core.LSN, pageIdx core.PageIdx) (core.Page, error) {
	return f(ctx, oracle, vid, atLSN, pageIdx)
}
