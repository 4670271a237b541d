package runtime_test

import (
	"context"
	"testing"

	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/protocol"
	"github.com/graftdb/graft/runtime"
	"github.com/graftdb/graft/splinter"
	"github.com/graftdb/graft/storage"
	"github.com/graftdb/graft/storage/memstore"
	"github.com/stretchr/testify/require"
)

type fakePagestore struct {
	pages map[core.Offset]core.Page
	calls int
}

func (f *fakePagestore) ReadPages(ctx context.Context, vid core.VolumeId, lsn core.LSN, requested *splinter.Splinter) ([]protocol.PageEntry, error) {
	f.calls++
	var out []protocol.PageEntry
	requested.Iter(func(offset uint32) bool {
		out = append(out, protocol.PageEntry{Offset: core.Offset(offset), Page: f.pages[core.Offset(offset)]})
		return true
	})
	return out, nil
}

// Read-paging cut: segment A covers {0,1,2}, segment B covers {3,4};
// requesting {0..=4} must load both segments exactly once and return all
// five pages.
func TestFetchOffsetsSplitsAcrossSegments(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	vid := core.NewVolumeId()

	segA := splinter.FromSlice([]uint32{0, 1, 2})
	segB := splinter.FromSlice([]uint32{3, 4})

	var batch storage.Batch
	storage.StageSegment(&batch, vid, 1, core.NewSegmentId(), segA)
	storage.StageSegment(&batch, vid, 2, core.NewSegmentId(), segB)
	require.NoError(t, store.Write(ctx, batch))

	backing := &fakePagestore{pages: map[core.Offset]core.Page{
		0: core.Fill(0), 1: core.Fill(1), 2: core.Fill(2), 3: core.Fill(3), 4: core.Fill(4),
	}}
	fetcher := runtime.NewPagestoreFetcher(store, backing)

	requested := splinter.FromSlice([]uint32{0, 1, 2, 3, 4})
	pages, err := fetcher.FetchOffsets(ctx, vid, 2, requested)
	require.NoError(t, err)
	require.Len(t, pages, 5)
	for off := uint32(0); off <= 4; off++ {
		require.Equal(t, core.Fill(byte(off)), pages[core.Offset(off)])
	}
	require.Equal(t, 2, backing.calls)
}

func TestFetchOffsetsStopsOnceSatisfied(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	vid := core.NewVolumeId()

	segNewest := splinter.FromSlice([]uint32{0})
	segOldest := splinter.FromSlice([]uint32{0, 1})

	var batch storage.Batch
	storage.StageSegment(&batch, vid, 1, core.NewSegmentId(), segOldest)
	storage.StageSegment(&batch, vid, 2, core.NewSegmentId(), segNewest)
	require.NoError(t, store.Write(ctx, batch))

	backing := &fakePagestore{pages: map[core.Offset]core.Page{0: core.Fill(9)}}
	fetcher := runtime.NewPagestoreFetcher(store, backing)

	requested := splinter.FromSlice([]uint32{0})
	pages, err := fetcher.FetchOffsets(ctx, vid, 2, requested)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	// Only the newest segment (lsn 2) should have been consulted, since it
	// alone already satisfies the request.
	require.Equal(t, 1, backing.calls)
}
