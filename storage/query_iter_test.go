package storage_test

import (
	"context"
	"testing"

	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/storage"
	"github.com/graftdb/graft/storage/memstore"
	"github.com/stretchr/testify/require"
)

func putVolumeState(t *testing.T, store storage.Store, vid core.VolumeId, vs storage.VolumeState) {
	t.Helper()
	var batch storage.Batch
	batch.Put(storage.VolumeStateKey(vid, storage.TagConfig), vs.Config.Marshal())
	batch.Put(storage.VolumeStateKey(vid, storage.TagStatus), vs.Status.Marshal())
	batch.Put(storage.VolumeStateKey(vid, storage.TagSnapshot), vs.Snapshot.Marshal())
	batch.Put(storage.VolumeStateKey(vid, storage.TagWatermarks), vs.Watermarks.Marshal())
	require.NoError(t, store.Write(context.Background(), batch))
}

func TestVolumeQueryIterYieldsOnePerVolumeAscending(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	var vids []core.VolumeId
	for i := 0; i < 5; i++ {
		vids = append(vids, core.NewVolumeId())
	}

	for _, vid := range vids {
		putVolumeState(t, store, vid, storage.VolumeState{
			Config:   storage.VolumeConfig{Sync: storage.SyncBoth},
			Snapshot: storage.Snapshot{LocalLSN: 1},
		})
	}

	it, err := storage.NewVolumeQueryIter(ctx, store)
	require.NoError(t, err)

	seen := map[core.VolumeId]int{}
	var last *core.VolumeId
	for {
		vs, ok := it.Next()
		if !ok {
			break
		}
		seen[vs.VolumeId]++
		if last != nil {
			require.Less(t, last.String(), vs.VolumeId.String(), "iterator must yield ascending vid order")
		}
		id := vs.VolumeId
		last = &id
		require.Equal(t, storage.SyncBoth, vs.Config.Sync)
	}
	require.NoError(t, it.Err())
	require.Len(t, seen, len(vids))
	for _, count := range seen {
		require.Equal(t, 1, count, "each vid must be yielded exactly once")
	}

	// Fused: further calls keep returning false.
	_, ok := it.Next()
	require.False(t, ok)
	_, ok = it.Next()
	require.False(t, ok)
}

func TestVolumeQueryIterEmptyStore(t *testing.T) {
	it, err := storage.NewVolumeQueryIter(context.Background(), memstore.New())
	require.NoError(t, err)
	_, ok := it.Next()
	require.False(t, ok)
}
