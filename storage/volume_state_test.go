package storage_test

import (
	"testing"
	"time"

	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/storage"
	"github.com/stretchr/testify/require"
)

func TestSyncDirectionMatches(t *testing.T) {
	require.True(t, storage.SyncDisabled.Matches(storage.SyncDisabled))
	require.False(t, storage.SyncDisabled.Matches(storage.SyncPush))
	require.False(t, storage.SyncDisabled.Matches(storage.SyncBoth))

	require.True(t, storage.SyncBoth.Matches(storage.SyncPush))
	require.True(t, storage.SyncBoth.Matches(storage.SyncPull))
	require.True(t, storage.SyncBoth.Matches(storage.SyncBoth))
	require.False(t, storage.SyncBoth.Matches(storage.SyncDisabled))

	require.True(t, storage.SyncPush.Matches(storage.SyncPush))
	require.False(t, storage.SyncPush.Matches(storage.SyncPull))

	// Symmetry.
	dirs := []storage.SyncDirection{storage.SyncDisabled, storage.SyncPush, storage.SyncPull, storage.SyncBoth}
	for _, a := range dirs {
		for _, b := range dirs {
			require.Equal(t, a.Matches(b), b.Matches(a), "matches(%v,%v) not symmetric", a, b)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := storage.Snapshot{
		LocalLSN:  10,
		Remote:    &storage.RemoteMapping{RemoteLSN: 7, LocalLSN: 8},
		Pages:     3,
		Timestamp: time.UnixMilli(1700000000000).UTC(),
	}
	got, err := storage.UnmarshalSnapshot(s.Marshal())
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestSnapshotRejectsRemoteMappingAheadOfLocal(t *testing.T) {
	bad := storage.Snapshot{
		LocalLSN: 1,
		Remote:   &storage.RemoteMapping{RemoteLSN: 5, LocalLSN: 5},
	}
	require.Error(t, bad.Validate())
}

func TestWatermarksRoundTrip(t *testing.T) {
	w := storage.Watermarks{
		PendingSync: core.MappedWatermark(3, 9),
		Checkpoint:  core.UnmappedWatermark,
	}
	got, err := storage.UnmarshalWatermarks(w.Marshal())
	require.NoError(t, err)
	require.Equal(t, w, got)
}

func TestVolumeConfigRoundTrip(t *testing.T) {
	c := storage.VolumeConfig{Sync: storage.SyncBoth}
	got, err := storage.UnmarshalVolumeConfig(c.Marshal())
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestVolumeStateDerivedPredicates(t *testing.T) {
	vs := storage.VolumeState{
		Snapshot: storage.Snapshot{
			LocalLSN: 10,
			Remote:   &storage.RemoteMapping{RemoteLSN: 4, LocalLSN: 6},
		},
		Watermarks: storage.Watermarks{
			PendingSync: core.MappedWatermark(9, 9),
		},
	}
	require.True(t, vs.HasPendingCommits()) // remote.local(6) < local_lsn(10)
	require.True(t, vs.IsSyncing())         // pending_sync.lsn(9) > remote.local(6)

	vs.Snapshot.Remote.LocalLSN = 9
	require.True(t, vs.HasPendingCommits())
	require.False(t, vs.IsSyncing())
}
