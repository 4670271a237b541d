package syncer_test

import (
	"context"
	"testing"

	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/protocol"
	"github.com/graftdb/graft/runtime"
	"github.com/graftdb/graft/splinter"
	"github.com/graftdb/graft/storage"
	"github.com/graftdb/graft/storage/memstore"
	"github.com/graftdb/graft/syncer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func splinterFromSlice(offsets []uint32) *splinter.Splinter {
	return splinter.FromSlice(offsets)
}

// fakeMetastore is an in-memory stand-in for client.MetastoreClient, enough
// to exercise the pull and push phases' happy and unhappy paths.
type fakeMetastore struct {
	snapshot *protocol.RemoteSnapshot
	commits  []protocol.Commit

	commitErr  error
	commitCall func(base protocol.RemoteSnapshot, segments []protocol.SegmentOffsets) (*protocol.RemoteSnapshot, error)
}

func (f *fakeMetastore) Snapshot(ctx context.Context, vid core.VolumeId, lsn *core.LSN) (*protocol.RemoteSnapshot, error) {
	return f.snapshot, nil
}

func (f *fakeMetastore) PullCommits(ctx context.Context, vid core.VolumeId, rng protocol.LsnRange) ([]protocol.Commit, error) {
	var out []protocol.Commit
	for _, c := range f.commits {
		if rng.Contains(c.Meta.LSN, core.LSNZero) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeMetastore) Commit(ctx context.Context, vid core.VolumeId, base protocol.RemoteSnapshot, segments []protocol.SegmentOffsets) (*protocol.RemoteSnapshot, error) {
	if f.commitCall != nil {
		return f.commitCall(base, segments)
	}
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	snap := &protocol.RemoteSnapshot{VolumeId: vid, LSN: base.LSN + 1, CheckpointLSN: base.CheckpointLSN, Pages: base.Pages}
	f.snapshot = snap
	return snap, nil
}

// fakePagestore is a stand-in for client.PagestoreClient's write path.
type fakePagestore struct {
	writes [][]protocol.PageWrite
}

func (f *fakePagestore) WritePages(ctx context.Context, vid core.VolumeId, pages []protocol.PageWrite) ([]protocol.SegmentOffsets, error) {
	f.writes = append(f.writes, pages)
	offsets := make([]uint32, 0, len(pages))
	for _, p := range pages {
		offsets = append(offsets, uint32(p.PageIdx.Offset()))
	}
	sp := splinterFromSlice(offsets)
	return []protocol.SegmentOffsets{{SID: core.NewSegmentId(), Offsets: sp}}, nil
}

func TestPushUploadsDirtyPagesAndAdvancesRemote(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	vid := core.NewVolumeId()

	handle := runtime.NewHandle(store, vid, nil)
	require.NoError(t, handle.SetConfig(ctx, storage.VolumeConfig{Sync: storage.SyncPush}))

	base, err := handle.Snapshot(ctx)
	require.NoError(t, err)
	w := handle.WriterAt(base)
	require.NoError(t, w.Write(1, core.Fill(0x11)))
	require.NoError(t, w.Write(2, core.Fill(0x22)))
	_, err = w.Commit(ctx)
	require.NoError(t, err)

	meta := &fakeMetastore{snapshot: &protocol.RemoteSnapshot{VolumeId: vid}}
	pages := &fakePagestore{}
	task := syncer.NewTask(store, meta, pages, syncer.Config{}, syncer.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, task.SyncOnce(ctx))

	require.Len(t, pages.writes, 1)
	require.Len(t, pages.writes[0], 2)

	snap, err := handle.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Remote)
	require.Equal(t, core.LSN(1), snap.Remote.LocalLSN)

	status, err := handle.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, storage.StatusOk, status)
}

func TestPushCoalescesMultipleLocalCommits(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	vid := core.NewVolumeId()

	handle := runtime.NewHandle(store, vid, nil)
	require.NoError(t, handle.SetConfig(ctx, storage.VolumeConfig{Sync: storage.SyncPush}))

	for i := 1; i <= 3; i++ {
		snap, err := handle.Snapshot(ctx)
		require.NoError(t, err)
		w := handle.WriterAt(snap)
		require.NoError(t, w.Write(core.PageIdx(i), core.Fill(byte(i))))
		_, err = w.Commit(ctx)
		require.NoError(t, err)
	}

	meta := &fakeMetastore{snapshot: &protocol.RemoteSnapshot{VolumeId: vid}}
	pages := &fakePagestore{}
	task := syncer.NewTask(store, meta, pages, syncer.Config{}, syncer.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, task.SyncOnce(ctx))

	// One upload covering all three commits' dirty pages.
	require.Len(t, pages.writes, 1)
	require.Len(t, pages.writes[0], 3)

	snap, err := handle.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Remote)
	require.Equal(t, core.LSN(3), snap.Remote.LocalLSN)

	wm, err := handle.Watermarks(ctx)
	require.NoError(t, err)
	require.Equal(t, core.LSN(3), wm.PendingSync.LSN())
}

func TestPullAppliesRemoteCommitsInOrder(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	vid := core.NewVolumeId()

	handle := runtime.NewHandle(store, vid, nil)
	require.NoError(t, handle.SetConfig(ctx, storage.VolumeConfig{Sync: storage.SyncPull}))

	var commits []protocol.Commit
	for lsn := core.LSN(1); lsn <= 3; lsn++ {
		commits = append(commits, protocol.Commit{
			VolumeId: vid,
			Meta:     protocol.CommitMeta{LSN: lsn, LastOffset: core.Offset(lsn - 1)},
			Segments: []protocol.SegmentOffsets{
				{SID: core.NewSegmentId(), Offsets: splinterFromSlice([]uint32{uint32(lsn - 1)})},
			},
		})
	}
	meta := &fakeMetastore{
		snapshot: &protocol.RemoteSnapshot{VolumeId: vid, LSN: 3},
		commits:  commits,
	}
	task := syncer.NewTask(store, meta, &fakePagestore{}, syncer.Config{}, syncer.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, task.SyncOnce(ctx))

	snap, err := handle.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Remote)
	require.Equal(t, core.LSN(3), snap.Remote.RemoteLSN)
	require.Equal(t, core.PageCount(3), snap.Pages)

	entries, err := storage.SegmentsAtOrBefore(ctx, store, vid, snap.LocalLSN)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	status, err := handle.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, storage.StatusOk, status)
}

func TestPullConflictMarksVolumeConflicted(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	vid := core.NewVolumeId()

	handle := runtime.NewHandle(store, vid, nil)
	require.NoError(t, handle.SetConfig(ctx, storage.VolumeConfig{Sync: storage.SyncPull}))

	base, err := handle.Snapshot(ctx)
	require.NoError(t, err)
	w := handle.WriterAt(base)
	require.NoError(t, w.Write(3, core.Fill(0x33)))
	_, err = w.Commit(ctx)
	require.NoError(t, err)

	remoteCommit := protocol.Commit{
		VolumeId: vid,
		Meta:     protocol.CommitMeta{LSN: 1},
		Segments: []protocol.SegmentOffsets{{SID: core.NewSegmentId(), Offsets: splinterFromSlice([]uint32{uint32(core.PageIdx(3).Offset())})}},
	}
	meta := &fakeMetastore{
		snapshot: &protocol.RemoteSnapshot{VolumeId: vid, LSN: 1},
		commits:  []protocol.Commit{remoteCommit},
	}
	pages := &fakePagestore{}
	task := syncer.NewTask(store, meta, pages, syncer.Config{}, syncer.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, task.SyncOnce(ctx))

	status, err := handle.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, storage.StatusConflict, status)
}

func TestSyncOnceSkipsDisabledVolumes(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	vid := core.NewVolumeId()

	handle := runtime.NewHandle(store, vid, nil)
	require.NoError(t, handle.SetConfig(ctx, storage.VolumeConfig{Sync: storage.SyncDisabled}))

	meta := &fakeMetastore{}
	pages := &fakePagestore{}
	task := syncer.NewTask(store, meta, pages, syncer.Config{}, syncer.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, task.SyncOnce(ctx))
	require.Empty(t, pages.writes)
}
