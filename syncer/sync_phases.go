package syncer

import (
	"context"
	"fmt"

	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/protocol"
	"github.com/graftdb/graft/splinter"
	"github.com/graftdb/graft/storage"
)

// pull fetches and applies remote commits the volume hasn't seen yet: it
// checks the remote snapshot's LSN against the locally-recorded remote
// mapping, pulls any newer commits, and applies each in turn, flagging a
// conflict (without losing already-applied commits) the moment one
// intersects a locally-dirty, not-yet-pushed offset.
func (t *Task) pull(ctx context.Context, vs storage.VolumeState) error {
	remote, err := t.metastore.Snapshot(ctx, vs.VolumeId, nil)
	if err != nil {
		t.metrics.PullsTotal.WithLabelValues(vs.VolumeId.String(), "error").Inc()
		return fmt.Errorf("syncer: pull snapshot: %w", err)
	}
	lastRemote := core.LSNZero
	if vs.Snapshot.Remote != nil {
		lastRemote = vs.Snapshot.Remote.RemoteLSN
	}
	if remote == nil || remote.LSN <= lastRemote {
		t.metrics.PullsTotal.WithLabelValues(vs.VolumeId.String(), "noop").Inc()
		return nil
	}

	rng := protocol.LsnRange{Start: protocol.Excluded(lastRemote), End: protocol.Unbounded()}
	commits, err := t.metastore.PullCommits(ctx, vs.VolumeId, rng)
	if err != nil {
		t.metrics.PullsTotal.WithLabelValues(vs.VolumeId.String(), "error").Inc()
		return fmt.Errorf("syncer: pull commits: %w", err)
	}

	dirty, err := t.localDirtyOffsets(ctx, vs)
	if err != nil {
		return fmt.Errorf("syncer: computing local dirty offsets: %w", err)
	}

	var batch storage.Batch
	conflicted := false
	applied := vs.Snapshot
	for _, commit := range commits {
		if conflicted {
			break
		}
		touched := splinter.New()
		for _, seg := range commit.Segments {
			touched = touched.Union(seg.Offsets)
		}
		if intersects(dirty, touched) {
			conflicted = true
			break
		}

		var idxs []core.PageIdx
		touched.Iter(func(offset uint32) bool {
			idxs = append(idxs, core.Offset(offset).PageIdx())
			return true
		})
		if err := storage.InvalidatePages(ctx, t.store, &batch, vs.VolumeId, idxs); err != nil {
			return fmt.Errorf("syncer: invalidating pages: %w", err)
		}
		for _, seg := range commit.Segments {
			storage.StageSegment(&batch, vs.VolumeId, commit.Meta.LSN, seg.SID, seg.Offsets)
		}

		if commit.Meta.LSN > applied.LocalLSN {
			applied.LocalLSN = commit.Meta.LSN
		}
		applied.Remote = &storage.RemoteMapping{RemoteLSN: commit.Meta.LSN, LocalLSN: applied.LocalLSN}
		applied.Pages = core.PageCount(commit.Meta.LastOffset) + 1
	}

	if applied.Remote != nil && (vs.Snapshot.Remote == nil || *applied.Remote != *vs.Snapshot.Remote) {
		batch.Put(storage.VolumeStateKey(vs.VolumeId, storage.TagSnapshot), applied.Marshal())
	}

	// Status is sticky once non-Ok: a clean pull never resets it, only an
	// explicit operator action does.
	if conflicted {
		t.metrics.ConflictsTotal.Inc()
		if vs.Status != storage.StatusConflict {
			batch.Put(storage.VolumeStateKey(vs.VolumeId, storage.TagStatus), storage.StatusConflict.Marshal())
		}
	}

	if batch.IsEmpty() {
		t.metrics.PullsTotal.WithLabelValues(vs.VolumeId.String(), "noop").Inc()
		return nil
	}
	if err := t.store.Write(ctx, batch); err != nil {
		return fmt.Errorf("syncer: applying pulled commits: %w", err)
	}

	result := "ok"
	if conflicted {
		result = "conflict"
	}
	t.metrics.PullsTotal.WithLabelValues(vs.VolumeId.String(), result).Inc()
	volumeLog(vs.VolumeId).WithField("result", result).Debug("pull phase complete")
	return nil
}

// push uploads locally-committed, not-yet-pushed pages and advances the
// remote mapping. It is at-least-once: re-driving after a crash re-uploads
// the same dirty offsets and re-submits the same pending-sync snapshot,
// which the metastore either accepts idempotently or rejects.
func (t *Task) push(ctx context.Context, vs storage.VolumeState) error {
	if vs.Status != storage.StatusOk {
		volumeLog(vs.VolumeId).WithField("status", vs.Status).Debug("push phase skipped: volume not Ok")
		return nil
	}
	target := vs.Snapshot.LocalLSN
	if !vs.Watermarks.PendingSync.IsMapped() || vs.Watermarks.PendingSync.LSN() < target {
		var batch storage.Batch
		wm := vs.Watermarks
		wm.PendingSync = core.MappedWatermark(target, vs.Snapshot.Pages)
		batch.Put(storage.VolumeStateKey(vs.VolumeId, storage.TagWatermarks), wm.Marshal())
		if err := t.store.Write(ctx, batch); err != nil {
			return fmt.Errorf("syncer: advancing pending_sync watermark: %w", err)
		}
		vs.Watermarks = wm
	}

	lastPushed := vs.Snapshot.RemoteMappingLocalLSN()
	if target <= lastPushed {
		t.metrics.PushesTotal.WithLabelValues(vs.VolumeId.String(), "noop").Inc()
		return nil
	}

	dirty, err := t.localDirtyOffsets(ctx, vs)
	if err != nil {
		return fmt.Errorf("syncer: computing push offsets: %w", err)
	}
	if dirty.IsEmpty() {
		t.metrics.PushesTotal.WithLabelValues(vs.VolumeId.String(), "noop").Inc()
		return nil
	}

	pages := make([]protocol.PageWrite, 0, dirty.Cardinality())
	var readErr error
	dirty.Iter(func(offset uint32) bool {
		idx := core.Offset(offset).PageIdx()
		page, ok, err := storage.ReadPage(ctx, t.store, vs.VolumeId, idx, target)
		if err != nil {
			readErr = err
			return false
		}
		if !ok {
			readErr = fmt.Errorf("syncer: page %d missing locally at lsn %s", idx, target)
			return false
		}
		pages = append(pages, protocol.PageWrite{PageIdx: idx, Page: page})
		return true
	})
	if readErr != nil {
		return readErr
	}

	segments, err := t.pagestore.WritePages(ctx, vs.VolumeId, pages)
	if err != nil {
		t.metrics.PushesTotal.WithLabelValues(vs.VolumeId.String(), "error").Inc()
		return fmt.Errorf("syncer: writing pages: %w", err)
	}

	pending := protocol.RemoteSnapshot{
		VolumeId:      vs.VolumeId,
		LSN:           vs.Watermarks.PendingSync.LSN(),
		CheckpointLSN: vs.Watermarks.Checkpoint.LSN(),
		Pages:         vs.Watermarks.PendingSync.Pages(),
	}
	newRemote, err := t.metastore.Commit(ctx, vs.VolumeId, pending, segments)
	var batch storage.Batch
	switch {
	case err == nil:
		newSnapshot := vs.Snapshot
		newSnapshot.Remote = &storage.RemoteMapping{RemoteLSN: newRemote.LSN, LocalLSN: target}
		batch.Put(storage.VolumeStateKey(vs.VolumeId, storage.TagSnapshot), newSnapshot.Marshal())

		// The server reports its checkpoint with every accepted commit; once
		// it covers the commit just pushed, this local LSN is known to be
		// checkpointed.
		if newRemote.CheckpointLSN >= newRemote.LSN {
			wm := vs.Watermarks
			wm.Checkpoint = core.MappedWatermark(target, vs.Snapshot.Pages)
			batch.Put(storage.VolumeStateKey(vs.VolumeId, storage.TagWatermarks), wm.Marshal())
		}

		// Index the server-assigned segments at the pushed LSN so subsequent
		// reads and pulls see where these pages now live remotely.
		for _, seg := range segments {
			storage.StageSegment(&batch, vs.VolumeId, target, seg.SID, seg.Offsets)
		}

		if err := t.store.Write(ctx, batch); err != nil {
			return fmt.Errorf("syncer: recording pushed commit: %w", err)
		}
		t.metrics.PushesTotal.WithLabelValues(vs.VolumeId.String(), "ok").Inc()
		volumeLog(vs.VolumeId).WithField("local_lsn", target).Debug("push phase complete")
		return nil

	case protocol.IsCommitRejected(err):
		batch.Put(storage.VolumeStateKey(vs.VolumeId, storage.TagStatus), storage.StatusRejectedCommit.Marshal())
		if werr := t.store.Write(ctx, batch); werr != nil {
			return fmt.Errorf("syncer: recording rejected commit: %w", werr)
		}
		t.metrics.PushesTotal.WithLabelValues(vs.VolumeId.String(), "rejected").Inc()
		return nil

	case protocol.IsSnapshotMissing(err):
		batch.Put(storage.VolumeStateKey(vs.VolumeId, storage.TagStatus), storage.StatusInterruptedPush.Marshal())
		if werr := t.store.Write(ctx, batch); werr != nil {
			return fmt.Errorf("syncer: recording interrupted push: %w", werr)
		}
		t.metrics.PushesTotal.WithLabelValues(vs.VolumeId.String(), "interrupted").Inc()
		return nil

	default:
		t.metrics.PushesTotal.WithLabelValues(vs.VolumeId.String(), "error").Inc()
		return fmt.Errorf("syncer: commit: %w", err)
	}
}

// intersects reports whether a and b share any offset.
func intersects(a, b *splinter.Splinter) bool {
	hit := false
	a.Iter(func(offset uint32) bool {
		if b.Contains(offset) {
			hit = true
			return false
		}
		return true
	})
	return hit
}
