package syncer

import (
	"context"

	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/protocol"
)

// MetastoreClient is the subset of client.MetastoreClient the sync task
// needs, narrowed to an interface so tests can substitute a fake metastore.
type MetastoreClient interface {
	Snapshot(ctx context.Context, vid core.VolumeId, lsn *core.LSN) (*protocol.RemoteSnapshot, error)
	PullCommits(ctx context.Context, vid core.VolumeId, rng protocol.LsnRange) ([]protocol.Commit, error)
	Commit(ctx context.Context, vid core.VolumeId, snapshot protocol.RemoteSnapshot, segments []protocol.SegmentOffsets) (*protocol.RemoteSnapshot, error)
}

// PagestoreClient is the subset of client.PagestoreClient the push phase
// needs.
type PagestoreClient interface {
	WritePages(ctx context.Context, vid core.VolumeId, pages []protocol.PageWrite) ([]protocol.SegmentOffsets, error)
}
