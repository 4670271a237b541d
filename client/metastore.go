package client

import (
	"context"

	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/protocol"
)

// MetastoreClient talks to the remote volume catalog.
type MetastoreClient struct {
	cfg Config
}

func NewMetastoreClient(cfg Config) *MetastoreClient {
	return &MetastoreClient{cfg: cfg}
}

// Snapshot returns the latest remote snapshot if lsn is nil, else the
// snapshot at exactly that lsn. A nil result with a nil error means no such
// volume/lsn exists.
func (c *MetastoreClient) Snapshot(ctx context.Context, vid core.VolumeId, lsn *core.LSN) (*protocol.RemoteSnapshot, error) {
	req := &protocol.SnapshotRequest{VolumeId: vid, LSN: lsn}
	resp := &protocol.SnapshotResponse{}
	if err := postMessage(ctx, c.cfg, "/metastore/v1/snapshot", req, resp); err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Snapshot, nil
}

// PullOffsets streams per-commit page-offset fingerprints for vid across
// rng, without segment payloads.
func (c *MetastoreClient) PullOffsets(ctx context.Context, vid core.VolumeId, rng protocol.LsnRange) ([]protocol.OffsetsEntry, error) {
	req := &protocol.PullOffsetsRequest{VolumeId: vid, Range: rng}
	resp := &protocol.PullOffsetsResponse{}
	if err := postMessage(ctx, c.cfg, "/metastore/v1/pull_offsets", req, resp); err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Entries, nil
}

// PullCommits streams full commit records for vid across rng, following the
// half-open/closed LsnRange semantics.
func (c *MetastoreClient) PullCommits(ctx context.Context, vid core.VolumeId, rng protocol.LsnRange) ([]protocol.Commit, error) {
	req := &protocol.PullCommitsRequest{VolumeId: vid, Range: rng}
	resp := &protocol.PullCommitsResponse{}
	if err := postMessage(ctx, c.cfg, "/metastore/v1/pull_commits", req, resp); err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Commits, nil
}

// Commit submits segments under the client's pending-sync snapshot. On
// success it returns the server's new RemoteSnapshot. A returned error may
// wrap protocol.ErrCommitRejected (the server does not accept the claimed
// lineage) or protocol.ErrSnapshotMissing (the server has GC'd history the
// client needed). Commit does not retry.
func (c *MetastoreClient) Commit(ctx context.Context, vid core.VolumeId, snapshot protocol.RemoteSnapshot, segments []protocol.SegmentOffsets) (*protocol.RemoteSnapshot, error) {
	req := &protocol.CommitRequest{VolumeId: vid, Snapshot: snapshot, Segments: segments}
	resp := &protocol.CommitResponse{}
	if err := postMessage(ctx, c.cfg, "/metastore/v1/commit", req, resp); err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Snapshot, nil
}

// Health checks the metastore's liveness endpoint.
func (c *MetastoreClient) Health(ctx context.Context) error {
	return healthCheck(ctx, c.cfg, "/metastore/v1/health")
}
