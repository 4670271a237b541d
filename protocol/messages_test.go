package protocol_test

import (
	"testing"

	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/protocol"
	"github.com/graftdb/graft/splinter"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRequestRoundTrip(t *testing.T) {
	lsn := core.LSN(42)
	req := protocol.SnapshotRequest{VolumeId: core.NewVolumeId(), LSN: &lsn}
	buf, err := req.Marshal()
	require.NoError(t, err)

	var got protocol.SnapshotRequest
	require.NoError(t, got.Unmarshal(buf))
	require.Equal(t, req.VolumeId, got.VolumeId)
	require.Equal(t, *req.LSN, *got.LSN)
}

func TestSnapshotRequestRoundTripNoLSN(t *testing.T) {
	req := protocol.SnapshotRequest{VolumeId: core.NewVolumeId()}
	buf, err := req.Marshal()
	require.NoError(t, err)

	var got protocol.SnapshotRequest
	require.NoError(t, got.Unmarshal(buf))
	require.Nil(t, got.LSN)
}

func TestSnapshotResponseRoundTripFound(t *testing.T) {
	resp := protocol.SnapshotResponse{Snapshot: &protocol.RemoteSnapshot{
		VolumeId: core.NewVolumeId(), LSN: 7, CheckpointLSN: 3, Pages: 100,
	}}
	buf, err := resp.Marshal()
	require.NoError(t, err)

	var got protocol.SnapshotResponse
	require.NoError(t, got.Unmarshal(buf))
	require.Equal(t, *resp.Snapshot, *got.Snapshot)
	require.Nil(t, got.Err)
}

func TestSnapshotResponseRoundTripMissing(t *testing.T) {
	resp := protocol.SnapshotResponse{Err: protocol.ErrSnapshotMissing}
	buf, err := resp.Marshal()
	require.NoError(t, err)

	var got protocol.SnapshotResponse
	require.NoError(t, got.Unmarshal(buf))
	require.Nil(t, got.Snapshot)
	require.True(t, protocol.IsSnapshotMissing(got.Err))
}

func TestPullOffsetsRoundTrip(t *testing.T) {
	req := protocol.PullOffsetsRequest{
		VolumeId: core.NewVolumeId(),
		Range:    protocol.NewClosedRange(1, 10),
	}
	buf, err := req.Marshal()
	require.NoError(t, err)
	var gotReq protocol.PullOffsetsRequest
	require.NoError(t, gotReq.Unmarshal(buf))
	require.Equal(t, req, gotReq)

	resp := protocol.PullOffsetsResponse{Entries: []protocol.OffsetsEntry{
		{LSN: 1, Offsets: splinter.FromSlice([]uint32{0, 5})},
		{LSN: 2, Offsets: splinter.FromSlice([]uint32{})},
	}}
	buf, err = resp.Marshal()
	require.NoError(t, err)
	var gotResp protocol.PullOffsetsResponse
	require.NoError(t, gotResp.Unmarshal(buf))
	require.Len(t, gotResp.Entries, 2)
	require.Equal(t, core.LSN(1), gotResp.Entries[0].LSN)
	require.True(t, gotResp.Entries[0].Offsets.Equal(splinter.FromSlice([]uint32{0, 5})))
}

func TestPullCommitsRoundTrip(t *testing.T) {
	c := protocol.Commit{
		VolumeId: core.NewVolumeId(),
		Meta:     protocol.CommitMeta{LSN: 4, CheckpointLSN: 1},
		Segments: []protocol.SegmentOffsets{
			{SID: core.NewSegmentId(), Offsets: splinter.FromSlice([]uint32{1})},
		},
	}
	resp := protocol.PullCommitsResponse{Commits: []protocol.Commit{c}}
	buf, err := resp.Marshal()
	require.NoError(t, err)

	var got protocol.PullCommitsResponse
	require.NoError(t, got.Unmarshal(buf))
	require.Equal(t, resp.Commits, got.Commits)
}

func TestCommitRequestResponseRoundTrip(t *testing.T) {
	req := protocol.CommitRequest{
		VolumeId: core.NewVolumeId(),
		Snapshot: protocol.RemoteSnapshot{LSN: 3, CheckpointLSN: 1, Pages: 10},
		Segments: []protocol.SegmentOffsets{
			{SID: core.NewSegmentId(), Offsets: splinter.FromSlice([]uint32{9})},
		},
	}
	buf, err := req.Marshal()
	require.NoError(t, err)
	var gotReq protocol.CommitRequest
	require.NoError(t, gotReq.Unmarshal(buf))
	require.Equal(t, req.VolumeId, gotReq.VolumeId)
	require.Equal(t, req.Snapshot, gotReq.Snapshot)
	require.Len(t, gotReq.Segments, 1)

	resp := protocol.CommitResponse{Err: protocol.ErrCommitRejected}
	buf, err = resp.Marshal()
	require.NoError(t, err)
	var gotResp protocol.CommitResponse
	require.NoError(t, gotResp.Unmarshal(buf))
	require.True(t, protocol.IsCommitRejected(gotResp.Err))
}

func TestWritePagesRoundTrip(t *testing.T) {
	req := protocol.WritePagesRequest{
		VolumeId: core.NewVolumeId(),
		Pages: []protocol.PageWrite{
			{PageIdx: 1, Page: core.Fill(0xAB)},
			{PageIdx: 2, Page: core.Fill(0xCD)},
		},
	}
	buf, err := req.Marshal()
	require.NoError(t, err)
	var gotReq protocol.WritePagesRequest
	require.NoError(t, gotReq.Unmarshal(buf))
	require.Equal(t, req, gotReq)

	resp := protocol.WritePagesResponse{Segments: []protocol.SegmentOffsets{
		{SID: core.NewSegmentId(), Offsets: splinter.FromSlice([]uint32{0, 1})},
	}}
	buf, err = resp.Marshal()
	require.NoError(t, err)
	var gotResp protocol.WritePagesResponse
	require.NoError(t, gotResp.Unmarshal(buf))
	require.Len(t, gotResp.Segments, 1)
}

func TestReadPagesRoundTrip(t *testing.T) {
	req := protocol.ReadPagesRequest{
		VolumeId: core.NewVolumeId(),
		LSN:      5,
		Offsets:  splinter.FromSlice([]uint32{0, 3}),
	}
	buf, err := req.Marshal()
	require.NoError(t, err)
	var gotReq protocol.ReadPagesRequest
	require.NoError(t, gotReq.Unmarshal(buf))
	require.Equal(t, req.VolumeId, gotReq.VolumeId)
	require.Equal(t, req.LSN, gotReq.LSN)
	require.True(t, req.Offsets.Equal(gotReq.Offsets))

	resp := protocol.ReadPagesResponse{Pages: []protocol.PageEntry{
		{Offset: 0, Page: core.Fill(0x11)},
		{Offset: 3, Page: core.Fill(0x22)},
	}}
	buf, err = resp.Marshal()
	require.NoError(t, err)
	var gotResp protocol.ReadPagesResponse
	require.NoError(t, gotResp.Unmarshal(buf))
	require.Equal(t, resp.Pages, gotResp.Pages)
}
