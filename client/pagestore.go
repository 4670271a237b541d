package client

import (
	"context"

	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/protocol"
	"github.com/graftdb/graft/splinter"
)

// PagestoreClient talks to the remote content-addressed page segments.
type PagestoreClient struct {
	cfg Config
}

func NewPagestoreClient(cfg Config) *PagestoreClient {
	return &PagestoreClient{cfg: cfg}
}

// WritePages uploads pages for vid; the server assigns segment ids and
// reports which offsets landed in each returned segment.
func (c *PagestoreClient) WritePages(ctx context.Context, vid core.VolumeId, pages []protocol.PageWrite) ([]protocol.SegmentOffsets, error) {
	req := &protocol.WritePagesRequest{VolumeId: vid, Pages: pages}
	resp := &protocol.WritePagesResponse{}
	if err := postMessage(ctx, c.cfg, "/pagestore/v1/write_pages", req, resp); err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Segments, nil
}

// ReadPages fetches exactly the offsets in requested from vid's state as of
// lsn. Response order is unspecified; the
// caller must key results by Offset.
func (c *PagestoreClient) ReadPages(ctx context.Context, vid core.VolumeId, lsn core.LSN, requested *splinter.Splinter) ([]protocol.PageEntry, error) {
	req := &protocol.ReadPagesRequest{VolumeId: vid, LSN: lsn, Offsets: requested}
	resp := &protocol.ReadPagesResponse{}
	if err := postMessage(ctx, c.cfg, "/pagestore/v1/read_pages", req, resp); err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Pages, nil
}

// Health checks the pagestore's liveness endpoint.
func (c *PagestoreClient) Health(ctx context.Context) error {
	return healthCheck(ctx, c.cfg, "/pagestore/v1/health")
}
