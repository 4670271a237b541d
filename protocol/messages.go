package protocol

import (
	"fmt"

	proto "github.com/gogo/protobuf/proto"
	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/splinter"
)

// Every wire message satisfies gogo's proto.Message so the client transport
// can marshal it through proto.Marshal/proto.Unmarshal.
var (
	_ proto.Message = (*SnapshotRequest)(nil)
	_ proto.Message = (*SnapshotResponse)(nil)
	_ proto.Message = (*PullOffsetsRequest)(nil)
	_ proto.Message = (*PullOffsetsResponse)(nil)
	_ proto.Message = (*PullCommitsRequest)(nil)
	_ proto.Message = (*PullCommitsResponse)(nil)
	_ proto.Message = (*CommitRequest)(nil)
	_ proto.Message = (*CommitResponse)(nil)
	_ proto.Message = (*WritePagesRequest)(nil)
	_ proto.Message = (*WritePagesResponse)(nil)
	_ proto.Message = (*ReadPagesRequest)(nil)
	_ proto.Message = (*ReadPagesResponse)(nil)
)

// RemoteSnapshot is the metastore's view of a volume's latest (or
// point-in-time) durable state.
type RemoteSnapshot struct {
	VolumeId      core.VolumeId
	LSN           core.LSN
	CheckpointLSN core.LSN
	Pages         core.PageCount
}

func (s RemoteSnapshot) marshalInto(w *wireWriter) {
	writeVolumeId(w, s.VolumeId)
	w.u64(uint64(s.LSN))
	w.u64(uint64(s.CheckpointLSN))
	w.u32(uint32(s.Pages))
}

func unmarshalRemoteSnapshot(r *wireReader) (RemoteSnapshot, error) {
	var s RemoteSnapshot
	var err error
	if s.VolumeId, err = readVolumeId(r); err != nil {
		return RemoteSnapshot{}, err
	}
	lsn, err := r.u64()
	if err != nil {
		return RemoteSnapshot{}, err
	}
	s.LSN = core.LSN(lsn)
	ck, err := r.u64()
	if err != nil {
		return RemoteSnapshot{}, err
	}
	s.CheckpointLSN = core.LSN(ck)
	pages, err := r.u32()
	if err != nil {
		return RemoteSnapshot{}, err
	}
	s.Pages = core.PageCount(pages)
	return s, nil
}

// --- POST /metastore/v1/snapshot ---

type SnapshotRequest struct {
	VolumeId core.VolumeId
	LSN      *core.LSN
}

func (m *SnapshotRequest) Reset()         { *m = SnapshotRequest{} }
func (m *SnapshotRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (m *SnapshotRequest) ProtoMessage()  {}

func (m *SnapshotRequest) Marshal() ([]byte, error) {
	w := &wireWriter{}
	writeVolumeId(w, m.VolumeId)
	writeOptionalLSN(w, m.LSN)
	return w.buf, nil
}

func (m *SnapshotRequest) Unmarshal(buf []byte) error {
	r := &wireReader{buf: buf}
	vid, err := readVolumeId(r)
	if err != nil {
		return err
	}
	lsn, err := readOptionalLSN(r)
	if err != nil {
		return err
	}
	m.VolumeId, m.LSN = vid, lsn
	return nil
}

type SnapshotResponse struct {
	// Snapshot is nil when no such volume/lsn exists.
	Snapshot *RemoteSnapshot
	Err      *GraftErr
}

func (m *SnapshotResponse) Reset()         { *m = SnapshotResponse{} }
func (m *SnapshotResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (m *SnapshotResponse) ProtoMessage()  {}

func (m *SnapshotResponse) Marshal() ([]byte, error) {
	w := &wireWriter{}
	writeGraftErr(w, m.Err)
	if m.Snapshot == nil {
		w.u8(0)
	} else {
		w.u8(1)
		m.Snapshot.marshalInto(w)
	}
	return w.buf, nil
}

func (m *SnapshotResponse) Unmarshal(buf []byte) error {
	r := &wireReader{buf: buf}
	gerr, err := readGraftErr(r)
	if err != nil {
		return err
	}
	present, err := r.u8()
	if err != nil {
		return err
	}
	m.Err = gerr
	if present == 0 {
		m.Snapshot = nil
		return nil
	}
	s, err := unmarshalRemoteSnapshot(r)
	if err != nil {
		return err
	}
	m.Snapshot = &s
	return nil
}

// --- POST /metastore/v1/pull_offsets ---

type PullOffsetsRequest struct {
	VolumeId core.VolumeId
	Range    LsnRange
}

func (m *PullOffsetsRequest) Reset()         { *m = PullOffsetsRequest{} }
func (m *PullOffsetsRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (m *PullOffsetsRequest) ProtoMessage()  {}

func (m *PullOffsetsRequest) Marshal() ([]byte, error) {
	w := &wireWriter{}
	writeVolumeId(w, m.VolumeId)
	writeLsnRange(w, m.Range)
	return w.buf, nil
}

func (m *PullOffsetsRequest) Unmarshal(buf []byte) error {
	r := &wireReader{buf: buf}
	vid, err := readVolumeId(r)
	if err != nil {
		return err
	}
	rng, err := readLsnRange(r)
	if err != nil {
		return err
	}
	m.VolumeId, m.Range = vid, rng
	return nil
}

// OffsetsEntry is one element of a pull_offsets stream: a commit's
// page-offset fingerprint without its segment payloads.
type OffsetsEntry struct {
	LSN     core.LSN
	Offsets *splinter.Splinter
}

type PullOffsetsResponse struct {
	Entries []OffsetsEntry
	Err     *GraftErr
}

func (m *PullOffsetsResponse) Reset()         { *m = PullOffsetsResponse{} }
func (m *PullOffsetsResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (m *PullOffsetsResponse) ProtoMessage()  {}

func (m *PullOffsetsResponse) Marshal() ([]byte, error) {
	w := &wireWriter{}
	writeGraftErr(w, m.Err)
	w.u32(uint32(len(m.Entries)))
	for _, e := range m.Entries {
		w.u64(uint64(e.LSN))
		w.bytes(e.Offsets.Serialize())
	}
	return w.buf, nil
}

func (m *PullOffsetsResponse) Unmarshal(buf []byte) error {
	r := &wireReader{buf: buf}
	gerr, err := readGraftErr(r)
	if err != nil {
		return err
	}
	n, err := r.u32()
	if err != nil {
		return err
	}
	entries := make([]OffsetsEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		lsn, err := r.u64()
		if err != nil {
			return err
		}
		raw, err := r.bytes()
		if err != nil {
			return err
		}
		offsets, err := splinter.Parse(raw)
		if err != nil {
			return &CommitValidationErr{Kind: CommitErrTruncatedSegment, Detail: err.Error()}
		}
		entries = append(entries, OffsetsEntry{LSN: core.LSN(lsn), Offsets: offsets})
	}
	m.Err, m.Entries = gerr, entries
	return nil
}

// --- POST /metastore/v1/pull_commits ---

type PullCommitsRequest struct {
	VolumeId core.VolumeId
	Range    LsnRange
}

func (m *PullCommitsRequest) Reset()         { *m = PullCommitsRequest{} }
func (m *PullCommitsRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (m *PullCommitsRequest) ProtoMessage()  {}

func (m *PullCommitsRequest) Marshal() ([]byte, error) {
	w := &wireWriter{}
	writeVolumeId(w, m.VolumeId)
	writeLsnRange(w, m.Range)
	return w.buf, nil
}

func (m *PullCommitsRequest) Unmarshal(buf []byte) error {
	r := &wireReader{buf: buf}
	vid, err := readVolumeId(r)
	if err != nil {
		return err
	}
	rng, err := readLsnRange(r)
	if err != nil {
		return err
	}
	m.VolumeId, m.Range = vid, rng
	return nil
}

type PullCommitsResponse struct {
	Commits []Commit
	Err     *GraftErr
}

func (m *PullCommitsResponse) Reset()         { *m = PullCommitsResponse{} }
func (m *PullCommitsResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (m *PullCommitsResponse) ProtoMessage()  {}

func (m *PullCommitsResponse) Marshal() ([]byte, error) {
	w := &wireWriter{}
	writeGraftErr(w, m.Err)
	w.u32(uint32(len(m.Commits)))
	for _, c := range m.Commits {
		w.bytes(c.IntoPayload())
	}
	return w.buf, nil
}

func (m *PullCommitsResponse) Unmarshal(buf []byte) error {
	r := &wireReader{buf: buf}
	gerr, err := readGraftErr(r)
	if err != nil {
		return err
	}
	n, err := r.u32()
	if err != nil {
		return err
	}
	commits := make([]Commit, 0, n)
	for i := uint32(0); i < n; i++ {
		raw, err := r.bytes()
		if err != nil {
			return err
		}
		c, err := CommitFromBytes(raw)
		if err != nil {
			return err
		}
		commits = append(commits, c)
	}
	m.Err, m.Commits = gerr, commits
	return nil
}

// --- POST /metastore/v1/commit ---

type CommitRequest struct {
	VolumeId core.VolumeId
	// Snapshot carries the client's pending-sync state for this commit: the
	// local LSN being pushed, the checkpoint the client last observed, and
	// the page count. The server rejects the commit with CommitRejected when
	// the claimed lineage no longer matches its own.
	Snapshot RemoteSnapshot
	Segments []SegmentOffsets
}

func (m *CommitRequest) Reset()         { *m = CommitRequest{} }
func (m *CommitRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (m *CommitRequest) ProtoMessage()  {}

func (m *CommitRequest) Marshal() ([]byte, error) {
	w := &wireWriter{}
	writeVolumeId(w, m.VolumeId)
	m.Snapshot.marshalInto(w)
	w.u32(uint32(len(m.Segments)))
	for _, seg := range m.Segments {
		writeSegmentId(w, seg.SID)
		w.bytes(seg.Offsets.Serialize())
	}
	return w.buf, nil
}

func (m *CommitRequest) Unmarshal(buf []byte) error {
	r := &wireReader{buf: buf}
	vid, err := readVolumeId(r)
	if err != nil {
		return err
	}
	snapshot, err := unmarshalRemoteSnapshot(r)
	if err != nil {
		return err
	}
	n, err := r.u32()
	if err != nil {
		return err
	}
	segs := make([]SegmentOffsets, 0, n)
	for i := uint32(0); i < n; i++ {
		sid, err := readSegmentId(r)
		if err != nil {
			return err
		}
		raw, err := r.bytes()
		if err != nil {
			return err
		}
		offsets, err := splinter.Parse(raw)
		if err != nil {
			return &CommitValidationErr{Kind: CommitErrTruncatedSegment, Detail: err.Error()}
		}
		segs = append(segs, SegmentOffsets{SID: sid, Offsets: offsets})
	}
	m.VolumeId, m.Snapshot, m.Segments = vid, snapshot, segs
	return nil
}

// CommitResponse is either a new RemoteSnapshot on success, or a GraftErr
// (CommitRejected or SnapshotMissing).
type CommitResponse struct {
	Snapshot *RemoteSnapshot
	Err      *GraftErr
}

func (m *CommitResponse) Reset()         { *m = CommitResponse{} }
func (m *CommitResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (m *CommitResponse) ProtoMessage()  {}

func (m *CommitResponse) Marshal() ([]byte, error) {
	w := &wireWriter{}
	writeGraftErr(w, m.Err)
	if m.Snapshot == nil {
		w.u8(0)
	} else {
		w.u8(1)
		m.Snapshot.marshalInto(w)
	}
	return w.buf, nil
}

func (m *CommitResponse) Unmarshal(buf []byte) error {
	r := &wireReader{buf: buf}
	gerr, err := readGraftErr(r)
	if err != nil {
		return err
	}
	present, err := r.u8()
	if err != nil {
		return err
	}
	m.Err = gerr
	if present == 0 {
		m.Snapshot = nil
		return nil
	}
	s, err := unmarshalRemoteSnapshot(r)
	if err != nil {
		return err
	}
	m.Snapshot = &s
	return nil
}

// --- POST /pagestore/v1/write_pages ---

// PageWrite pairs a page index with its new content.
type PageWrite struct {
	PageIdx core.PageIdx
	Page    core.Page
}

type WritePagesRequest struct {
	VolumeId core.VolumeId
	Pages    []PageWrite
}

func (m *WritePagesRequest) Reset()         { *m = WritePagesRequest{} }
func (m *WritePagesRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (m *WritePagesRequest) ProtoMessage()  {}

func (m *WritePagesRequest) Marshal() ([]byte, error) {
	w := &wireWriter{}
	writeVolumeId(w, m.VolumeId)
	w.u32(uint32(len(m.Pages)))
	for _, p := range m.Pages {
		w.u32(uint32(p.PageIdx))
		w.raw(p.Page[:])
	}
	return w.buf, nil
}

func (m *WritePagesRequest) Unmarshal(buf []byte) error {
	r := &wireReader{buf: buf}
	vid, err := readVolumeId(r)
	if err != nil {
		return err
	}
	n, err := r.u32()
	if err != nil {
		return err
	}
	pages := make([]PageWrite, 0, n)
	for i := uint32(0); i < n; i++ {
		idx, err := r.u32()
		if err != nil {
			return err
		}
		raw, err := r.raw(core.PageSize)
		if err != nil {
			return err
		}
		var page core.Page
		copy(page[:], raw)
		pages = append(pages, PageWrite{PageIdx: core.PageIdx(idx), Page: page})
	}
	m.VolumeId, m.Pages = vid, pages
	return nil
}

// WritePagesResponse reports the segment(s) the server assigned to hold the
// written pages. The server, not the client, assigns segment ids.
type WritePagesResponse struct {
	Segments []SegmentOffsets
	Err      *GraftErr
}

func (m *WritePagesResponse) Reset()         { *m = WritePagesResponse{} }
func (m *WritePagesResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (m *WritePagesResponse) ProtoMessage()  {}

func (m *WritePagesResponse) Marshal() ([]byte, error) {
	w := &wireWriter{}
	writeGraftErr(w, m.Err)
	w.u32(uint32(len(m.Segments)))
	for _, seg := range m.Segments {
		writeSegmentId(w, seg.SID)
		w.bytes(seg.Offsets.Serialize())
	}
	return w.buf, nil
}

func (m *WritePagesResponse) Unmarshal(buf []byte) error {
	r := &wireReader{buf: buf}
	gerr, err := readGraftErr(r)
	if err != nil {
		return err
	}
	n, err := r.u32()
	if err != nil {
		return err
	}
	segs := make([]SegmentOffsets, 0, n)
	for i := uint32(0); i < n; i++ {
		sid, err := readSegmentId(r)
		if err != nil {
			return err
		}
		raw, err := r.bytes()
		if err != nil {
			return err
		}
		offsets, err := splinter.Parse(raw)
		if err != nil {
			return &CommitValidationErr{Kind: CommitErrTruncatedSegment, Detail: err.Error()}
		}
		segs = append(segs, SegmentOffsets{SID: sid, Offsets: offsets})
	}
	m.Err, m.Segments = gerr, segs
	return nil
}

// --- POST /pagestore/v1/read_pages ---

type ReadPagesRequest struct {
	VolumeId core.VolumeId
	LSN      core.LSN
	Offsets  *splinter.Splinter
}

func (m *ReadPagesRequest) Reset()         { *m = ReadPagesRequest{} }
func (m *ReadPagesRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (m *ReadPagesRequest) ProtoMessage()  {}

func (m *ReadPagesRequest) Marshal() ([]byte, error) {
	w := &wireWriter{}
	writeVolumeId(w, m.VolumeId)
	w.u64(uint64(m.LSN))
	w.bytes(m.Offsets.Serialize())
	return w.buf, nil
}

func (m *ReadPagesRequest) Unmarshal(buf []byte) error {
	r := &wireReader{buf: buf}
	vid, err := readVolumeId(r)
	if err != nil {
		return err
	}
	lsn, err := r.u64()
	if err != nil {
		return err
	}
	raw, err := r.bytes()
	if err != nil {
		return err
	}
	offsets, err := splinter.Parse(raw)
	if err != nil {
		return &CommitValidationErr{Kind: CommitErrTruncatedSegment, Detail: err.Error()}
	}
	m.VolumeId, m.LSN, m.Offsets = vid, core.LSN(lsn), offsets
	return nil
}

// PageEntry pairs an offset with its page content; response order is
// unspecified, the caller reassembles by Offset.
type PageEntry struct {
	Offset core.Offset
	Page   core.Page
}

type ReadPagesResponse struct {
	Pages []PageEntry
	Err   *GraftErr
}

func (m *ReadPagesResponse) Reset()         { *m = ReadPagesResponse{} }
func (m *ReadPagesResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (m *ReadPagesResponse) ProtoMessage()  {}

func (m *ReadPagesResponse) Marshal() ([]byte, error) {
	w := &wireWriter{}
	writeGraftErr(w, m.Err)
	w.u32(uint32(len(m.Pages)))
	for _, p := range m.Pages {
		w.u32(uint32(p.Offset))
		w.raw(p.Page[:])
	}
	return w.buf, nil
}

func (m *ReadPagesResponse) Unmarshal(buf []byte) error {
	r := &wireReader{buf: buf}
	gerr, err := readGraftErr(r)
	if err != nil {
		return err
	}
	n, err := r.u32()
	if err != nil {
		return err
	}
	pages := make([]PageEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		off, err := r.u32()
		if err != nil {
			return err
		}
		raw, err := r.raw(core.PageSize)
		if err != nil {
			return err
		}
		var page core.Page
		copy(page[:], raw)
		pages = append(pages, PageEntry{Offset: core.Offset(off), Page: page})
	}
	m.Err, m.Pages = gerr, pages
	return nil
}
