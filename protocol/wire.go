package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/graftdb/graft/core"
)

// wireWriter and wireReader are small hand-rolled helpers the message types
// in messages.go use to build their Marshal/Unmarshal implementations. They
// exist because the wire messages are encoded by hand rather than through
// gogo/protobuf's reflection-based struct-tag marshaling. Each type still
// satisfies proto.Message nominally via Reset/String/ProtoMessage so it can
// ride gogo's transport plumbing, but the actual bytes on the wire are
// produced by these helpers for full control without a protoc step.
type wireWriter struct {
	buf []byte
}

func (w *wireWriter) u8(v byte) { w.buf = append(w.buf, v) }

func (w *wireWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *wireWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// bytes writes a u32 length prefix followed by b.
func (w *wireWriter) bytes(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// raw appends b with no length prefix; the reader must know its size.
func (w *wireWriter) raw(b []byte) { w.buf = append(w.buf, b...) }

type wireReader struct {
	buf []byte
	off int
}

var errShortRead = fmt.Errorf("protocol: unexpected end of wire message")

func (r *wireReader) u8() (byte, error) {
	if r.off+1 > len(r.buf) {
		return 0, errShortRead
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *wireReader) u32() (uint32, error) {
	if r.off+4 > len(r.buf) {
		return 0, errShortRead
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off : r.off+4])
	r.off += 4
	return v, nil
}

func (r *wireReader) u64() (uint64, error) {
	if r.off+8 > len(r.buf) {
		return 0, errShortRead
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off : r.off+8])
	r.off += 8
	return v, nil
}

func (r *wireReader) bytes() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if r.off+int(n) > len(r.buf) {
		return nil, errShortRead
	}
	v := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return v, nil
}

func (r *wireReader) raw(n int) ([]byte, error) {
	if r.off+n > len(r.buf) {
		return nil, errShortRead
	}
	v := r.buf[r.off : r.off+n]
	r.off += n
	return v, nil
}

func (r *wireReader) done() bool { return r.off >= len(r.buf) }

func writeVolumeId(w *wireWriter, vid core.VolumeId) { w.raw(vid[:]) }

func readVolumeId(r *wireReader) (core.VolumeId, error) {
	b, err := r.raw(16)
	if err != nil {
		return core.VolumeId{}, err
	}
	var vid core.VolumeId
	copy(vid[:], b)
	return vid, nil
}

func writeSegmentId(w *wireWriter, sid core.SegmentId) { w.raw(sid[:]) }

func readSegmentId(r *wireReader) (core.SegmentId, error) {
	b, err := r.raw(16)
	if err != nil {
		return core.SegmentId{}, err
	}
	var sid core.SegmentId
	copy(sid[:], b)
	return sid, nil
}

// writeOptionalLSN writes a presence byte followed by the LSN if present.
func writeOptionalLSN(w *wireWriter, lsn *core.LSN) {
	if lsn == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.u64(uint64(*lsn))
}

func readOptionalLSN(r *wireReader) (*core.LSN, error) {
	present, err := r.u8()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	v, err := r.u64()
	if err != nil {
		return nil, err
	}
	lsn := core.LSN(v)
	return &lsn, nil
}

func writeBound(w *wireWriter, b Bound) {
	w.u8(byte(b.Kind))
	w.u64(uint64(b.Value))
}

func readBound(r *wireReader) (Bound, error) {
	kind, err := r.u8()
	if err != nil {
		return Bound{}, err
	}
	v, err := r.u64()
	if err != nil {
		return Bound{}, err
	}
	return Bound{Kind: BoundKind(kind), Value: core.LSN(v)}, nil
}

func writeLsnRange(w *wireWriter, rng LsnRange) {
	writeBound(w, rng.Start)
	writeBound(w, rng.End)
}

func readLsnRange(r *wireReader) (LsnRange, error) {
	start, err := readBound(r)
	if err != nil {
		return LsnRange{}, err
	}
	end, err := readBound(r)
	if err != nil {
		return LsnRange{}, err
	}
	return LsnRange{Start: start, End: end}, nil
}

// writeGraftErr writes a presence byte followed by the code and message if
// present, so a response message can carry either a payload or an error.
func writeGraftErr(w *wireWriter, e *GraftErr) {
	if e == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.u32(uint32(e.Code))
	w.bytes([]byte(e.Message))
}

func readGraftErr(r *wireReader) (*GraftErr, error) {
	present, err := r.u8()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	code, err := r.u32()
	if err != nil {
		return nil, err
	}
	msg, err := r.bytes()
	if err != nil {
		return nil, err
	}
	return &GraftErr{Code: GraftErrCode(code), Message: string(msg)}, nil
}
