package storage

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/graftdb/graft/core"
)

// SyncDirection is VolumeConfig's sync mode.
type SyncDirection byte

const (
	SyncDisabled SyncDirection = 0
	SyncPush     SyncDirection = 1
	SyncPull     SyncDirection = 2
	SyncBoth     SyncDirection = 3
)

func (d SyncDirection) String() string {
	switch d {
	case SyncDisabled:
		return "Disabled"
	case SyncPush:
		return "Push"
	case SyncPull:
		return "Pull"
	case SyncBoth:
		return "Both"
	default:
		return fmt.Sprintf("SyncDirection(%d)", byte(d))
	}
}

// Matches reports whether a volume configured with direction a should
// reconcile with one configured with direction b. It is symmetric:
// Disabled matches only Disabled; Both matches anything but Disabled; two
// equal non-Disabled directions match each other.
func (d SyncDirection) Matches(other SyncDirection) bool {
	if d == SyncDisabled || other == SyncDisabled {
		return d == other
	}
	if d == SyncBoth || other == SyncBoth {
		return true
	}
	return d == other
}

// ShouldPull reports whether direction d ever issues a pull.
func (d SyncDirection) ShouldPull() bool {
	return d == SyncPull || d == SyncBoth
}

// ShouldPush reports whether direction d ever issues a push.
func (d SyncDirection) ShouldPush() bool {
	return d == SyncPush || d == SyncBoth
}

// VolumeConfig is the persisted per-volume configuration.
type VolumeConfig struct {
	Sync SyncDirection
}

func (c VolumeConfig) Marshal() []byte {
	return []byte{byte(c.Sync)}
}

func UnmarshalVolumeConfig(buf []byte) (VolumeConfig, error) {
	if len(buf) != 1 {
		return VolumeConfig{}, &CorruptVolumeStateError{Tag: TagConfig, Detail: fmt.Sprintf("expected 1 byte, got %d", len(buf))}
	}
	return VolumeConfig{Sync: SyncDirection(buf[0])}, nil
}

// VolumeStatus is the sticky non-Ok failure record for a volume.
type VolumeStatus byte

const (
	StatusOk              VolumeStatus = 0
	StatusRejectedCommit  VolumeStatus = 1
	StatusConflict        VolumeStatus = 2
	StatusInterruptedPush VolumeStatus = 3
)

func (s VolumeStatus) String() string {
	switch s {
	case StatusOk:
		return "Ok"
	case StatusRejectedCommit:
		return "RejectedCommit"
	case StatusConflict:
		return "Conflict"
	case StatusInterruptedPush:
		return "InterruptedPush"
	default:
		return fmt.Sprintf("VolumeStatus(%d)", byte(s))
	}
}

func (s VolumeStatus) Marshal() []byte {
	return []byte{byte(s)}
}

func UnmarshalVolumeStatus(buf []byte) (VolumeStatus, error) {
	if len(buf) != 1 {
		return 0, &CorruptVolumeStateError{Tag: TagStatus, Detail: fmt.Sprintf("expected 1 byte, got %d", len(buf))}
	}
	return VolumeStatus(buf[0]), nil
}

// RemoteMapping records the last remote LSN this volume has synchronized to,
// and the local LSN that was current when that happened.
type RemoteMapping struct {
	RemoteLSN core.LSN
	LocalLSN  core.LSN
}

// Snapshot is the per-volume summary of the local view.
type Snapshot struct {
	LocalLSN core.LSN
	// Remote is nil before the volume has ever synced.
	Remote    *RemoteMapping
	Pages     core.PageCount
	Timestamp time.Time
}

// RemoteMappingLocalLSN returns Remote.LocalLSN, or LSNZero if the volume
// has never synced — the zero-value used throughout invariants 1 and 2.
func (s Snapshot) RemoteMappingLocalLSN() core.LSN {
	if s.Remote == nil {
		return core.LSNZero
	}
	return s.Remote.LocalLSN
}

// Validate checks that the remote mapping's local LSN never exceeds the
// snapshot's own local LSN.
func (s Snapshot) Validate() error {
	if s.RemoteMappingLocalLSN() > s.LocalLSN {
		return &CorruptVolumeStateError{Tag: TagSnapshot, Detail: fmt.Sprintf(
			"remote_mapping.local (%s) > local_lsn (%s)", s.RemoteMappingLocalLSN(), s.LocalLSN)}
	}
	return nil
}

// snapshot wire layout: local_lsn(8) | has_remote(1) | remote_lsn(8) |
// remote_local_lsn(8) | pages(4) | timestamp_unix_ms(8) = 37 bytes.
const snapshotSize = 37

func (s Snapshot) Marshal() []byte {
	buf := make([]byte, snapshotSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(s.LocalLSN))
	if s.Remote != nil {
		buf[8] = 1
		binary.LittleEndian.PutUint64(buf[9:17], uint64(s.Remote.RemoteLSN))
		binary.LittleEndian.PutUint64(buf[17:25], uint64(s.Remote.LocalLSN))
	}
	binary.LittleEndian.PutUint32(buf[25:29], uint32(s.Pages))
	binary.LittleEndian.PutUint64(buf[29:37], uint64(s.Timestamp.UnixMilli()))
	return buf
}

func UnmarshalSnapshot(buf []byte) (Snapshot, error) {
	if len(buf) != snapshotSize {
		return Snapshot{}, &CorruptVolumeStateError{Tag: TagSnapshot, Detail: fmt.Sprintf("expected %d bytes, got %d", snapshotSize, len(buf))}
	}
	var s Snapshot
	s.LocalLSN = core.LSN(binary.LittleEndian.Uint64(buf[0:8]))
	if buf[8] == 1 {
		s.Remote = &RemoteMapping{
			RemoteLSN: core.LSN(binary.LittleEndian.Uint64(buf[9:17])),
			LocalLSN:  core.LSN(binary.LittleEndian.Uint64(buf[17:25])),
		}
	}
	s.Pages = core.PageCount(binary.LittleEndian.Uint32(buf[25:29]))
	s.Timestamp = time.UnixMilli(int64(binary.LittleEndian.Uint64(buf[29:37]))).UTC()
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Watermarks tracks progress of the two sync phases.
type Watermarks struct {
	PendingSync core.Watermark
	Checkpoint  core.Watermark
}

func (w Watermarks) Marshal() []byte {
	buf := make([]byte, 32)
	ps := w.PendingSync.Marshal()
	cp := w.Checkpoint.Marshal()
	copy(buf[0:16], ps[:])
	copy(buf[16:32], cp[:])
	return buf
}

func UnmarshalWatermarks(buf []byte) (Watermarks, error) {
	if len(buf) != 32 {
		return Watermarks{}, &CorruptVolumeStateError{Tag: TagWatermarks, Detail: fmt.Sprintf("expected 32 bytes, got %d", len(buf))}
	}
	ps, err := core.UnmarshalWatermark(buf[0:16])
	if err != nil {
		return Watermarks{}, &CorruptVolumeStateError{Tag: TagWatermarks, Detail: err.Error()}
	}
	cp, err := core.UnmarshalWatermark(buf[16:32])
	if err != nil {
		return Watermarks{}, &CorruptVolumeStateError{Tag: TagWatermarks, Detail: err.Error()}
	}
	return Watermarks{PendingSync: ps, Checkpoint: cp}, nil
}

// Validate checks that a mapped pending-sync watermark never falls behind
// the snapshot's remote mapping.
func (w Watermarks) Validate(s Snapshot) error {
	if w.PendingSync.IsMapped() && w.PendingSync.LSN() < s.RemoteMappingLocalLSN() {
		return &CorruptVolumeStateError{Tag: TagWatermarks, Detail: fmt.Sprintf(
			"pending_sync.lsn (%s) < snapshot.remote_mapping.local (%s)", w.PendingSync.LSN(), s.RemoteMappingLocalLSN())}
	}
	return nil
}

// VolumeState is the derived union of a volume's four persisted records.
type VolumeState struct {
	VolumeId   core.VolumeId
	Config     VolumeConfig
	Status     VolumeStatus
	Snapshot   Snapshot
	Watermarks Watermarks
}

// IsSyncing reports whether a push is currently outstanding.
func (vs VolumeState) IsSyncing() bool {
	return vs.Watermarks.PendingSync.LSN() > vs.Snapshot.RemoteMappingLocalLSN()
}

// HasPendingCommits reports whether local commits exist that have not yet
// been reflected in the remote mapping.
func (vs VolumeState) HasPendingCommits() bool {
	return vs.Snapshot.RemoteMappingLocalLSN() < vs.Snapshot.LocalLSN
}
