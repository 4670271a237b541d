// Package vfs translates the lock-level transitions a SQL engine drives
// (Unlocked/Shared/Reserved/Pending/Exclusive) into the transaction states
// of a runtime.Handle. It is the only place in this
// repository that models SQLite-style lock escalation; the engine itself is
// out of scope.
package vfs

import (
	"context"
	"fmt"

	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/protocol"
	"github.com/graftdb/graft/runtime"
	log "github.com/sirupsen/logrus"
)

// LockLevel mirrors the lock levels a SQL engine's VFS layer requests.
type LockLevel int

const (
	Unlocked LockLevel = iota
	Shared
	Reserved
	Pending
	Exclusive
)

func (l LockLevel) String() string {
	switch l {
	case Unlocked:
		return "Unlocked"
	case Shared:
		return "Shared"
	case Reserved:
		return "Reserved"
	case Pending:
		return "Pending"
	case Exclusive:
		return "Exclusive"
	default:
		return fmt.Sprintf("LockLevel(%d)", int(l))
	}
}

// State is the File's own transaction state. Committing is
// transient: a well-behaved caller never observes it except as the result of
// a failed commit, which it must clean up with a subsequent Unlock(Unlocked).
type State int

const (
	Idle State = iota
	StateShared
	StateReserved
	Committing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case StateShared:
		return "Shared"
	case StateReserved:
		return "Reserved"
	case Committing:
		return "Committing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// File is one open handle onto a volume as seen by a SQL engine's VFS layer:
// it owns at most one of {reader, writer} at a time and gates writer
// admission through a registry-shared reservedLock.
type File struct {
	handle   *runtime.Handle
	lock     *reservedLock
	readOnly bool
	autosync bool

	state  State
	reader *runtime.Reader
	writer *runtime.Writer
}

// Open returns a new File over handle, initially Idle. registry supplies the
// reservedLock shared by every File opened against the same volume.
func Open(registry *LockRegistry, handle *runtime.Handle, readOnly bool) *File {
	return &File{
		handle:   handle,
		lock:     registry.get(handle.VolumeId()),
		readOnly: readOnly,
		autosync: true,
	}
}

func (f *File) State() State {
	return f.state
}

func (f *File) log() *log.Entry {
	return log.WithFields(log.Fields{"vid": f.handle.VolumeId().String(), "state": f.state.String()})
}

// Lock requests a transition to a higher lock level.
func (f *File) Lock(ctx context.Context, level LockLevel) error {
	switch {
	case f.state == Idle && level == Shared:
		reader, err := f.handle.Reader(ctx)
		if err != nil {
			return fmt.Errorf("vfs: opening reader: %w", err)
		}
		f.reader = reader
		f.state = StateShared
		f.log().Debug("lock: Idle -> Shared")
		return nil

	case f.state == StateShared && level == Reserved:
		if f.readOnly {
			return ErrReadOnly
		}
		if !f.lock.tryAcquire() {
			return protocol.ErrBusy
		}
		latest, err := f.handle.Snapshot(ctx)
		if err != nil {
			f.lock.forceRelease()
			return fmt.Errorf("vfs: re-reading snapshot: %w", err)
		}
		if latest.LocalLSN != f.reader.Snapshot().LocalLSN {
			f.lock.forceRelease()
			return protocol.ErrBusySnapshot
		}
		f.writer = f.handle.WriterAt(latest)
		f.state = StateReserved
		// The reservedLock guard is intentionally leaked here: it is
		// released either by a successful Unlock(Shared) commit below, or
		// by the Committing -> Idle cleanup path after a failed commit.
		f.log().Debug("lock: Shared -> Reserved")
		return nil

	case f.state == StateReserved && (level == Pending || level == Exclusive):
		// The writer already holds exclusivity; no further state change.
		return nil

	default:
		return fmt.Errorf("vfs: %w: %s -> %s", protocol.ErrInvalidLockTransition, f.state, level)
	}
}

// Unlock requests a transition to a lower lock level.
func (f *File) Unlock(ctx context.Context, level LockLevel) error {
	switch {
	case (f.state == Idle || f.state == StateShared || f.state == Committing) && level == Unlocked:
		if f.state == Committing {
			// A prior Unlock(Shared) attempted to commit and failed; this
			// call is the caller's required cleanup.
			f.writer = nil
			f.lock.forceRelease()
		}
		f.reader = nil
		f.state = Idle
		f.log().Debug("unlock: -> Idle")
		return nil

	case f.state == StateReserved && level == Shared:
		f.state = Committing
		w := f.writer
		f.writer = nil
		reader, err := w.Commit(ctx)
		if err != nil {
			// Leave state == Committing; the reservedLock stays held until
			// the caller issues Unlock(Unlocked) to clean up.
			f.log().WithError(err).Warn("unlock: Reserved -> Committing failed")
			return err
		}
		f.reader = reader
		f.state = StateShared
		f.lock.forceRelease()
		f.log().Debug("unlock: Reserved -> Shared (committed)")
		return nil

	case f.state == StateReserved && level == Unlocked:
		return fmt.Errorf("vfs: %w: must downgrade Reserved to Shared before Unlocked", protocol.ErrInvalidLockTransition)

	default:
		return fmt.Errorf("vfs: %w: %s -> %s", protocol.ErrInvalidLockTransition, f.state, level)
	}
}

// ReadPage reads pageIdx at the File's current view: while Idle it serves
// from the latest persisted snapshot without taking a lock (SQLite reads the
// database header unlocked); while Shared or Reserved it serves from the
// held reader/writer.
func (f *File) ReadPage(ctx context.Context, oracle runtime.Oracle, pageIdx core.PageIdx) (core.Page, error) {
	switch f.state {
	case Idle:
		reader, err := f.handle.Reader(ctx)
		if err != nil {
			return core.Page{}, err
		}
		return reader.Read(ctx, oracle, pageIdx)
	case StateShared, Committing:
		return f.reader.Read(ctx, oracle, pageIdx)
	case StateReserved:
		return f.writer.Read(ctx, oracle, pageIdx)
	default:
		return core.Page{}, fmt.Errorf("vfs: read in unexpected state %s", f.state)
	}
}

// WritePage stages a page write. It requires the Reserved lock level.
func (f *File) WritePage(pageIdx core.PageIdx, page core.Page) error {
	if f.state != StateReserved {
		return fmt.Errorf("vfs: write requires Reserved, file is %s", f.state)
	}
	return f.writer.Write(pageIdx, page)
}

// Truncate marks the volume's new size. It requires the Reserved lock level.
func (f *File) Truncate(pages core.PageCount) error {
	if f.state != StateReserved {
		return fmt.Errorf("vfs: truncate requires Reserved, file is %s", f.state)
	}
	f.writer.Truncate(pages)
	return nil
}

// StatusReport renders the multi-line text report backing the
// `pragma graft_status;` equivalent.
func (f *File) StatusReport(ctx context.Context) (string, error) {
	snap, err := f.handle.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	status, err := f.handle.Status(ctx)
	if err != nil {
		return "", err
	}
	wm, err := f.handle.Watermarks(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"volume: %s\nlocal_lsn: %s\npages: %d\nstatus: %s\npending_sync: %s\ncheckpoint: %s\nautosync: %t\n",
		f.handle.VolumeId(), snap.LocalLSN, snap.Pages, status, wm.PendingSync, wm.Checkpoint, f.autosync,
	), nil
}

// SnapshotString renders the backing store for `pragma graft_snapshot;`: a
// compact string identifying the volume's latest persisted snapshot (not the
// snapshot of a reader the File holds), or "" if none has ever been
// committed.
func (f *File) SnapshotString(ctx context.Context) (string, error) {
	snap, err := f.handle.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	if snap.LocalLSN == core.LSNZero {
		return "", nil
	}
	return fmt.Sprintf("%s@%s", f.handle.VolumeId(), snap.LocalLSN), nil
}

// SetAutosync backs `pragma graft_sync = <bool>;`.
func (f *File) SetAutosync(enabled bool) {
	f.autosync = enabled
}

func (f *File) Autosync() bool {
	return f.autosync
}
