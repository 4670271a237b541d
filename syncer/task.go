// Package syncer implements the background sync task that reconciles a
// volume's local commit history with the remote metastore/pagestore:
// periodic and on-demand pull + push, serialized per volume, parallel across
// volumes up to a configured worker limit.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/graftdb/graft/core"
	"github.com/graftdb/graft/runtime"
	"github.com/graftdb/graft/splinter"
	"github.com/graftdb/graft/storage"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// Config configures a Task's timing and fan-out.
type Config struct {
	// Interval is the period between unprompted sync cycles. Defaults to
	// 30s.
	Interval time.Duration
	// WorkerLimit bounds how many volumes are synced concurrently within one
	// cycle. Defaults to 4.
	WorkerLimit int
}

func (c Config) interval() time.Duration {
	if c.Interval <= 0 {
		return 30 * time.Second
	}
	return c.Interval
}

func (c Config) workerLimit() int {
	if c.WorkerLimit <= 0 {
		return 4
	}
	return c.WorkerLimit
}

// Task is a background sync task for one runtime: it wakes on Config.Interval
// or an explicit Poke, and for each volume with a non-Disabled sync
// direction runs the pull then push phases, serialized per volume.
type Task struct {
	store     storage.Store
	metastore MetastoreClient
	pagestore PagestoreClient
	cfg       Config
	metrics   *Metrics

	poke chan core.VolumeId
}

// NewTask builds a Task. metrics may be nil, in which case metrics are
// registered against prometheus.DefaultRegisterer.
func NewTask(store storage.Store, metastore MetastoreClient, pagestore PagestoreClient, cfg Config, metrics *Metrics) *Task {
	if metrics == nil {
		metrics = NewMetrics(prometheus.DefaultRegisterer)
	}
	return &Task{
		store:     store,
		metastore: metastore,
		pagestore: pagestore,
		cfg:       cfg,
		metrics:   metrics,
		poke:      make(chan core.VolumeId, 64),
	}
}

// Poke requests an out-of-band sync of vid at the next opportunity, without
// waiting for the periodic tick.
func (t *Task) Poke(vid core.VolumeId) {
	select {
	case t.poke <- vid:
	default:
		// A poke for this (or another) volume is already outstanding; the
		// next periodic cycle will catch up regardless.
	}
}

// Run blocks, driving sync cycles until ctx is canceled, honoring
// shutdown's deadline: on cancellation it returns
// ctx.Err() without forcing termination of whatever batch write is in
// flight.
func (t *Task) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.SyncOnce(ctx); err != nil {
				log.WithError(err).Warn("syncer: cycle failed")
			}
		case vid := <-t.poke:
			if err := t.syncVolume(ctx, vid); err != nil {
				log.WithField("vid", vid.String()).WithError(err).Warn("syncer: on-demand sync failed")
			}
		}
	}
}

// SyncOnce runs one pull+push pass over every volume with a non-Disabled
// sync direction, fanning out across volumes up to Config.WorkerLimit.
func (t *Task) SyncOnce(ctx context.Context) error {
	iter, err := storage.NewVolumeQueryIter(ctx, t.store)
	if err != nil {
		return fmt.Errorf("syncer: listing volumes: %w", err)
	}
	states, err := iter.Collect()
	if err != nil {
		return fmt.Errorf("syncer: listing volumes: %w", err)
	}

	sem := make(chan struct{}, t.cfg.workerLimit())
	var wg sync.WaitGroup
	for _, vs := range states {
		if vs.Config.Sync == storage.SyncDisabled {
			continue
		}
		vid := vs.VolumeId
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := t.syncVolume(ctx, vid); err != nil {
				log.WithField("vid", vid.String()).WithError(err).Warn("syncer: volume sync failed")
			}
		}()
	}
	wg.Wait()
	return nil
}

// syncVolume runs the pull phase (if configured) followed by the push phase
// (if configured) for one volume, reloading state between the two since
// pull may have mutated the snapshot or status.
func (t *Task) syncVolume(ctx context.Context, vid core.VolumeId) error {
	vs, err := t.loadState(ctx, vid)
	if err != nil {
		return err
	}
	if vs.Config.Sync == storage.SyncDisabled {
		return nil
	}

	if vs.Config.Sync.ShouldPull() {
		if err := t.pull(ctx, vs); err != nil {
			return err
		}
		vs, err = t.loadState(ctx, vid)
		if err != nil {
			return err
		}
	}

	if vs.Config.Sync.ShouldPush() {
		if err := t.push(ctx, vs); err != nil {
			return err
		}
	}

	if lsn := vs.Watermarks.PendingSync.LSN(); lsn > core.LSNZero {
		t.metrics.PendingLocalLSN.WithLabelValues(vid.String()).Set(float64(lsn))
	}
	return nil
}

// loadState reconstructs the four persisted volume-state records for vid
// through the same Handle accessors the runtime package uses, rather than
// duplicating storage's key layout here.
func (t *Task) loadState(ctx context.Context, vid core.VolumeId) (storage.VolumeState, error) {
	h := runtime.NewHandle(t.store, vid, nil)
	cfg, err := h.Config(ctx)
	if err != nil {
		return storage.VolumeState{}, err
	}
	status, err := h.Status(ctx)
	if err != nil {
		return storage.VolumeState{}, err
	}
	snap, err := h.Snapshot(ctx)
	if err != nil {
		return storage.VolumeState{}, err
	}
	wm, err := h.Watermarks(ctx)
	if err != nil {
		return storage.VolumeState{}, err
	}
	return storage.VolumeState{VolumeId: vid, Config: cfg, Status: status, Snapshot: snap, Watermarks: wm}, nil
}

// localDirtyOffsets returns the union of page offsets touched by local
// commits that have not yet been reflected in the remote mapping — the set
// the pull phase's conflict check intersects against. It relies on
// Writer.Commit staging a local-origin
// segment-index entry (SegmentId zero value) for every commit, alongside the
// real server-assigned entries a completed push later adds.
func (t *Task) localDirtyOffsets(ctx context.Context, vs storage.VolumeState) (*splinter.Splinter, error) {
	threshold := vs.Snapshot.RemoteMappingLocalLSN()
	entries, err := storage.SegmentsAtOrBefore(ctx, t.store, vs.VolumeId, vs.Snapshot.LocalLSN)
	if err != nil {
		return nil, err
	}
	out := splinter.New()
	for _, e := range entries {
		if e.LSN > threshold {
			out = out.Union(e.Offsets)
		}
	}
	return out, nil
}

func volumeLog(vid core.VolumeId) *log.Entry {
	return log.WithField("vid", vid.String())
}
