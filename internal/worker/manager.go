// internal/worker/manager.go
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"beacon-agent/internal/archive"
	"beacon-agent/internal/config"
	"beacon-agent/internal/metrics"
	"beacon-agent/internal/model"
	"beacon-agent/internal/spill"

	zlog "github.com/rs/zerolog/log"
)

// Uploader is the slice of the upload facade the manager drives: append
// a batch (fire-and-forget) and snapshot the queue.
type Uploader interface {
	Upload(batch model.Batch)
	Archive() ([]byte, error)
}

// Manager is the asynchronous engine between the HTTP handlers and the
// uploader:
//
//   - EventCh: handlers push collected events here (backpressure boundary)
//   - collectLoop: groups events into batches, flushing on BatchSize or
//     FlushInterval, and hands each batch to the uploader
//   - maintainLoop: periodic queue snapshots to the archive store and
//     spill TTL sweeps
//
// Shutdown drains: the remaining partial batch is flushed to the
// uploader before the loops exit, so no accepted event is dropped by the
// manager itself.
type Manager struct {
	cfg     config.Config
	metrics *metrics.Metrics

	uploader Uploader
	spill    *spill.Manager
	store    archive.Store

	// EventCh carries accepted events from the HTTP handlers. Handlers
	// copy pooled Event objects in by pointer; collectLoop copies the
	// value into the batch and recycles the object.
	EventCh chan *model.Event

	ctx    context.Context
	cancel context.CancelFunc

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewManager wires the pipeline. spill and store may be nil (tests, or
// an agent run without those features); the corresponding maintenance
// work is skipped.
func NewManager(cfg config.Config, m *metrics.Metrics, up Uploader, sp *spill.Manager, store archive.Store) *Manager {
	return &Manager{
		cfg:      cfg,
		metrics:  m,
		uploader: up,
		spill:    sp,
		store:    store,
		EventCh:  make(chan *model.Event, cfg.ChannelSize),
	}
}

// Start launches the collect and maintenance goroutines.
func (m *Manager) Start() {
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(2)
	go m.collectLoop()
	go m.maintainLoop()
}

// Shutdown stops intake, flushes the partial batch, and waits for both
// loops. Safe to call more than once. The final queue snapshot is the
// caller's job (main archives after the uploader is closed).
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		m.cancel()
		close(m.EventCh)
	})
	m.wg.Wait()
}

// collectLoop reads events off EventCh into a batch, flushing when the
// batch is full or FlushInterval elapses. Flushed batches go to the
// uploader, which appends and returns immediately — this loop never
// waits on the network.
func (m *Manager) collectLoop() {
	defer m.wg.Done()

	batch := make(model.Batch, 0, m.cfg.BatchSize)
	timer := time.NewTimer(m.cfg.FlushInterval)
	defer timer.Stop()

	reset := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(m.cfg.FlushInterval)
	}

	flush := func() {
		if len(batch) > 0 {
			m.uploader.Upload(batch)
			// Always a fresh slice; the uploader owns the old one now.
			batch = make(model.Batch, 0, m.cfg.BatchSize)
		}
		// Rearm even when there was nothing to flush, or an idle period
		// would leave the interval flush dead.
		reset()
	}

	for {
		select {
		case ev, ok := <-m.EventCh:
			if !ok {
				// Intake closed; flush the remainder and exit.
				flush()
				zlog.Info().Msg("collector exiting")
				return
			}
			batch = append(batch, *ev)
			recycleEvent(ev)
			if len(batch) >= m.cfg.BatchSize {
				flush()
			}

		case <-timer.C:
			flush()
		}
	}
}

// maintainLoop runs the periodic chores: archive the queue snapshot and
// sweep expired spill files.
func (m *Manager) maintainLoop() {
	defer m.wg.Done()

	archiveTicker := time.NewTicker(m.cfg.ArchiveInterval)
	defer archiveTicker.Stop()

	sweepTicker := time.NewTicker(m.cfg.SpillSweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return

		case <-archiveTicker.C:
			m.archiveOnce(m.ctx)

		case <-sweepTicker.C:
			if m.spill != nil {
				m.spill.Sweep()
			}
		}
	}
}

// archiveOnce snapshots the queue and persists it. Failures are counted
// and logged; the next tick tries again with a fresher snapshot.
func (m *Manager) archiveOnce(ctx context.Context) {
	if m.store == nil {
		return
	}

	snap, err := m.uploader.Archive()
	if err != nil {
		atomic.AddInt64(&m.metrics.ArchiveSaveErrorsTotal, 1)
		zlog.Error().Err(err).Msg("queue snapshot failed")
		return
	}

	if err := m.store.Save(ctx, snap); err != nil {
		atomic.AddInt64(&m.metrics.ArchiveSaveErrorsTotal, 1)
		zlog.Error().Err(err).Msg("archive save failed")
		return
	}
	atomic.AddInt64(&m.metrics.ArchiveSavesTotal, 1)
}
