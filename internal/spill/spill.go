// internal/spill/spill.go
package spill

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"beacon-agent/internal/config"
	"beacon-agent/internal/metrics"
	"beacon-agent/internal/model"
	"beacon-agent/internal/pool"
	"beacon-agent/internal/timecache"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	zlog "github.com/rs/zerolog/log"
)

// Manager preserves abandoned batches — batches the collector rejected
// past the limit and the uploader dropped — as local gzip+JSONL files so
// operators can inspect or replay what was lost. This is a diagnostic
// trail only: spilled batches never re-enter the upload queue.
//
// Files are named <unix>_<instance>_<counter>.jsonl.gz with a sibling
// .meta.json recording the event count. Capacity pressure evicts
// oldest-first; Sweep deletes files past their TTL. Both TTL and
// ordering are judged from the filename's Unix prefix.
//
// Manager implements uploader.Observer; BatchDelivered is a no-op.
type Manager struct {
	cfg     config.Config
	metrics *metrics.Metrics

	// total bytes of data files currently in the spill directory
	sizeBytes int64
}

// NewManager creates the spill directory if needed and scans existing
// files to restore the size/count gauges. Meta orphans (a .meta.json
// without its data file) are cleaned up during the scan.
func NewManager(cfg config.Config, m *metrics.Metrics) *Manager {
	_ = os.MkdirAll(cfg.SpillDir, 0o755)

	s := &Manager{
		cfg:     cfg,
		metrics: m,
	}

	var total, count int64

	entries, err := os.ReadDir(cfg.SpillDir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}

			name := e.Name()
			full := filepath.Join(cfg.SpillDir, name)

			if strings.HasSuffix(name, ".meta.json") {
				dataName := strings.TrimSuffix(name, ".meta.json")
				if _, err := os.Stat(filepath.Join(cfg.SpillDir, dataName)); os.IsNotExist(err) {
					_ = os.Remove(full)
				}
				continue
			}

			info, err := e.Info()
			if err == nil {
				total += info.Size()
				count++
			}
		}
	}

	atomic.StoreInt64(&s.sizeBytes, total)
	if total > 0 {
		atomic.AddInt64(&m.SpillSizeBytes, total)
	}
	if count > 0 {
		atomic.AddInt64(&m.SpillFilesCurrent, count)
	}

	return s
}

// BatchDelivered satisfies uploader.Observer; delivered batches leave no
// trail here.
func (s *Manager) BatchDelivered(model.Batch) {}

// BatchAbandoned persists a dropped batch. Runs inside the uploader's
// check cycle, so it only encodes and writes one local file — no network,
// no retries. A spill failure is logged and the batch is gone for good,
// which is the documented tradeoff.
func (s *Manager) BatchAbandoned(batch model.Batch) {
	if len(batch) == 0 {
		return
	}

	data, err := encodeBatch(batch)
	if err != nil {
		zlog.Error().Err(err).Int("events", len(batch)).Msg("spill encode failed")
		atomic.AddInt64(&s.metrics.SpillBatchesDroppedTotal, 1)
		return
	}

	size := int64(len(data))
	if !s.ensureCapacity(size) {
		// Evicted what we could and the batch still does not fit.
		zlog.Error().
			Int64("bytes", size).
			Int("events", len(batch)).
			Msg("spill full, dropping batch")
		atomic.AddInt64(&s.metrics.SpillBatchesDroppedTotal, 1)
		return
	}

	filename := timecache.NewFilename(s.cfg.InstanceID)
	dataPath := filepath.Join(s.cfg.SpillDir, filename)
	metaPath := dataPath + ".meta.json"

	if err := os.WriteFile(dataPath, data, 0o600); err != nil {
		zlog.Error().Err(err).Str("file", filename).Msg("spill write failed")
		atomic.AddInt64(&s.metrics.SpillBatchesDroppedTotal, 1)
		return
	}

	meta := []byte(fmt.Sprintf(`{"num_events":%d}`, len(batch)))
	_ = os.WriteFile(metaPath, meta, 0o600)

	atomic.AddInt64(&s.sizeBytes, size)
	atomic.AddInt64(&s.metrics.SpillSizeBytes, size)
	atomic.AddInt64(&s.metrics.SpillFilesCurrent, 1)
	atomic.AddInt64(&s.metrics.SpillBatchesSavedTotal, 1)
	atomic.AddInt64(&s.metrics.SpillEventsSavedTotal, int64(len(batch)))

	zlog.Warn().
		Str("file", filename).
		Int("events", len(batch)).
		Msg("abandoned batch spilled")
}

// Sweep deletes spill files older than SpillMaxAge. Called periodically
// by the worker manager.
func (s *Manager) Sweep() {
	if s.cfg.SpillMaxAge <= 0 {
		return
	}

	entries, err := os.ReadDir(s.cfg.SpillDir)
	if err != nil {
		return
	}

	nowSec := timecache.Unix()

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, ".meta.json") {
			continue
		}

		sec, ok := timecache.UnixFromFilename(name)
		if !ok {
			continue
		}

		age := time.Duration(nowSec-sec) * time.Second
		if age <= s.cfg.SpillMaxAge {
			continue
		}

		s.removeFile(name)
		zlog.Info().Str("file", name).Dur("age", age).Msg("spill TTL expired")
	}
}

// ensureCapacity evicts oldest data/meta pairs until incoming fits under
// SpillMaxSizeBytes. Returns false when nothing is left to evict and the
// incoming file still does not fit.
func (s *Manager) ensureCapacity(incoming int64) bool {
	max := s.cfg.SpillMaxSizeBytes
	if max <= 0 {
		return true
	}

	for {
		curr := atomic.LoadInt64(&s.sizeBytes)
		if curr+incoming <= max {
			return true
		}

		oldest := s.pickOldest()
		if oldest == "" {
			return false
		}

		s.removeFile(oldest)
		zlog.Warn().Str("file", oldest).Msg("spill capacity eviction")
	}
}

// removeFile deletes one data file and its meta sibling, keeping the
// size/count bookkeeping in step.
func (s *Manager) removeFile(name string) {
	dataPath := filepath.Join(s.cfg.SpillDir, name)
	metaPath := dataPath + ".meta.json"

	if info, err := os.Stat(dataPath); err == nil {
		atomic.AddInt64(&s.sizeBytes, -info.Size())
		atomic.AddInt64(&s.metrics.SpillSizeBytes, -info.Size())
	}

	_ = os.Remove(dataPath)
	_ = os.Remove(metaPath)

	atomic.AddInt64(&s.metrics.SpillFilesCurrent, -1)
	atomic.AddInt64(&s.metrics.SpillFilesExpiredTotal, 1)
}

// pickOldest returns the oldest data file in the spill directory.
// Directory listings come back unordered; the filename scheme makes
// lexicographic order equal time order, so sort and take the head.
func (s *Manager) pickOldest() string {
	entries, err := os.ReadDir(s.cfg.SpillDir)
	if err != nil {
		return ""
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".meta.json") {
			continue
		}
		if name == "" || name[0] == '.' {
			continue
		}
		files = append(files, name)
	}

	if len(files) == 0 {
		return ""
	}

	sort.Strings(files)
	return files[0]
}

// encodeBatch serializes a batch as gzip-compressed JSONL, one event per
// line, using the shared pools. The returned slice is caller-owned.
func encodeBatch(batch model.Batch) ([]byte, error) {
	buf := pool.BufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	gz := pool.GzipPool.Get().(*gzip.Writer)
	gz.Reset(buf)

	enc := json.NewEncoder(gz)
	for i := range batch {
		if err := enc.Encode(&batch[i]); err != nil {
			_ = gz.Close()
			pool.GzipPool.Put(gz)
			pool.PutBuffer(buf)
			return nil, err
		}
	}

	if err := gz.Close(); err != nil {
		pool.GzipPool.Put(gz)
		pool.PutBuffer(buf)
		return nil, err
	}
	pool.GzipPool.Put(gz)

	raw := buf.Bytes()
	data := make([]byte, len(raw))
	copy(data, raw)

	pool.PutBuffer(buf)
	return data, nil
}
