package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics is the set of operational counters served at /metrics as plain
// "name=value" lines. These are not a metrics-product integration; they
// are the internal counters an operator needs when diagnosing why batches
// are not reaching the collector (retry storms, abandonment, spill
// growth, archive failures).
type Metrics struct {
	// ======================
	// HTTP level
	// ======================

	// Every request that reached HandleCollect, accepted or not.
	HTTPRequestsTotal int64

	// Requests whose event made it into EventCh.
	HTTPRequestsAcceptedTotal int64

	// Requests rejected with 413 (body over MaxBodySize).
	HTTPRequestsRejectedBodyTooLargeTotal int64

	// Requests rejected with 503 (EventCh full; fail-fast backpressure).
	HTTPRequestsRejectedQueueFullTotal int64

	// ======================
	// Uploader level
	// ======================

	// HTTP exchanges attempted against the collector (every send counts,
	// including retries of the same batch).
	UploadAttemptsTotal int64

	// Batches / events confirmed by the collector with 200.
	BatchesDeliveredTotal int64
	EventsDeliveredTotal  int64

	// 400 responses counted toward the per-batch rejection limit.
	UploadRejectionsTotal int64

	// Transport-level failures plus non-200/non-400 statuses; retried
	// with backoff, never counted toward the rejection limit.
	UploadRetriedFailuresTotal int64

	// Batches dropped after hitting the rejection limit. Nonzero means
	// the collector is refusing our payloads and we are shedding data.
	BatchesAbandonedTotal int64

	// Batches currently held in the durable queue (gauge).
	QueueDepth int64

	// ======================
	// Archive level
	// ======================

	// Queue snapshots persisted / failed to persist.
	ArchiveSavesTotal      int64
	ArchiveSaveErrorsTotal int64

	// ======================
	// Spill (abandoned-batch diagnostics)
	// ======================

	// Batches / events written to the local spill directory.
	SpillBatchesSavedTotal int64
	SpillEventsSavedTotal  int64

	// Batches the spill itself had to drop for lack of capacity. Nonzero
	// means even the diagnostic trail is losing data.
	SpillBatchesDroppedTotal int64

	// Spill files removed by TTL or capacity eviction.
	SpillFilesExpiredTotal int64

	// Current spill directory state (gauges).
	SpillFilesCurrent int64
	SpillSizeBytes    int64
}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) String() string {
	var sb strings.Builder
	sb.Grow(512)

	fmt.Fprintf(&sb, "http_requests_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsTotal))
	fmt.Fprintf(&sb, "http_requests_accepted_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsAcceptedTotal))
	fmt.Fprintf(&sb, "http_requests_rejected_body_too_large_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsRejectedBodyTooLargeTotal))
	fmt.Fprintf(&sb, "http_requests_rejected_queue_full_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsRejectedQueueFullTotal))

	fmt.Fprintf(&sb, "upload_attempts_total=%d\n", atomic.LoadInt64(&m.UploadAttemptsTotal))
	fmt.Fprintf(&sb, "batches_delivered_total=%d\n", atomic.LoadInt64(&m.BatchesDeliveredTotal))
	fmt.Fprintf(&sb, "events_delivered_total=%d\n", atomic.LoadInt64(&m.EventsDeliveredTotal))
	fmt.Fprintf(&sb, "upload_rejections_total=%d\n", atomic.LoadInt64(&m.UploadRejectionsTotal))
	fmt.Fprintf(&sb, "upload_retried_failures_total=%d\n", atomic.LoadInt64(&m.UploadRetriedFailuresTotal))
	fmt.Fprintf(&sb, "batches_abandoned_total=%d\n", atomic.LoadInt64(&m.BatchesAbandonedTotal))
	fmt.Fprintf(&sb, "queue_depth=%d\n", atomic.LoadInt64(&m.QueueDepth))

	fmt.Fprintf(&sb, "archive_saves_total=%d\n", atomic.LoadInt64(&m.ArchiveSavesTotal))
	fmt.Fprintf(&sb, "archive_save_errors_total=%d\n", atomic.LoadInt64(&m.ArchiveSaveErrorsTotal))

	fmt.Fprintf(&sb, "spill_batches_saved_total=%d\n", atomic.LoadInt64(&m.SpillBatchesSavedTotal))
	fmt.Fprintf(&sb, "spill_events_saved_total=%d\n", atomic.LoadInt64(&m.SpillEventsSavedTotal))
	fmt.Fprintf(&sb, "spill_batches_dropped_total=%d\n", atomic.LoadInt64(&m.SpillBatchesDroppedTotal))
	fmt.Fprintf(&sb, "spill_files_expired_total=%d\n", atomic.LoadInt64(&m.SpillFilesExpiredTotal))
	fmt.Fprintf(&sb, "spill_files_current=%d\n", atomic.LoadInt64(&m.SpillFilesCurrent))
	fmt.Fprintf(&sb, "spill_size_bytes=%d\n", atomic.LoadInt64(&m.SpillSizeBytes))

	return sb.String()
}
