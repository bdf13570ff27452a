// internal/queue/queue.go
package queue

import (
	"fmt"
	"sync"

	"beacon-agent/internal/model"

	json "github.com/goccy/go-json"
)

// BatchQueue is the durable FIFO of event batches awaiting upload.
//
// Batches are appended at the back by collection goroutines and removed
// from the front by the upload scheduler — and only after the collector
// confirmed the batch (200) or the batch was abandoned at the rejection
// limit. Every operation takes the one mutex, so append from caller
// goroutines and peek/pop from the scheduler never interleave.
//
// The whole queue serializes to a JSON snapshot and reconstructs from it
// with order and content intact; that snapshot is what survives restarts.
type BatchQueue struct {
	mu      sync.Mutex
	batches []model.Batch
}

// snapshot is the archive wire format: one JSON object holding the
// ordered batches. Changing this breaks restore of existing archives.
type snapshot struct {
	Batches []model.Batch `json:"batches"`
}

// New returns an empty queue.
func New() *BatchQueue {
	return &BatchQueue{batches: []model.Batch{}}
}

// Restore reconstructs a queue from a Snapshot payload. Empty input is
// an empty queue; corrupt input is an error, not a silent reset, so the
// caller decides whether losing the backlog is acceptable.
func Restore(data []byte) (*BatchQueue, error) {
	if len(data) == 0 {
		return New(), nil
	}

	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("restore batch queue: %w", err)
	}
	if s.Batches == nil {
		s.Batches = []model.Batch{}
	}
	return &BatchQueue{batches: s.Batches}, nil
}

// Append adds a batch at the back. Empty batches are dropped; an empty
// upload is meaningless and would still burn a request cycle.
func (q *BatchQueue) Append(batch model.Batch) {
	if len(batch) == 0 {
		return
	}
	q.mu.Lock()
	q.batches = append(q.batches, batch)
	q.mu.Unlock()
}

// PeekFront returns the front batch without removing it.
func (q *BatchQueue) PeekFront() (model.Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.batches) == 0 {
		return nil, false
	}
	return q.batches[0], true
}

// PopFront removes the front batch; no-op on an empty queue.
func (q *BatchQueue) PopFront() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.batches) == 0 {
		return
	}
	q.batches[0] = nil // release the backing array's reference
	q.batches = q.batches[1:]
}

// Len returns the number of queued batches.
func (q *BatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batches)
}

// Snapshot serializes the queue. The result round-trips exactly through
// Restore: same batches, same order, same events.
func (q *BatchQueue) Snapshot() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := json.Marshal(snapshot{Batches: q.batches})
	if err != nil {
		return nil, fmt.Errorf("snapshot batch queue: %w", err)
	}
	return data, nil
}
