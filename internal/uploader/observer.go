package uploader

import "beacon-agent/internal/model"

// Observer receives terminal batch outcomes from the scheduler goroutine.
// This is the diagnostic side channel for delivery and data loss: the
// spill manager persists abandoned batches through it, and tests use it
// to synchronize deterministically instead of polling.
//
// Callbacks run inside the scheduler's check cycle; implementations must
// not call back into the Uploader and should return quickly.
type Observer interface {
	// BatchDelivered fires after the collector confirmed the batch and it
	// was popped from the queue.
	BatchDelivered(batch model.Batch)

	// BatchAbandoned fires after the batch was dropped at the rejection
	// limit and popped from the queue.
	BatchAbandoned(batch model.Batch)
}

// NopObserver ignores all outcomes.
type NopObserver struct{}

func (NopObserver) BatchDelivered(model.Batch) {}
func (NopObserver) BatchAbandoned(model.Batch) {}
