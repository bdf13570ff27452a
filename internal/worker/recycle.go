package worker

import (
	"beacon-agent/internal/model"
	"beacon-agent/internal/pool"
)

// recycleEvent zeroes a pooled event and returns it for reuse. The batch
// keeps a value copy, so the object is free the moment it is appended.
func recycleEvent(ev *model.Event) {
	pool.ResetEvent(ev)
	pool.EventPool.Put(ev)
}
