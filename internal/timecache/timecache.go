// internal/timecache/timecache.go
package timecache

import (
	"sync/atomic"
	"time"
)

// timecache caches the current UTC epoch seconds, refreshed by a
// 1-second ticker.
//
// The agent stamps every collected event and every spill/archive filename
// with the current time; calling time.Now() per event at collection rates
// is wasted syscalls, so second precision is cached instead.
//
// Used by:
//   - model.Event.Ts (collection time)
//   - spill filenames (<unix>_<instance>_<counter>)

var unixSec atomic.Int64

func init() {
	unixSec.Store(time.Now().Unix())

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for range ticker.C {
			unixSec.Store(time.Now().Unix())
		}
	}()
}

// Unix returns current UTC epoch seconds (cached, 1-second precision).
func Unix() int64 {
	return unixSec.Load()
}
