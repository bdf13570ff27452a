// internal/timecache/filename.go
package timecache

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// Filenames for spill files follow a deterministic pattern:
//
//	<unix>_<instance>_<counter>.jsonl.gz
//
// e.g. 1764721594_agent1_000042.jsonl.gz
//
// Lexicographic order equals time order, which is what the spill manager's
// oldest-first eviction and TTL sweep rely on.

var globalCounter uint64

// NextCounter returns an atomically increasing sequence number, wrapping
// at 1,000,000 to keep filenames short. Wrap-around collisions are ruled
// out in practice by the timestamp + instance ID prefix.
func NextCounter() uint64 {
	return atomic.AddUint64(&globalCounter, 1) % 1_000_000
}

// NewFilename builds a new "<unix>_<instance>_<counter>.jsonl.gz" name.
func NewFilename(instanceID string) string {
	return fmt.Sprintf("%d_%s_%06d.jsonl.gz", Unix(), instanceID, NextCounter())
}

// UnixFromFilename parses the Unix seconds prefix out of a filename
// produced by NewFilename. Returns false for names in any other shape.
func UnixFromFilename(name string) (int64, bool) {
	idx := strings.IndexByte(name, '_')
	if idx <= 0 {
		return 0, false
	}
	sec, err := strconv.ParseInt(name[:idx], 10, 64)
	if err != nil || sec <= 0 {
		return 0, false
	}
	return sec, true
}
