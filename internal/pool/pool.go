package pool

import (
	"bytes"
	"sync"

	"beacon-agent/internal/model"

	"github.com/klauspost/compress/gzip"
)

// The agent allocates on every request: body reads, event objects, gzip
// output buffers for spill/archive files. These pools exist to keep that
// churn off the GC.

var (
	// EventPool reuses Event objects between /collect requests.
	EventPool = sync.Pool{
		New: func() any { return new(model.Event) },
	}

	// BodyPool holds scratch buffers for POST bodies. 4KB initial
	// capacity covers the common small-payload case; oversized buffers
	// are dropped by the caller (see PutBody).
	BodyPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 4*1024))
		},
	}

	// BufferPool holds gzip output buffers for spill and archive
	// encoding. 256KB initial capacity fits a typical batch.
	BufferPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 256*1024))
		},
	}

	// GzipPool reuses gzip writers; constructing one per file is
	// expensive. BestSpeed: these are local at-rest files, not payloads.
	GzipPool = sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
			return w
		},
	}
)

// MaxBufferCap is the largest gzip buffer returned to BufferPool.
// Anything bigger is left to the GC so one huge batch cannot pin memory.
const MaxBufferCap = 1 * 1024 * 1024 // 1MB

// ResetEvent zeroes an Event so it can go back to EventPool.
func ResetEvent(e *model.Event) {
	*e = model.Event{}
}

// PutBody returns buf to BodyPool unless it has grown past maxCap
// (normally MaxBodySize*2), in which case it is dropped.
func PutBody(buf *bytes.Buffer, maxCap int64) {
	if int64(buf.Cap()) <= maxCap {
		buf.Reset()
		BodyPool.Put(buf)
	}
}

// PutBuffer returns a gzip output buffer to BufferPool, subject to
// MaxBufferCap.
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= MaxBufferCap {
		buf.Reset()
		BufferPool.Put(buf)
	}
}
