// internal/archive/store.go
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"beacon-agent/internal/pool"

	"github.com/klauspost/compress/gzip"
)

// Store persists the uploader's queue snapshot between process runs.
// Save replaces the previous snapshot wholesale; Load returns the most
// recent one, or (nil, nil) when no snapshot exists yet (first boot).
//
// Snapshots are opaque bytes here — the queue package owns the format.
// Both backends gzip at rest; snapshots are JSON and compress well.
type Store interface {
	Save(ctx context.Context, snapshot []byte) error
	Load(ctx context.Context) ([]byte, error)
}

// compress gzips a snapshot into a caller-owned slice using the shared
// buffer/writer pools.
func compress(snapshot []byte) ([]byte, error) {
	buf := pool.BufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer pool.PutBuffer(buf)

	gz := pool.GzipPool.Get().(*gzip.Writer)
	gz.Reset(buf)

	if _, err := gz.Write(snapshot); err != nil {
		_ = gz.Close()
		pool.GzipPool.Put(gz)
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		pool.GzipPool.Put(gz)
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	pool.GzipPool.Put(gz)

	// The pool buffer gets reused; hand the caller its own copy.
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// decompress reverses compress.
func decompress(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	defer gz.Close()

	out, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	return out, nil
}
