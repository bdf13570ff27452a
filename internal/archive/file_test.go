package archive

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "queue.json.gz"))
	ctx := context.Background()

	snapshot := []byte(`{"batches":[[{"ts":1,"body":"a"}]]}`)
	if err := store.Save(ctx, snapshot); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, snapshot) {
		t.Fatalf("Load = %q, want %q", got, snapshot)
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "never-written.gz"))

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load on first boot: %v", err)
	}
	if got != nil {
		t.Fatalf("Load on first boot = %q, want nil", got)
	}
}

func TestFileStoreSaveReplaces(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "queue.json.gz"))
	ctx := context.Background()

	if err := store.Save(ctx, []byte("old snapshot")); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := store.Save(ctx, []byte("new snapshot")); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "new snapshot" {
		t.Fatalf("Load = %q, want the replacement", got)
	}
}

func TestFileStoreCreatesParentDir(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "dir", "queue.json.gz"))
	if err := store.Save(context.Background(), []byte("x")); err != nil {
		t.Fatalf("Save into missing dir: %v", err)
	}
}

func TestCompressRoundTripLargeSnapshot(t *testing.T) {
	// Bigger than the pool buffer's initial capacity so growth paths run.
	big := bytes.Repeat([]byte(`{"batches":[[{"ts":1}]]},`), 50_000)

	packed, err := compress(big)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if len(packed) >= len(big) {
		t.Fatalf("compressed %d bytes to %d; JSON should shrink", len(big), len(packed))
	}

	got, err := decompress(packed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(got, big) {
		t.Fatal("round trip mismatch")
	}
}
