package queue

import (
	"fmt"
	"sync"
	"testing"

	"beacon-agent/internal/model"
)

func mkBatch(bodies ...string) model.Batch {
	b := make(model.Batch, 0, len(bodies))
	for _, s := range bodies {
		b = append(b, model.Event{Ts: 1, Body: s})
	}
	return b
}

func TestAppendPeekPopFIFO(t *testing.T) {
	q := New()

	if _, ok := q.PeekFront(); ok {
		t.Fatal("peek on empty queue returned a batch")
	}

	q.Append(mkBatch("a"))
	q.Append(mkBatch("b", "b2"))
	q.Append(mkBatch("c"))

	if got := q.Len(); got != 3 {
		t.Fatalf("Len = %d, want 3", got)
	}

	front, ok := q.PeekFront()
	if !ok || front[0].Body != "a" {
		t.Fatalf("front = %v, want batch a", front)
	}

	// Peek must not remove.
	front, ok = q.PeekFront()
	if !ok || front[0].Body != "a" {
		t.Fatalf("second peek = %v, want batch a", front)
	}

	q.PopFront()
	front, ok = q.PeekFront()
	if !ok || len(front) != 2 || front[0].Body != "b" {
		t.Fatalf("after pop front = %v, want batch b", front)
	}

	q.PopFront()
	q.PopFront()
	if got := q.Len(); got != 0 {
		t.Fatalf("Len after draining = %d, want 0", got)
	}

	// Pop on empty is a no-op.
	q.PopFront()
}

func TestAppendEmptyBatchIsNoop(t *testing.T) {
	q := New()
	q.Append(nil)
	q.Append(model.Batch{})
	if got := q.Len(); got != 0 {
		t.Fatalf("Len = %d, want 0 after appending empty batches", got)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	q := New()
	q.Append(mkBatch("first-1", "first-2"))
	q.Append(mkBatch("second"))
	q.Append(mkBatch("third-1", "third-2", "third-3"))

	snap, err := q.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	restored, err := Restore(snap)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if got := restored.Len(); got != 3 {
		t.Fatalf("restored Len = %d, want 3", got)
	}

	want := [][]string{
		{"first-1", "first-2"},
		{"second"},
		{"third-1", "third-2", "third-3"},
	}
	for i, bodies := range want {
		batch, ok := restored.PeekFront()
		if !ok {
			t.Fatalf("batch %d missing after restore", i)
		}
		if len(batch) != len(bodies) {
			t.Fatalf("batch %d has %d events, want %d", i, len(batch), len(bodies))
		}
		for j, body := range bodies {
			if batch[j].Body != body {
				t.Fatalf("batch %d event %d = %q, want %q", i, j, batch[j].Body, body)
			}
		}
		restored.PopFront()
	}
}

func TestSnapshotRestoreEmptyQueue(t *testing.T) {
	q := New()
	snap, err := q.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	restored, err := Restore(snap)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := restored.Len(); got != 0 {
		t.Fatalf("restored Len = %d, want 0", got)
	}

	// Nil/empty input also restores to an empty queue.
	restored, err = Restore(nil)
	if err != nil {
		t.Fatalf("Restore(nil): %v", err)
	}
	if got := restored.Len(); got != 0 {
		t.Fatalf("Restore(nil) Len = %d, want 0", got)
	}
}

func TestRestoreCorruptSnapshot(t *testing.T) {
	if _, err := Restore([]byte("{not json")); err == nil {
		t.Fatal("Restore accepted corrupt input")
	}
}

func TestConcurrentAppendAndPop(t *testing.T) {
	q := New()

	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	wg.Add(producers + 1)

	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Append(mkBatch(fmt.Sprintf("p%d-%d", p, i)))
			}
		}(p)
	}

	popped := 0
	go func() {
		defer wg.Done()
		for popped < producers*perProducer {
			if _, ok := q.PeekFront(); ok {
				q.PopFront()
				popped++
			}
		}
	}()

	wg.Wait()
	if got := q.Len(); got != 0 {
		t.Fatalf("Len = %d after popping everything, want 0", got)
	}
}
