package uploader

import (
	"testing"
	"time"
)

func TestResetClearsAttemptState(t *testing.T) {
	s := newUploadState(time.Second)

	s.pending = &Request{URL: "https://collector.test"}
	s.rejections = 2
	s.recordFailure(time.Now())

	s.reset()

	if s.pending != nil {
		t.Fatal("pending not cleared by reset")
	}
	if s.backoff != time.Second {
		t.Fatalf("backoff = %v after reset, want initial %v", s.backoff, time.Second)
	}
	if !s.nextEligible.IsZero() {
		t.Fatalf("nextEligible = %v after reset, want zero", s.nextEligible)
	}
	if s.rejections != 0 {
		t.Fatalf("rejections = %d after reset, want 0", s.rejections)
	}
}

func TestBackoffDoublesPerFailure(t *testing.T) {
	const initial = 100 * time.Millisecond
	s := newUploadState(initial)
	now := time.Unix(1000, 0)

	// Delays across consecutive failures must be d, 2d, 4d, ...
	want := []time.Duration{initial, 2 * initial, 4 * initial, 8 * initial}
	for i, w := range want {
		got := s.recordFailure(now)
		if got != w {
			t.Fatalf("failure %d delay = %v, want %v", i, got, w)
		}
		if !s.nextEligible.Equal(now.Add(w)) {
			t.Fatalf("failure %d nextEligible = %v, want %v", i, s.nextEligible, now.Add(w))
		}
	}
}

func TestPhaseClassification(t *testing.T) {
	s := newUploadState(time.Second)
	now := time.Unix(1000, 0)

	if got := s.phase(now); got != phaseIdle {
		t.Fatalf("phase without pending = %v, want idle", got)
	}

	s.pending = &Request{}
	if got := s.phase(now); got != phaseReady {
		t.Fatalf("phase with pending and no wait = %v, want ready", got)
	}

	s.recordFailure(now)
	if got := s.phase(now); got != phaseWaiting {
		t.Fatalf("phase inside backoff window = %v, want waiting", got)
	}
	if got := s.phase(now.Add(time.Second)); got != phaseReady {
		t.Fatalf("phase at nextEligible = %v, want ready", got)
	}
}
