package uploader

import "time"

// phase is the scheduler-facing classification of the attempt state.
type phase int

const (
	// phaseIdle: no pending request (queue empty or credentials unusable).
	phaseIdle phase = iota
	// phaseWaiting: a pending request exists but its retry delay has not
	// elapsed yet.
	phaseWaiting
	// phaseReady: a pending request exists and may be sent now.
	phaseReady
)

// uploadState is the work-in-progress state for the batch currently at
// the front of the queue: the request being (re)sent, the doubling
// backoff, the earliest next send time, and how often the collector has
// rejected this batch.
//
// It always pertains to the current front batch and is fully reset
// whenever that batch leaves the queue (delivered or abandoned). Only the
// scheduler goroutine touches it.
type uploadState struct {
	pending *Request

	initialBackoff time.Duration
	backoff        time.Duration
	nextEligible   time.Time

	rejections int
}

func newUploadState(initialBackoff time.Duration) *uploadState {
	s := &uploadState{initialBackoff: initialBackoff}
	s.reset()
	return s
}

// reset clears the attempt-scoped fields. Called on construction, on
// delivery, and on abandonment.
func (s *uploadState) reset() {
	s.pending = nil
	s.backoff = s.initialBackoff
	s.nextEligible = time.Time{}
	s.rejections = 0
}

// phase classifies the state at the given instant.
func (s *uploadState) phase(now time.Time) phase {
	switch {
	case s.pending == nil:
		return phaseIdle
	case now.Before(s.nextEligible):
		return phaseWaiting
	default:
		return phaseReady
	}
}

// recordFailure schedules the next retry: the current backoff becomes the
// wait, and the backoff doubles for the failure after that. Pure
// exponential, no jitter, no cap — a long network outage grows the delay
// without bound, matching the delivery contract.
func (s *uploadState) recordFailure(now time.Time) time.Duration {
	d := s.backoff
	s.nextEligible = now.Add(d)
	s.backoff *= 2
	return d
}
