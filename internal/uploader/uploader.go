package uploader

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"beacon-agent/internal/config"
	"beacon-agent/internal/metrics"
	"beacon-agent/internal/model"
	"beacon-agent/internal/queue"

	json "github.com/goccy/go-json"
	zlog "github.com/rs/zerolog/log"
)

// Defaults match the collector delivery contract.
const (
	DefaultInitialBackoff = time.Second
	DefaultIdleInterval   = time.Minute
	DefaultRejectionLimit = 3
)

// Options tunes an Uploader. Zero values fall back to the defaults above;
// tests shrink the intervals to milliseconds.
type Options struct {
	InitialBackoff time.Duration
	IdleInterval   time.Duration
	RejectionLimit int
	Clock          Clock
	Observer       Observer
}

// Uploader accepts batches of events and sends them to the collector
// serially from one background goroutine.
//
// It is a finite state machine over uploadState: one in-flight request at
// a time, strict FIFO over the durable queue, exponential backoff on
// failure, and drop-after-3-rejections so a poison batch cannot stall the
// queue forever. Upload never blocks the caller on network I/O and never
// returns an error; delivery, retry, and abandonment are all internal.
//
// Concurrency model: all check-state cycles run on the single run
// goroutine, so uploadState needs no lock — exclusion is structural.
// Upload calls from arbitrary goroutines only append to the (mutex-
// guarded) queue and poke the wake channel; overlapping pokes coalesce
// because the channel holds at most one token.
type Uploader struct {
	queue   *queue.BatchQueue
	state   *uploadState
	creds   config.CredentialSource
	tr      Transport
	metrics *metrics.Metrics

	clock    Clock
	observer Observer

	idleInterval   time.Duration
	rejectionLimit int

	wake      chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// listRequest is the collector wire format: a JSON object with one field
// holding the ordered event array.
type listRequest struct {
	Data model.Batch `json:"data"`
}

// New builds an Uploader and starts its scheduler goroutine. A non-empty
// archive restores the queue persisted by a previous process; the first
// check is triggered immediately so carried-over batches resume without
// waiting for a new Upload call. Attempt state (backoff, rejection count)
// is never archived — a restarted process retries from a clean slate.
func New(archive []byte, creds config.CredentialSource, tr Transport, m *metrics.Metrics, opts Options) (*Uploader, error) {
	q, err := queue.Restore(archive)
	if err != nil {
		return nil, err
	}

	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = DefaultIdleInterval
	}
	if opts.RejectionLimit <= 0 {
		opts.RejectionLimit = DefaultRejectionLimit
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}

	u := &Uploader{
		queue:          q,
		state:          newUploadState(opts.InitialBackoff),
		creds:          creds,
		tr:             tr,
		metrics:        m,
		clock:          opts.Clock,
		observer:       opts.Observer,
		idleInterval:   opts.IdleInterval,
		rejectionLimit: opts.RejectionLimit,
		wake:           make(chan struct{}, 1),
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
	}
	atomic.StoreInt64(&u.metrics.QueueDepth, int64(q.Len()))

	go u.run()
	u.trigger()

	return u, nil
}

// Upload appends a batch and wakes the scheduler. Fire-and-forget: the
// call returns before any network activity and regardless of eventual
// delivery. Empty batches are not queued but still trigger a check.
func (u *Uploader) Upload(batch model.Batch) {
	zlog.Debug().Int("events", len(batch)).Msg("append batch")
	if len(batch) > 0 {
		u.queue.Append(batch)
		atomic.StoreInt64(&u.metrics.QueueDepth, int64(u.queue.Len()))
	}
	u.trigger()
}

// Archive returns the durable snapshot of the queue — queued batches
// only, no attempt state. Safe to call at any time.
func (u *Uploader) Archive() ([]byte, error) {
	return u.queue.Snapshot()
}

// QueueLen reports the number of batches currently queued.
func (u *Uploader) QueueLen() int {
	return u.queue.Len()
}

// Close stops the scheduler goroutine after any in-flight check cycle
// finishes. Queued batches stay in the queue; callers archive them after
// Close during shutdown.
func (u *Uploader) Close() {
	u.closeOnce.Do(func() {
		close(u.done)
	})
	<-u.stopped
}

// trigger requests one scheduler check. Non-blocking; a pending token
// already in the channel absorbs any number of concurrent triggers.
func (u *Uploader) trigger() {
	select {
	case u.wake <- struct{}{}:
	default:
	}
}

// run is the scheduler timeline: wait for a wake-up or timer, run check
// cycles until one asks for a delay, sleep that long, repeat. Because
// this is the only goroutine executing checkState, no two cycles can
// ever overlap.
func (u *Uploader) run() {
	defer close(u.stopped)

	timer := time.NewTimer(u.idleInterval)
	defer timer.Stop()

	for {
		select {
		case <-u.done:
			return
		case <-u.wake:
		case <-timer.C:
		}

		var delay time.Duration
		for {
			delay = u.checkState()
			if delay > 0 {
				break
			}
			// Terminal outcome (delivered or abandoned): continue with
			// the next batch immediately, unless we are shutting down.
			select {
			case <-u.done:
				return
			default:
			}
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(delay)
	}
}

// checkState is the core of the uploader state machine: inspect the
// state, perform the action it implies, advance. It returns how long the
// scheduler should sleep before the next check; zero means "check again
// right away" (a batch just left the queue).
func (u *Uploader) checkState() time.Duration {
	if u.state.pending == nil {
		u.state.pending = u.buildRequest()
	}

	now := u.clock.Now()

	switch u.state.phase(now) {
	case phaseIdle:
		// Nothing to upload or credentials unusable; look again later.
		return u.idleInterval

	case phaseWaiting:
		// Woken too early; sleep out the remaining retry delay.
		return u.state.nextEligible.Sub(now)
	}

	// phaseReady: send.
	atomic.AddInt64(&u.metrics.UploadAttemptsTotal, 1)
	zlog.Debug().Msg("send upload request")

	resp, err := u.tr.Do(u.state.pending)
	if err != nil {
		zlog.Warn().Err(err).Msg("upload transport error")
	} else {
		if resp.StatusCode == http.StatusOK {
			u.popFront(true)
			return 0
		}

		zlog.Error().
			Int("status", resp.StatusCode).
			Str("response", string(resp.Body)).
			Msg("upload refused by collector")

		// Only 400 marks the batch itself as bad. Every other status is
		// treated like a transport error: retried, uncounted.
		if resp.StatusCode == http.StatusBadRequest {
			u.state.rejections++
			atomic.AddInt64(&u.metrics.UploadRejectionsTotal, 1)
		}
	}

	if u.state.rejections >= u.rejectionLimit {
		// Rejected repeatedly; drop the batch so it cannot stall the
		// ones behind it.
		zlog.Error().
			Int("rejections", u.state.rejections).
			Msg("drop batch after repeated rejection")
		u.popFront(false)
		return 0
	}

	atomic.AddInt64(&u.metrics.UploadRetriedFailuresTotal, 1)
	return u.state.recordFailure(now)
}

// popFront retires the front batch — the one uploadState pertains to —
// resetting the attempt state and notifying the observer.
func (u *Uploader) popFront(delivered bool) {
	batch, _ := u.queue.PeekFront()

	u.state.reset()
	u.queue.PopFront()
	atomic.StoreInt64(&u.metrics.QueueDepth, int64(u.queue.Len()))

	if delivered {
		atomic.AddInt64(&u.metrics.BatchesDeliveredTotal, 1)
		atomic.AddInt64(&u.metrics.EventsDeliveredTotal, int64(len(batch)))
		u.observer.BatchDelivered(batch)
	} else {
		atomic.AddInt64(&u.metrics.BatchesAbandonedTotal, 1)
		u.observer.BatchAbandoned(batch)
	}
}

// buildRequest builds the HTTP exchange for the current front batch, or
// nil when there is nothing to do: empty queue, or credentials that are
// missing or incomplete. The credential gap is deliberately not a batch
// failure — no rejection count, no backoff — just idle until a later
// check finds the credentials rotated in.
func (u *Uploader) buildRequest() *Request {
	batch, ok := u.queue.PeekFront()
	if !ok {
		return nil
	}

	creds, ok := u.creds.Credentials()
	if !ok {
		zlog.Debug().Msg("collector credentials unavailable; deferring upload")
		return nil
	}

	body, err := json.Marshal(listRequest{Data: batch})
	if err != nil {
		// Unreachable for model.Event, but a corrupt restored batch must
		// not crash the scheduler.
		zlog.Error().Err(err).Msg("encode batch body")
		return nil
	}

	zlog.Info().Int("events", len(batch)).Msg("create upload request")

	return &Request{
		URL:           fmt.Sprintf(creds.ServerURLFormat, creds.AccountID),
		Authorization: "Basic " + base64.StdEncoding.EncodeToString([]byte(creds.BeaconKey)),
		Body:          body,
	}
}
