package server

import (
	"bytes"
	"io"
	"net/http"
	"sync/atomic"

	"beacon-agent/internal/config"
	"beacon-agent/internal/metrics"
	"beacon-agent/internal/model"
	"beacon-agent/internal/pool"
	"beacon-agent/internal/timecache"
	"beacon-agent/internal/worker"
)

type Handler struct {
	cfg     config.Config
	metrics *metrics.Metrics
	worker  *worker.Manager
}

func NewHandler(cfg config.Config, m *metrics.Metrics, w *worker.Manager) *Handler {
	return &Handler{
		cfg:     cfg,
		metrics: m,
		worker:  w,
	}
}

// HandleCollect ingests one event per request.
//   - GET: event payload in the query string
//   - POST: event payload in the body
//
// Common behavior: body size limit (413), pooled buffers and event
// objects, push into EventCh with fail-fast drop when full (503). This
// is the agent's hot path.
func (h *Handler) HandleCollect(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodGet &&
		r.Method != http.MethodPost &&
		r.Method != http.MethodOptions {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// CORS preflight.
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodySize)
	defer r.Body.Close()

	var bodyStr string

	if r.Method == http.MethodGet {
		if len(r.URL.RawQuery) > int(h.cfg.MaxBodySize) {
			atomic.AddInt64(&h.metrics.HTTPRequestsTotal, 1)
			atomic.AddInt64(&h.metrics.HTTPRequestsRejectedBodyTooLargeTotal, 1)
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		bodyStr = r.URL.RawQuery

	} else {
		buf := pool.BodyPool.Get().(*bytes.Buffer)
		buf.Reset()
		defer pool.PutBody(buf, h.cfg.MaxBodySize*2)

		if _, err := io.Copy(buf, r.Body); err != nil {
			atomic.AddInt64(&h.metrics.HTTPRequestsTotal, 1)
			atomic.AddInt64(&h.metrics.HTTPRequestsRejectedBodyTooLargeTotal, 1)
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		bodyStr = buf.String()
	}

	ev := pool.EventPool.Get().(*model.Event)
	pool.ResetEvent(ev)

	ev.Ts = timecache.Unix()
	ev.IP = clientIP(r)
	ev.UserAgent = r.UserAgent()
	ev.Cookie = r.Header.Get("Cookie")
	ev.Body = bodyStr

	atomic.AddInt64(&h.metrics.HTTPRequestsTotal, 1)

	select {
	case h.worker.EventCh <- ev:
		atomic.AddInt64(&h.metrics.HTTPRequestsAcceptedTotal, 1)
		w.WriteHeader(http.StatusOK)

	default:
		// Queue full: drop fast and give the event object back.
		pool.ResetEvent(ev)
		pool.EventPool.Put(ev)

		atomic.AddInt64(&h.metrics.HTTPRequestsRejectedQueueFullTotal, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}
}

// HandleMetrics renders the operational counters as plain text.
func (h *Handler) HandleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, h.metrics.String())
}
