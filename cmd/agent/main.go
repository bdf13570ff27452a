package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"beacon-agent/internal/archive"
	"beacon-agent/internal/config"
	"beacon-agent/internal/logger"
	"beacon-agent/internal/metrics"
	"beacon-agent/internal/server"
	"beacon-agent/internal/spill"
	"beacon-agent/internal/uploader"
	"beacon-agent/internal/worker"

	zlog "github.com/rs/zerolog/log"
)

func main() {

	// Container platforms hand out fractional CPU shares; letting the
	// runtime assume every host core just produces busy scheduling.
	// Default to one logical CPU, overridable per deployment.
	if v := os.Getenv("GOMAXPROCS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			runtime.GOMAXPROCS(n)
		}
	} else {
		runtime.GOMAXPROCS(1)
	}

	cfg := config.Load()
	logger.Init(cfg)
	m := metrics.New()

	// ------------------------------------------------------------------
	// Durable queue restore
	// ------------------------------------------------------------------
	//
	// The archive store holds the last queue snapshot of this instance.
	// Batches accepted before the previous shutdown (or crash) come back
	// here; upload attempt state intentionally does not — a restarted
	// agent retries the front batch from a clean slate.
	store := newArchiveStore(cfg, m)

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 15*time.Second)
	snapshot, err := store.Load(loadCtx)
	cancelLoad()
	if err != nil {
		// A corrupt or unreachable archive must not keep the agent down;
		// collecting new events beats preserving a broken backlog.
		zlog.Error().Err(err).Msg("archive restore failed, starting with empty queue")
		snapshot = nil
	}

	// ------------------------------------------------------------------
	// Upload pipeline
	// ------------------------------------------------------------------
	//
	//   handlers → EventCh → Manager (batching) → Uploader (FSM) → collector
	//
	// The spill manager observes the uploader and keeps a local trail of
	// batches dropped at the rejection limit.
	sp := spill.NewManager(cfg, m)

	up, err := uploader.New(
		snapshot,
		config.FileSource{Path: cfg.CredentialsFile},
		uploader.NewHTTPTransport(cfg.TransportTimeout),
		m,
		uploader.Options{
			InitialBackoff: cfg.InitialBackoff,
			IdleInterval:   cfg.IdleInterval,
			RejectionLimit: cfg.RejectionLimit,
			Observer:       sp,
		},
	)
	if err != nil {
		zlog.Fatal().Err(err).Msg("uploader init failed")
	}

	mgr := worker.NewManager(cfg, m, up, sp, store)
	mgr.Start()

	// ------------------------------------------------------------------
	// HTTP endpoints
	// ------------------------------------------------------------------
	//   /collect : event intake (hot path)
	//   /metrics : operational counters
	//   /health  : load balancer target check
	h := server.NewHandler(cfg, m, mgr)

	mux := http.NewServeMux()
	mux.HandleFunc("/collect", h.HandleCollect)
	mux.HandleFunc("/metrics", h.HandleMetrics)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  8 * time.Second,
		WriteTimeout: 8 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ------------------------------------------------------------------
	// Graceful shutdown
	// ------------------------------------------------------------------
	//
	// SIGTERM: stop accepting requests first, then drain the batcher,
	// stop the uploader after its in-flight cycle, and persist the final
	// queue snapshot so nothing accepted is lost across the restart.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

		sig := <-sigCh
		zlog.Info().Str("signal", sig.String()).Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := srv.Shutdown(ctx); err != nil {
			zlog.Error().Err(err).Msg("http shutdown")
		}
		cancel()
	}()

	zlog.Info().Str("addr", cfg.HTTPAddr).Msg("agent listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zlog.Fatal().Err(err).Msg("http server terminated")
	}

	zlog.Info().Msg("stopping pipeline")
	mgr.Shutdown()
	up.Close()

	saveCtx, cancelSave := context.WithTimeout(context.Background(), 15*time.Second)
	if snap, err := up.Archive(); err != nil {
		zlog.Error().Err(err).Msg("final queue snapshot failed")
	} else if err := store.Save(saveCtx, snap); err != nil {
		zlog.Error().Err(err).Int("queued", up.QueueLen()).Msg("final archive save failed")
	}
	cancelSave()

	zlog.Info().Msg("shutdown complete")
}

// newArchiveStore picks the snapshot backend from config.
func newArchiveStore(cfg config.Config, m *metrics.Metrics) archive.Store {
	switch cfg.ArchiveBackend {
	case config.ArchiveBackendS3:
		return archive.NewS3Store(cfg, m)
	default:
		return archive.NewFileStore(cfg.ArchiveFile)
	}
}
