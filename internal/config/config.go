// internal/config/config.go
package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"strconv"
	"time"
)

// Archive backends.
const (
	ArchiveBackendFile = "file"
	ArchiveBackendS3   = "s3"
)

// Config holds every environment-derived setting of the agent process.
// Loaded once by Load() at startup and read-only afterwards.
//
// The collector credentials (account id, beacon key, URL template) are
// deliberately NOT here: they rotate at runtime and are re-read from
// CredentialsFile on every upload attempt (see creds.go).
type Config struct {

	// ---------------------------
	// Identity / network
	// ---------------------------

	ServiceName string // logical service name, stamped on every log line
	InstanceID  string // unique agent instance ID (hostname, random hex fallback)
	HTTPAddr    string // HTTP bind address (e.g. ":8080")

	// ---------------------------
	// Collection parameters
	// ---------------------------

	MaxBodySize   int64         // max size of a single /collect body (bytes)
	ChannelSize   int           // EventCh buffer size (backpressure boundary)
	BatchSize     int           // events per batch (flush when reached)
	FlushInterval time.Duration // time-based batch flush period

	// ---------------------------
	// Uploader tuning
	// ---------------------------

	CredentialsFile  string        // path to the collector credentials JSON
	TransportTimeout time.Duration // per-request timeout of the HTTP transport
	InitialBackoff   time.Duration // first retry delay; doubles per failure, uncapped
	IdleInterval     time.Duration // recheck period when there is nothing to send
	RejectionLimit   int           // 400-rejections per batch before it is dropped

	// ---------------------------
	// Archive (durable queue snapshot)
	// ---------------------------

	ArchiveBackend  string        // "file" or "s3"
	ArchiveFile     string        // file backend: snapshot path
	ArchiveInterval time.Duration // periodic snapshot period

	AWSRegion     string        // s3 backend: region
	ArchiveBucket string        // s3 backend: bucket
	ArchivePrefix string        // s3 backend: key prefix
	S3Timeout     time.Duration // per-attempt PutObject timeout
	S3AppRetries  int           // app-level retry count (SDK retry is pinned to 0)

	// ---------------------------
	// Spill (abandoned-batch diagnostics)
	// ---------------------------

	SpillDir           string        // local spill directory
	SpillMaxAge        time.Duration // spill file TTL
	SpillMaxSizeBytes  int64         // total spill capacity (bytes)
	SpillSweepInterval time.Duration // TTL sweep period

	// ---------------------------
	// Logging
	// ---------------------------

	LogLevel   string // zerolog level name
	LogPretty  bool   // console writer instead of JSON
	LogSampleN uint32 // sample 1/N of Debug/Info lines (0/1 = keep all)
}

// Load reads the configuration from environment variables. Required
// variables missing or malformed terminate the process immediately
// (fail-fast); tunables fall back to production defaults.
func Load() Config {
	cfg := Config{
		ServiceName: envOr("SERVICE_NAME", "beacon-agent"),
		InstanceID:  fallbackInstanceID(),
		HTTPAddr:    must("HTTP_ADDR"),

		MaxBodySize:   mustInt64("MAX_BODY_SIZE"),
		ChannelSize:   mustInt("CHANNEL_SIZE"),
		BatchSize:     mustInt("BATCH_SIZE"),
		FlushInterval: mustDur("FLUSH_INTERVAL"),

		CredentialsFile:  must("CREDENTIALS_FILE"),
		TransportTimeout: envDurOr("TRANSPORT_TIMEOUT", 10*time.Second),
		InitialBackoff:   envDurOr("INITIAL_BACKOFF", time.Second),
		IdleInterval:     envDurOr("IDLE_INTERVAL", time.Minute),
		RejectionLimit:   envIntOr("REJECTION_LIMIT", 3),

		ArchiveBackend:  must("ARCHIVE_BACKEND"),
		ArchiveInterval: envDurOr("ARCHIVE_INTERVAL", 30*time.Second),
		S3Timeout:       envDurOr("S3_TIMEOUT", 5*time.Second),
		S3AppRetries:    envIntOr("S3_APP_RETRIES", 3),

		SpillDir:           must("SPILL_DIR"),
		SpillMaxAge:        envDurOr("SPILL_MAX_AGE", 72*time.Hour),
		SpillMaxSizeBytes:  envInt64Or("SPILL_MAX_SIZE_BYTES", 256*1024*1024),
		SpillSweepInterval: envDurOr("SPILL_SWEEP_INTERVAL", time.Minute),

		LogLevel:   envOr("LOG_LEVEL", "info"),
		LogPretty:  envBoolOr("LOG_PRETTY", false),
		LogSampleN: envUint32Or("LOG_SAMPLE_N", 0),
	}

	switch cfg.ArchiveBackend {
	case ArchiveBackendFile:
		cfg.ArchiveFile = must("ARCHIVE_FILE")
	case ArchiveBackendS3:
		cfg.AWSRegion = must("AWS_REGION")
		cfg.ArchiveBucket = must("ARCHIVE_BUCKET")
		cfg.ArchivePrefix = must("ARCHIVE_PREFIX")
	default:
		log.Fatalf("invalid ARCHIVE_BACKEND=%q (want %q or %q)",
			cfg.ArchiveBackend, ArchiveBackendFile, ArchiveBackendS3)
	}

	return cfg
}

// must / mustInt / mustInt64 / mustDur
//
// Required environment variables: missing or malformed values log and
// terminate immediately so a misdeployed agent never starts half-configured.
func must(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("missing required env: %s", key)
	}
	return v
}

func mustInt(key string) int {
	v := must(key)
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int env %s=%q: %v", key, v, err)
	}
	return n
}

func mustInt64(key string) int64 {
	v := must(key)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("invalid int64 env %s=%q: %v", key, v, err)
	}
	return n
}

func mustDur(key string) time.Duration {
	v := must(key)
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration env %s=%q: %v", key, v, err)
	}
	return d
}

// envOr and friends: optional variables with production defaults.
// A malformed optional value is still fatal; silently ignoring a typoed
// tunable is worse than failing the deploy.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int env %s=%q: %v", key, v, err)
	}
	return n
}

func envInt64Or(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("invalid int64 env %s=%q: %v", key, v, err)
	}
	return n
}

func envDurOr(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration env %s=%q: %v", key, v, err)
	}
	return d
}

func envBoolOr(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("invalid bool env %s=%q: %v", key, v, err)
	}
	return b
}

func envUint32Or(key string, def uint32) uint32 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		log.Fatalf("invalid uint env %s=%q: %v", key, v, err)
	}
	return uint32(n)
}

// fallbackInstanceID identifies this agent instance.
//   - default: hostname (unique per task/container in orchestrated envs)
//   - fallback: 12-char random hex
func fallbackInstanceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	var b [6]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
