package config

import (
	"testing"
	"time"
)

// setRequired fills every required variable so Load does not fail-fast;
// individual tests override what they probe.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("MAX_BODY_SIZE", "65536")
	t.Setenv("CHANNEL_SIZE", "1024")
	t.Setenv("BATCH_SIZE", "500")
	t.Setenv("FLUSH_INTERVAL", "5s")
	t.Setenv("CREDENTIALS_FILE", "/etc/beacon/creds.json")
	t.Setenv("ARCHIVE_BACKEND", "file")
	t.Setenv("ARCHIVE_FILE", "/var/lib/beacon/queue.json.gz")
	t.Setenv("SPILL_DIR", "/var/lib/beacon/spill")
}

func TestLoadRequiredAndDefaults(t *testing.T) {
	setRequired(t)

	cfg := Load()

	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.BatchSize != 500 || cfg.ChannelSize != 1024 || cfg.MaxBodySize != 65536 {
		t.Fatalf("collection params = %d/%d/%d", cfg.BatchSize, cfg.ChannelSize, cfg.MaxBodySize)
	}
	if cfg.FlushInterval != 5*time.Second {
		t.Fatalf("FlushInterval = %v", cfg.FlushInterval)
	}
	if cfg.ArchiveBackend != ArchiveBackendFile || cfg.ArchiveFile == "" {
		t.Fatalf("archive backend = %q file = %q", cfg.ArchiveBackend, cfg.ArchiveFile)
	}

	// Uploader tunables default to the collector delivery contract.
	if cfg.InitialBackoff != time.Second {
		t.Fatalf("InitialBackoff default = %v, want 1s", cfg.InitialBackoff)
	}
	if cfg.IdleInterval != time.Minute {
		t.Fatalf("IdleInterval default = %v, want 1m", cfg.IdleInterval)
	}
	if cfg.RejectionLimit != 3 {
		t.Fatalf("RejectionLimit default = %d, want 3", cfg.RejectionLimit)
	}
	if cfg.TransportTimeout != 10*time.Second {
		t.Fatalf("TransportTimeout default = %v, want 10s", cfg.TransportTimeout)
	}

	if cfg.InstanceID == "" {
		t.Fatal("InstanceID empty")
	}
	if cfg.ServiceName != "beacon-agent" {
		t.Fatalf("ServiceName default = %q", cfg.ServiceName)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("INITIAL_BACKOFF", "250ms")
	t.Setenv("IDLE_INTERVAL", "10s")
	t.Setenv("REJECTION_LIMIT", "5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("LOG_SAMPLE_N", "10")

	cfg := Load()

	if cfg.InitialBackoff != 250*time.Millisecond {
		t.Fatalf("InitialBackoff = %v", cfg.InitialBackoff)
	}
	if cfg.IdleInterval != 10*time.Second {
		t.Fatalf("IdleInterval = %v", cfg.IdleInterval)
	}
	if cfg.RejectionLimit != 5 {
		t.Fatalf("RejectionLimit = %d", cfg.RejectionLimit)
	}
	if cfg.LogLevel != "debug" || !cfg.LogPretty || cfg.LogSampleN != 10 {
		t.Fatalf("log config = %q/%v/%d", cfg.LogLevel, cfg.LogPretty, cfg.LogSampleN)
	}
}

func TestLoadS3Backend(t *testing.T) {
	setRequired(t)
	t.Setenv("ARCHIVE_BACKEND", "s3")
	t.Setenv("AWS_REGION", "ap-northeast-2")
	t.Setenv("ARCHIVE_BUCKET", "beacon-archive")
	t.Setenv("ARCHIVE_PREFIX", "queues")

	cfg := Load()

	if cfg.ArchiveBackend != ArchiveBackendS3 {
		t.Fatalf("ArchiveBackend = %q", cfg.ArchiveBackend)
	}
	if cfg.AWSRegion != "ap-northeast-2" || cfg.ArchiveBucket != "beacon-archive" || cfg.ArchivePrefix != "queues" {
		t.Fatalf("s3 config = %q/%q/%q", cfg.AWSRegion, cfg.ArchiveBucket, cfg.ArchivePrefix)
	}
	if cfg.S3AppRetries != 3 || cfg.S3Timeout != 5*time.Second {
		t.Fatalf("s3 retry defaults = %d/%v", cfg.S3AppRetries, cfg.S3Timeout)
	}
}
