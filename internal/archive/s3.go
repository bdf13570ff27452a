// internal/archive/s3.go
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"beacon-agent/internal/config"
	"beacon-agent/internal/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfgLib "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	zlog "github.com/rs/zerolog/log"
)

// s3API is the slice of the S3 client the store actually calls, narrowed
// so the retry loop is testable without AWS.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store keeps the snapshot under a fixed per-instance key in S3, for
// fleets whose local disk does not survive a reschedule.
//
// Retry policy is single-sourced: SDK retries are pinned to 0 and the
// store runs its own bounded attempt loop — S3AppRetries attempts, each
// with its own S3Timeout, 200ms backoff doubling up to 2s. Unlike the
// uploader's uncapped backoff this loop is finite, so the cap only evens
// out the attempt spacing.
type S3Store struct {
	cfg     config.Config
	metrics *metrics.Metrics
	api     s3API
	key     string
}

// NewS3Store builds the AWS client and the store. Client construction
// failure is fatal: an agent configured for the s3 backend must not run
// without it.
func NewS3Store(cfg config.Config, m *metrics.Metrics) *S3Store {
	awsCfg, err := awsCfgLib.LoadDefaultConfig(
		context.TODO(),
		awsCfgLib.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		zlog.Fatal().Err(err).Msg("load AWS config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.RetryMaxAttempts = 0
	})

	return newS3Store(cfg, m, client)
}

func newS3Store(cfg config.Config, m *metrics.Metrics, api s3API) *S3Store {
	return &S3Store{
		cfg:     cfg,
		metrics: m,
		api:     api,
		key:     fmt.Sprintf("%s/%s/queue.json.gz", cfg.ArchivePrefix, cfg.InstanceID),
	}
}

func (s *S3Store) Save(ctx context.Context, snapshot []byte) error {
	data, err := compress(snapshot)
	if err != nil {
		return err
	}

	var lastErr error
	backoff := 200 * time.Millisecond

	for attempt := 1; attempt <= s.cfg.S3AppRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.putObject(ctx, data); err == nil {
			return nil
		} else {
			lastErr = err
			atomic.AddInt64(&s.metrics.ArchiveSaveErrorsTotal, 1)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 2*time.Second {
				backoff = 2 * time.Second
			}
		}
	}

	return lastErr
}

func (s *S3Store) Load(ctx context.Context) ([]byte, error) {
	ctx2, cancel := context.WithTimeout(ctx, s.cfg.S3Timeout)
	defer cancel()

	out, err := s.api.GetObject(ctx2, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.ArchiveBucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch archive: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch archive: %w", err)
	}
	return decompress(data)
}

// putObject performs exactly one attempt with its own timeout; the
// caller owns retries.
func (s *S3Store) putObject(ctx context.Context, data []byte) error {
	ctx2, cancel := context.WithTimeout(ctx, s.cfg.S3Timeout)
	defer cancel()

	_, err := s.api.PutObject(ctx2, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.ArchiveBucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return err
}
