package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/config"
)

var ErrNotCached = errors.New("question file not cached")

// QuestionCache хранит PDF с условием задания, скачанные с backend.
type QuestionCache interface {
	Get(ctx context.Context, assignmentID string) ([]byte, error)
	Put(ctx context.Context, assignmentID string, data []byte) error
	Invalidate(ctx context.Context, assignmentID string) error
}

type MinIOQuestionCache struct {
	client *minio.Client
	bucket string
	region string
	logger zerolog.Logger

	ensureMu      sync.Mutex
	bucketEnsured bool
}

func NewMinIOQuestionCache(cfg config.MinIOConfig, logger zerolog.Logger) (*MinIOQuestionCache, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	c := &MinIOQuestionCache{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		logger: logger.With().Str("component", "question_cache").Logger(),
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// кэш необязателен, сервис стартует и без MinIO
	if err := c.ensureBucket(ctx); err != nil {
		c.logger.Warn().Err(err).
			Str("endpoint", cfg.Endpoint).
			Str("bucket", cfg.Bucket).
			Msg("MinIO not ready during startup, will retry on demand")
	} else {
		c.logger.Info().
			Str("endpoint", cfg.Endpoint).
			Str("bucket", cfg.Bucket).
			Bool("ssl", cfg.UseSSL).
			Msg("Connected to MinIO")
	}

	return c, nil
}

func (c *MinIOQuestionCache) ensureBucket(ctx context.Context) error {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.bucketEnsured {
		return nil
	}

	backoff := 500 * time.Millisecond
	for {
		exists, err := c.client.BucketExists(ctx, c.bucket)
		if err == nil && !exists {
			err = c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: c.region})
			if err == nil {
				c.logger.Info().Str("bucket", c.bucket).Msg("Created new bucket")
			}
		}
		if err == nil {
			c.bucketEnsured = true
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("minio not ready: %w", err)
		case <-time.After(backoff):
		}
	}
}

func (c *MinIOQuestionCache) Get(ctx context.Context, assignmentID string) ([]byte, error) {
	if err := c.ensureBucket(ctx); err != nil {
		return nil, err
	}

	object, err := c.client.GetObject(ctx, c.bucket, ObjectKey(assignmentID), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get question file: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("failed to read question file: %w", err)
	}

	c.logger.Debug().
		Str("assignment_id", assignmentID).
		Int("size", len(data)).
		Msg("Question file served from cache")

	return data, nil
}

func (c *MinIOQuestionCache) Put(ctx context.Context, assignmentID string, data []byte) error {
	if err := c.ensureBucket(ctx); err != nil {
		return err
	}

	info, err := c.client.PutObject(ctx, c.bucket, ObjectKey(assignmentID), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return fmt.Errorf("failed to cache question file: %w", err)
	}

	c.logger.Debug().
		Str("assignment_id", assignmentID).
		Str("etag", info.ETag).
		Int("size", len(data)).
		Msg("Question file cached")

	return nil
}

func (c *MinIOQuestionCache) Invalidate(ctx context.Context, assignmentID string) error {
	if err := c.ensureBucket(ctx); err != nil {
		return err
	}
	if err := c.client.RemoveObject(ctx, c.bucket, ObjectKey(assignmentID), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove cached question file: %w", err)
	}
	return nil
}

// ObjectKey путь объекта в бакете для задания.
func ObjectKey(assignmentID string) string {
	return "questions/" + url.PathEscape(assignmentID) + ".pdf"
}
