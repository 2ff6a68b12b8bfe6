package storage

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Downloader скачивает файл задания с backend.
type Downloader interface {
	DownloadAssignment(ctx context.Context, assignmentID string) ([]byte, error)
}

// CachedDownloader отдает файл из кэша, а при промахе идет на backend.
// Ошибки кэша только логируются.
type CachedDownloader struct {
	cache  QuestionCache
	logger zerolog.Logger
}

func NewCachedDownloader(cache QuestionCache, logger zerolog.Logger) *CachedDownloader {
	return &CachedDownloader{
		cache:  cache,
		logger: logger,
	}
}

func (d *CachedDownloader) Download(ctx context.Context, api Downloader, assignmentID string) ([]byte, error) {
	if d == nil || d.cache == nil {
		return api.DownloadAssignment(ctx, assignmentID)
	}

	data, err := d.cache.Get(ctx, assignmentID)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrNotCached) {
		d.logger.Warn().Err(err).Str("assignment_id", assignmentID).Msg("Question cache read failed")
	}

	data, err = api.DownloadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	if err := d.cache.Put(ctx, assignmentID, data); err != nil {
		d.logger.Warn().Err(err).Str("assignment_id", assignmentID).Msg("Question cache write failed")
	}

	return data, nil
}

// Store кладет в кэш файл, только что загруженный преподавателем.
func (d *CachedDownloader) Store(ctx context.Context, assignmentID string, data []byte) error {
	if d == nil || d.cache == nil || len(data) == 0 {
		return nil
	}
	return d.cache.Put(ctx, assignmentID, data)
}
