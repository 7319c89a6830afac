// Package gcs archives rendered harvest pages in Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
)

// Config names the bucket and the key prefix pages live under.
type Config struct {
	Bucket string
	Prefix string
}

// BlobStore writes one object per run date:
// gs://<bucket>/<prefix>/<season>/<MM-DD-YYYY>.html.
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
	owned  bool
}

// New wraps an existing client. Close leaves that client open.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("gcs archive: storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("gcs archive: bucket name is required")
	}
	return &BlobStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Dial connects with Application Default Credentials and fails unless the
// bucket is reachable.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger, opts ...option.ClientOption) (*BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs archive: bucket name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs archive: new client: %w", err)
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("close gcs client after failed bucket check", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("gcs archive: bucket %q: %w", cfg.Bucket, err)
	}
	logger.Info("gcs archive ready", zap.String("bucket", cfg.Bucket), zap.String("prefix", cfg.Prefix))
	return &BlobStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, owned: true}, nil
}

// PutPage uploads the page for rec and returns its gs:// URI. The object key
// depends only on the run date, so a re-scrape overwrites the earlier page.
// The run date, season and scrape time travel as object metadata.
func (s *BlobStore) PutPage(ctx context.Context, rec harvest.DailyHarvestRecord, html string) (string, error) {
	key, err := harvest.PageKey(s.prefix, rec)
	if err != nil {
		return "", err
	}
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = harvest.PageContentType
	w.CacheControl = "no-cache"
	w.Metadata = map[string]string{
		"run_date":   rec.RunDate,
		"season":     strconv.Itoa(rec.Season),
		"scraped_at": rec.ScrapedAt.UTC().Format(time.RFC3339),
	}
	_, err = io.WriteString(w, html)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("gcs archive: upload %s: %w", key, err)
	}
	return "gs://" + s.bucket + "/" + key, nil
}

// Close releases the client when Dial created it.
func (s *BlobStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
