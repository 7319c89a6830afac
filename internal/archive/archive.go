// Package archive selects where rendered pages are kept.
package archive

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/archive/gcs"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/archive/local"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/archive/memory"
	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
)

// Drivers accepted in Config.Driver.
const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverLocal  = "local"
	DriverGCS    = "gcs"
)

// Config selects and configures an archive backend. Prefix applies to every
// backend.
type Config struct {
	Driver    string
	BaseDir   string
	GCSBucket string
	Prefix    string
}

// Open returns the configured archive and a function releasing it. A nil
// archive with a no-op closer is returned for DriverNone.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (harvest.Archive, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case "", DriverNone:
		return nil, noop, nil
	case DriverMemory:
		return memory.NewBlobStore(cfg.Prefix), noop, nil
	case DriverLocal:
		store, err := local.New(local.Config{BaseDir: cfg.BaseDir, Prefix: cfg.Prefix})
		if err != nil {
			return nil, noop, fmt.Errorf("open local archive: %w", err)
		}
		return store, noop, nil
	case DriverGCS:
		store, err := gcs.Dial(ctx, gcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.Prefix}, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("open gcs archive: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}
