// Package local archives rendered harvest pages on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
)

// Config locates the archive on disk.
type Config struct {
	// BaseDir is the root directory; it is created when missing.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
	// Prefix is joined under BaseDir before the season directory.
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// BlobStore keeps one HTML file per run date:
// BaseDir/<prefix>/<season>/<MM-DD-YYYY>.html.
type BlobStore struct {
	baseDir string
	prefix  string
}

// New opens the archive rooted at cfg.BaseDir and checks it accepts new files.
func New(cfg Config) (*BlobStore, error) {
	base := strings.TrimSpace(cfg.BaseDir)
	if base == "" {
		return nil, errors.New("local archive: base directory is required")
	}
	base = filepath.Clean(base)
	if err := os.MkdirAll(base, 0o750); err != nil {
		return nil, fmt.Errorf("local archive: create %s: %w", base, err)
	}
	staged, err := os.CreateTemp(base, ".page-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("local archive: %s is not writable: %w", base, err)
	}
	_ = staged.Close()
	if err := os.Remove(staged.Name()); err != nil {
		return nil, fmt.Errorf("local archive: remove %s: %w", staged.Name(), err)
	}
	return &BlobStore{baseDir: base, prefix: cfg.Prefix}, nil
}

// PutPage writes the page for rec and returns its file:// URI. The page is
// staged next to its final name and renamed over it, so a re-scrape either
// replaces the earlier page whole or leaves it untouched.
func (s *BlobStore) PutPage(_ context.Context, rec harvest.DailyHarvestRecord, html string) (string, error) {
	file, err := s.pageFile(rec)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		return "", fmt.Errorf("local archive: create season dir: %w", err)
	}
	if err := replaceFile(file, []byte(html)); err != nil {
		return "", fmt.Errorf("local archive: %s: %w", rec.RunDate, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(file)}).String(), nil
}

// ReadPage returns the archived page for rec.
func (s *BlobStore) ReadPage(rec harvest.DailyHarvestRecord) ([]byte, error) {
	file, err := s.pageFile(rec)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- file is confined to baseDir by pageFile.
	return os.ReadFile(file)
}

func (s *BlobStore) pageFile(rec harvest.DailyHarvestRecord) (string, error) {
	key, err := harvest.PageKey(s.prefix, rec)
	if err != nil {
		return "", err
	}
	file := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if !strings.HasPrefix(file, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("local archive: page %q escapes %s", key, s.baseDir)
	}
	return file, nil
}

func replaceFile(file string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(file), ".page-*.tmp")
	if err != nil {
		return err
	}
	staged := tmp.Name()
	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(staged, file)
	}
	if err != nil {
		_ = os.Remove(staged)
	}
	return err
}
