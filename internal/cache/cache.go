// Package cache manages the filesystem screenshot cache: staleness
// detection, backup-restore refresh, and cache-busted publication.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/devcellar/concepts/internal/screenshot"
)

// Kind selects which published image variant a cache entry holds.
type Kind string

// The two image variants published per concept.
const (
	KindScreenshot Kind = "screenshot"
	KindTwitter    Kind = "twitter"
)

// Profile maps a kind to its capture dimension profile.
func (k Kind) Profile() screenshot.Profile {
	if k == KindTwitter {
		return screenshot.Twitter
	}
	return screenshot.SixteenNine
}

// ErrCaptureFailed marks a refresh whose capture produced no output.
// The prior image, if any, has been restored; the run continues.
var ErrCaptureFailed = errors.New("capture produced no output")

// Outcome classifies what a lookup did, so callers can count cache
// hits separately from refreshes.
type Outcome string

// Lookup outcomes.
const (
	OutcomeHit       Outcome = "hit"
	OutcomeRefreshed Outcome = "refresh"
	OutcomeFailed    Outcome = "failed"
)

// Capturer drives the external screenshot subsystem. Failure surfaces
// as no file at outPath, not necessarily as an error.
type Capturer interface {
	Capture(ctx context.Context, targetURL, outPath string, profile screenshot.Profile) error
}

// Clock supplies the current time for staleness checks and
// cache-busting tokens.
type Clock interface {
	Now() time.Time
}

// Hasher produces the content digest compared against the blank
// sentinel.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Config captures cache parameters.
type Config struct {
	// Dir is the images directory on disk.
	Dir string
	// Window is the freshness window; older images are re-captured.
	Window time.Duration
	// SentinelHash is the hex digest of a known blank capture. A live
	// image matching it is treated as stale regardless of age.
	SentinelHash string
	// DownloadTimeout bounds cover-image downloads.
	DownloadTimeout time.Duration
}

// Cache is the screenshot cache. Refresh of a single slug/kind entry
// is not re-entrant; runs must not share a cache directory.
type Cache struct {
	cfg      Config
	capturer Capturer
	clock    Clock
	hasher   Hasher
	logger   *zap.Logger
}

// New creates a Cache rooted at cfg.Dir, creating the directory if
// needed.
func New(cfg Config, capturer Capturer, clock Clock, hasher Hasher, logger *zap.Logger) (*Cache, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("cache dir is required")
	}
	if cfg.Window <= 0 {
		cfg.Window = 48 * time.Hour
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", cfg.Dir, err)
	}
	return &Cache{
		cfg:      cfg,
		capturer: capturer,
		clock:    clock,
		hasher:   hasher,
		logger:   logger,
	}, nil
}

// EnsureFresh returns the relative cache path for slug/kind, capturing
// a new image first when the cached one is stale, along with the
// lookup outcome. On capture failure the previous path (possibly
// empty) is returned together with ErrCaptureFailed.
func (c *Cache) EnsureFresh(ctx context.Context, slug, targetURL string, kind Kind) (string, Outcome, error) {
	live, ok := c.livePath(slug, kind)
	if ok && !c.isStale(live) {
		return c.relPath(live), OutcomeHit, nil
	}
	return c.refresh(ctx, slug, targetURL, kind, live, ok)
}

// Cached returns the current live path for slug/kind without any
// staleness check or capture, for callers that only want whatever is
// already published.
func (c *Cache) Cached(slug string, kind Kind) (string, bool) {
	live, ok := c.livePath(slug, kind)
	if !ok {
		return "", false
	}
	return c.relPath(live), true
}

// isStale reports whether the live image must be refreshed: it is
// older than the freshness window, or its content hash matches the
// blank sentinel left by a silently failed capture.
func (c *Cache) isStale(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	if c.clock.Now().Sub(info.ModTime()) > c.cfg.Window {
		return true
	}
	if c.cfg.SentinelHash == "" {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	digest, err := c.hasher.Hash(data)
	if err != nil {
		return true
	}
	return digest == c.cfg.SentinelHash
}

// refresh backs up the live image, drives a capture at a fresh
// cache-busted name, and either publishes the result (evicting the
// prior version) or restores the backup. At every observable point at
// most one live image per slug/kind is addressable.
func (c *Cache) refresh(ctx context.Context, slug, targetURL string, kind Kind, live string, hadLive bool) (string, Outcome, error) {
	backup := filepath.Join(c.cfg.Dir, fmt.Sprintf("%s_%s.bak", slug, kind))
	if hadLive {
		if err := os.Rename(live, backup); err != nil {
			return "", OutcomeFailed, fmt.Errorf("back up %s: %w", live, err)
		}
	}

	target := filepath.Join(c.cfg.Dir, c.bustedName(slug, kind))
	if err := c.capturer.Capture(ctx, targetURL, target, kind.Profile()); err != nil {
		c.logger.Warn("capture error during refresh",
			zap.String("slug", slug),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}

	if _, err := os.Stat(target); err != nil {
		// No output: restore the prior live image and carry on.
		if hadLive {
			if rerr := os.Rename(backup, live); rerr != nil {
				return "", OutcomeFailed, fmt.Errorf("restore %s after failed capture: %w", live, rerr)
			}
			return c.relPath(live), OutcomeFailed, ErrCaptureFailed
		}
		return "", OutcomeFailed, ErrCaptureFailed
	}

	if hadLive {
		if err := os.Remove(backup); err != nil {
			c.logger.Warn("evict backup failed", zap.String("path", backup), zap.Error(err))
		}
	}
	c.evictOthers(slug, kind, target)
	return c.relPath(target), OutcomeRefreshed, nil
}

// bustedName builds the cache-busting filename for slug/kind using the
// current epoch seconds.
func (c *Cache) bustedName(slug string, kind Kind) string {
	return fmt.Sprintf("%s_%s_%d.jpg", slug, kind, c.clock.Now().Unix())
}

// livePath finds the current live image for slug/kind. When multiple
// match (a crashed prior run), the newest token wins.
func (c *Cache) livePath(slug string, kind Kind) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(c.cfg.Dir, fmt.Sprintf("%s_%s_*", slug, kind)))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[len(matches)-1], true
}

// evictOthers removes any cache-busted files for slug/kind other than
// keep, restoring the at-most-one-live invariant after a crash.
func (c *Cache) evictOthers(slug string, kind Kind, keep string) {
	matches, err := filepath.Glob(filepath.Join(c.cfg.Dir, fmt.Sprintf("%s_%s_*", slug, kind)))
	if err != nil {
		return
	}
	for _, m := range matches {
		if m == keep {
			continue
		}
		if err := os.Remove(m); err != nil {
			c.logger.Warn("evict stale image failed", zap.String("path", m), zap.Error(err))
		}
	}
}

// relPath converts an absolute cache path into the relative path
// consumers embed in the feed.
func (c *Cache) relPath(path string) string {
	if path == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Join("images", filepath.Base(path)))
}
