// Package pipeline orchestrates one aggregation-and-publishing run:
// discovery, normalization, screenshot enrichment, proxy regeneration,
// and feed publication.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/devcellar/concepts/internal/cache"
	"github.com/devcellar/concepts/internal/concept"
	"github.com/devcellar/concepts/internal/feed"
	"github.com/devcellar/concepts/internal/metrics"
)

// Fetcher discovers raw project records. Any error is fatal for the
// run.
type Fetcher interface {
	Fetch(ctx context.Context) ([]concept.RawProjectRecord, map[string]string, error)
}

// ImageStore is the screenshot cache.
type ImageStore interface {
	EnsureFresh(ctx context.Context, slug, targetURL string, kind cache.Kind) (string, cache.Outcome, error)
	FromCoverImage(ctx context.Context, slug, coverURL string) (primary, twitter string, err error)
	Cached(slug string, kind cache.Kind) (string, bool)
}

// ProxyGenerator regenerates the reverse-proxy configuration set.
type ProxyGenerator interface {
	RegenerateAll(concepts []concept.Concept) error
}

// FeedPublisher writes the consolidated feed.
type FeedPublisher interface {
	Publish(concepts []concept.Concept) (feed.Document, error)
}

// Mirror uploads published artifacts to a blob store.
type Mirror interface {
	Save(ctx context.Context, objectName string, data []byte) error
}

// Notifier publishes a run-completion event.
type Notifier interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Config captures run parameters.
type Config struct {
	PlatformMarker string
	// EnrichWorkers bounds concurrent screenshot enrichment; each
	// refresh spawns a browser process.
	EnrichWorkers int
	// ImagesDir is read back when mirroring artifacts.
	ImagesDir string
	FeedPath  string
	Topic     string
}

// Pipeline executes one batch run.
type Pipeline struct {
	fetcher  Fetcher
	images   ImageStore
	proxy    ProxyGenerator
	feed     FeedPublisher
	mirror   Mirror
	notifier Notifier
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Pipeline. Mirror and notifier may be nil.
func New(
	fetcher Fetcher,
	images ImageStore,
	proxy ProxyGenerator,
	feedPub FeedPublisher,
	mirror Mirror,
	notifier Notifier,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if cfg.EnrichWorkers <= 0 {
		cfg.EnrichWorkers = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher:  fetcher,
		images:   images,
		proxy:    proxy,
		feed:     feedPub,
		mirror:   mirror,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run executes the run end to end. Only failures that invalidate the
// whole candidate set or the published artifact set are fatal;
// per-concept failures are logged and the concept falls back to its
// prior or default state.
func (p *Pipeline) Run(ctx context.Context) error {
	started := time.Now()

	raws, names, err := p.fetcher.Fetch(ctx)
	if err != nil {
		metrics.ObserveRun("failed")
		return fmt.Errorf("discover projects: %w", err)
	}
	metrics.ObserveDiscovered(len(raws))

	concepts := p.normalizeAll(raws, names)
	p.enrichAll(ctx, concepts)

	if err := p.proxy.RegenerateAll(concepts); err != nil {
		metrics.ObserveRun("failed")
		return fmt.Errorf("regenerate proxy config: %w", err)
	}

	if _, err := p.feed.Publish(concepts); err != nil {
		metrics.ObserveRun("failed")
		return fmt.Errorf("publish feed: %w", err)
	}

	p.mirrorArtifacts(ctx)
	p.notifyCompletion(ctx, len(concepts), time.Since(started))

	metrics.ObserveRun("succeeded")
	p.logger.Info("run finished",
		zap.Int("concepts", len(concepts)),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}

func (p *Pipeline) normalizeAll(raws []concept.RawProjectRecord, names map[string]string) []concept.Concept {
	normalizer := concept.NewNormalizer(p.cfg.PlatformMarker, p.logger)
	concepts := make([]concept.Concept, 0, len(raws))
	for _, raw := range raws {
		if raw.MemberName == "" {
			raw.MemberName = names[raw.Login]
		}
		concepts = append(concepts, normalizer.Normalize(raw))
	}
	return concepts
}

// enrichAll refreshes both image variants per concept, concurrently
// across concepts. The cache is partitioned per slug so concepts share
// no mutable state here.
func (p *Pipeline) enrichAll(ctx context.Context, concepts []concept.Concept) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.cfg.EnrichWorkers)

	for i := range concepts {
		c := &concepts[i]
		group.Go(func() error {
			p.enrich(groupCtx, c)
			return nil
		})
	}
	// Workers never return errors; per-concept failures stay local.
	_ = group.Wait()
}

func (p *Pipeline) enrich(ctx context.Context, c *concept.Concept) {
	if c.CoverImageURL != "" {
		primary, twitter, err := p.images.FromCoverImage(ctx, c.Slug, c.CoverImageURL)
		if err != nil {
			metrics.ObserveCapture("cover_failed")
			p.logger.Warn("cover image unavailable, keeping prior images",
				zap.String("slug", c.Slug),
				zap.Error(err),
			)
			c.Screenshot, _ = p.images.Cached(c.Slug, cache.KindScreenshot)
			c.TwitterScreenshot, _ = p.images.Cached(c.Slug, cache.KindTwitter)
			return
		}
		metrics.ObserveCapture("cover")
		c.Screenshot, c.TwitterScreenshot = primary, twitter
		return
	}

	c.Screenshot = p.ensureKind(ctx, c, cache.KindScreenshot)
	c.TwitterScreenshot = p.ensureKind(ctx, c, cache.KindTwitter)
}

func (p *Pipeline) ensureKind(ctx context.Context, c *concept.Concept, kind cache.Kind) string {
	path, outcome, err := p.images.EnsureFresh(ctx, c.Slug, c.TargetURL, kind)
	metrics.ObserveCacheLookup(string(outcome))
	switch {
	case errors.Is(err, cache.ErrCaptureFailed):
		metrics.ObserveCapture("failed")
		p.logger.Warn("screenshot refresh failed, keeping prior image",
			zap.String("slug", c.Slug),
			zap.String("kind", string(kind)),
		)
	case err != nil:
		metrics.ObserveCapture("failed")
		p.logger.Warn("screenshot cache error",
			zap.String("slug", c.Slug),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	case outcome == cache.OutcomeRefreshed:
		metrics.ObserveCapture("succeeded")
	}
	return path
}

// mirrorArtifacts uploads the feed document and the image cache to the
// configured mirror. Mirror failures are logged, never fatal: the local
// artifacts are already published.
func (p *Pipeline) mirrorArtifacts(ctx context.Context) {
	if p.mirror == nil {
		return
	}

	if data, err := os.ReadFile(p.cfg.FeedPath); err == nil {
		if err := p.mirror.Save(ctx, "concepts.json", data); err != nil {
			p.logger.Warn("mirror feed failed", zap.Error(err))
		}
	}

	entries, err := os.ReadDir(p.cfg.ImagesDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(p.cfg.ImagesDir, entry.Name()))
		if err != nil {
			p.logger.Warn("mirror image read failed", zap.String("name", entry.Name()), zap.Error(err))
			continue
		}
		if err := p.mirror.Save(ctx, "images/"+entry.Name(), data); err != nil {
			p.logger.Warn("mirror image failed", zap.String("name", entry.Name()), zap.Error(err))
		}
	}
}

func (p *Pipeline) notifyCompletion(ctx context.Context, conceptCount int, took time.Duration) {
	if p.notifier == nil || p.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"concepts":    conceptCount,
		"duration_ms": took.Milliseconds(),
		"finished_at": time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := p.notifier.Publish(ctx, p.cfg.Topic, payload); err != nil {
		p.logger.Warn("run notification failed", zap.Error(err))
	}
}
