package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devcellar/concepts/internal/app"
	"github.com/devcellar/concepts/internal/cache"
	"github.com/devcellar/concepts/internal/clock/system"
	"github.com/devcellar/concepts/internal/feed"
	"github.com/devcellar/concepts/internal/github"
	"github.com/devcellar/concepts/internal/hash/sha256"
	"github.com/devcellar/concepts/internal/pipeline"
	"github.com/devcellar/concepts/internal/proxy"
	"github.com/devcellar/concepts/internal/screenshot"
)

// newUpdateCmd creates the 'update' subcommand: one full
// aggregation-and-publishing run.
func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Runs one aggregation-and-publishing pass",
		Long: `Discovers concept projects via the GitHub GraphQL API, refreshes
stale screenshots, regenerates the reverse-proxy configuration, and
publishes the consolidated feed. The run is idempotent; per-project
failures keep the previous run's artifacts for that project.`,

		RunE: runUpdateCommand,
	}
}

func runUpdateCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	if cfg.GitHub.Token == "" {
		return errors.New("github.token must be set for an update run")
	}

	run, capturer, err := buildPipeline(appInstance)
	if err != nil {
		return err
	}
	defer capturer.Close()

	if err := run.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run pipeline: %w", err)
	}

	logger.Info("update command finished.")
	return nil
}

func buildPipeline(appInstance *app.App) (*pipeline.Pipeline, *screenshot.Capturer, error) {
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	fetcher := github.New(cfg.GitHub.Token, github.Config{
		Organization:       cfg.GitHub.Organization,
		OrgAccount:         cfg.GitHub.OrgAccount,
		OverrideExpression: cfg.GitHub.OverrideExpression,
		PageWorkers:        cfg.GitHub.PageWorkers,
	}, logger)

	capturer, err := screenshot.New(screenshot.Config{
		MaxParallel:       cfg.Capture.MaxParallel,
		NavigationTimeout: cfg.NavTimeout(),
		SettleDelay:       cfg.SettleDelay(),
		MaxAttempts:       cfg.Capture.MaxAttempts,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init capturer: %w", err)
	}

	images, err := cache.New(cache.Config{
		Dir:             cfg.Cache.Dir,
		Window:          cfg.FreshnessWindow(),
		SentinelHash:    cfg.Cache.SentinelHash,
		DownloadTimeout: cfg.DownloadTimeout(),
	}, capturer, system.New(), sha256.New(), logger)
	if err != nil {
		capturer.Close()
		return nil, nil, fmt.Errorf("init screenshot cache: %w", err)
	}

	generator, err := proxy.New(proxy.Config{
		LiveDir:          cfg.Proxy.LiveDir,
		RootDomain:       cfg.Site.RootDomain,
		WebRoot:          cfg.Proxy.WebRoot,
		AnalyticsSnippet: cfg.Site.AnalyticsSnippet,
		BannerLogoURL:    cfg.Site.BannerLogoURL,
	}, logger)
	if err != nil {
		capturer.Close()
		return nil, nil, fmt.Errorf("init proxy generator: %w", err)
	}

	feedPub, err := feed.NewPublisher(cfg.Feed.Path, cfg.Site.RootDomain, logger)
	if err != nil {
		capturer.Close()
		return nil, nil, fmt.Errorf("init feed publisher: %w", err)
	}

	run := pipeline.New(
		fetcher,
		images,
		generator,
		feedPub,
		appInstance.Mirror(),
		appInstance.Notifier(),
		pipeline.Config{
			PlatformMarker: cfg.Site.PlatformMarker,
			EnrichWorkers:  cfg.Cache.Workers,
			ImagesDir:      cfg.Cache.Dir,
			FeedPath:       cfg.Feed.Path,
			Topic:          cfg.Notify.Topic,
		},
		logger,
	)
	return run, capturer, nil
}
