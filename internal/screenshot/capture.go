package screenshot

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// dismissInterstitial clicks through one known interstitial control
// when the target page shows it.
const dismissInterstitial = `(() => {
	const button = document.querySelector('button[data-ga-click]');
	if (button) {
		button.click();
	}
})()`

// Config controls the behavior of the capturer.
type Config struct {
	MaxParallel       int
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	MaxAttempts       int
}

// Capturer takes page screenshots with headless Chrome via chromedp.
// Each capture gets its own browser tab; a shared allocator bounds the
// number of concurrent tabs.
type Capturer struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// New creates a Capturer backed by a chromedp exec allocator.
func New(cfg Config, logger *zap.Logger) (*Capturer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Capturer{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close cancels the allocator context.
func (c *Capturer) Close() {
	c.allocCancel()
}

// Capture navigates to targetURL, captures a stable frame at the
// profile's full resolution, and writes the frame scaled to the
// profile's publish resolution at outPath. Navigation and capture
// errors are logged and swallowed; the caller detects failure by the
// absence of a file at outPath.
func (c *Capturer) Capture(ctx context.Context, targetURL, outPath string, profile Profile) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	taskCtx, taskCancel := chromedp.NewContext(c.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, c.cfg.NavigationTimeout)
	defer cancel()

	frame, err := captureStable(taskCtx, c.cfg.MaxAttempts, func(ctx context.Context) ([]byte, error) {
		return c.shoot(ctx, targetURL, profile)
	})
	if err != nil {
		c.logger.Warn("screenshot capture produced no output",
			zap.String("url", targetURL),
			zap.String("profile", profile.Name),
			zap.Error(err),
		)
		return nil
	}

	scaled, err := ScaleFrame(frame, profile.ScaledWidth, profile.ScaledHeight)
	if err != nil {
		c.logger.Warn("screenshot frame unusable",
			zap.String("url", targetURL),
			zap.Error(err),
		)
		return nil
	}

	if err := WriteJPEG(outPath, scaled); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	return nil
}

// shoot runs one navigate-settle-capture pass in the task tab. The
// capture goes through the page domain directly so the frame is always
// PNG regardless of Chrome defaults; the uniform-frame check decodes
// it pixel by pixel.
func (c *Capturer) shoot(ctx context.Context, targetURL string, profile Profile) ([]byte, error) {
	var buf []byte
	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(profile.FullWidth), int64(profile.FullHeight)),
		chromedp.Navigate(targetURL),
		chromedp.Evaluate(dismissInterstitial, nil),
		chromedp.Sleep(c.cfg.SettleDelay),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithFromSurface(true).
				Do(ctx)
			return err
		}),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return nil, fmt.Errorf("chromedp run: %w", err)
	}
	return buf, nil
}

func (c *Capturer) acquire(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	select {
	case c.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("capture slot wait canceled: %w", ctx.Err())
	}
}

func (c *Capturer) release() {
	if c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
	}
}
