package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devcellar/concepts/internal/screenshot"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeHasher struct{}

func (fakeHasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// fakeCapturer writes output bytes to outPath, or nothing when output
// is nil, mirroring the capture subprocess contract.
type fakeCapturer struct {
	output []byte
	calls  int
}

func (f *fakeCapturer) Capture(_ context.Context, _, outPath string, _ screenshot.Profile) error {
	f.calls++
	if f.output == nil {
		return nil
	}
	return os.WriteFile(outPath, f.output, 0o600)
}

func newTestCache(t *testing.T, capturer *fakeCapturer, clock *fakeClock, sentinel string) (*Cache, string) {
	t.Helper()
	dir := t.TempDir()
	c, err := New(Config{
		Dir:          dir,
		Window:       48 * time.Hour,
		SentinelHash: sentinel,
	}, capturer, clock, fakeHasher{}, zap.NewNop())
	require.NoError(t, err)
	return c, dir
}

func writeLive(t *testing.T, dir, slug string, kind Kind, epoch int64, content []byte, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("%s_%s_%d.jpg", slug, kind, epoch))
	require.NoError(t, os.WriteFile(path, content, 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestEnsureFresh_FreshImageNotRecaptured(t *testing.T) {
	t.Parallel()

	now := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	capturer := &fakeCapturer{output: []byte("new image")}
	c, dir := newTestCache(t, capturer, clock, "")

	writeLive(t, dir, "widget", KindScreenshot, 100, []byte("cached"), now.Add(-time.Hour))

	path, outcome, err := c.EnsureFresh(context.Background(), "widget", "https://example.com", KindScreenshot)
	require.NoError(t, err)
	require.Equal(t, OutcomeHit, outcome)
	require.Equal(t, "images/widget_screenshot_100.jpg", path)
	require.Zero(t, capturer.calls)
}

func TestEnsureFresh_AgedImageRecaptured(t *testing.T) {
	t.Parallel()

	now := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	capturer := &fakeCapturer{output: []byte("new image")}
	c, dir := newTestCache(t, capturer, clock, "")

	old := writeLive(t, dir, "widget", KindScreenshot, 100, []byte("cached"), now.Add(-49*time.Hour))

	path, outcome, err := c.EnsureFresh(context.Background(), "widget", "https://example.com", KindScreenshot)
	require.NoError(t, err)
	require.Equal(t, OutcomeRefreshed, outcome)
	require.Equal(t, 1, capturer.calls)
	require.Equal(t, fmt.Sprintf("images/widget_screenshot_%d.jpg", now.Unix()), path)

	// The prior cache-busted file is evicted, and no backup remains.
	require.NoFileExists(t, old)
	require.NoFileExists(t, filepath.Join(dir, "widget_screenshot.bak"))

	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(path)))
	require.NoError(t, err)
	require.Equal(t, []byte("new image"), data)
}

func TestEnsureFresh_SentinelHashForcesRecapture(t *testing.T) {
	t.Parallel()

	now := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	blank := []byte("blank capture")
	sum := sha256.Sum256(blank)

	capturer := &fakeCapturer{output: []byte("real image")}
	c, dir := newTestCache(t, capturer, clock, hex.EncodeToString(sum[:]))

	// Recent, but its content is the known blank sentinel.
	writeLive(t, dir, "widget", KindScreenshot, 100, blank, now.Add(-time.Hour))

	_, outcome, err := c.EnsureFresh(context.Background(), "widget", "https://example.com", KindScreenshot)
	require.NoError(t, err)
	require.Equal(t, OutcomeRefreshed, outcome)
	require.Equal(t, 1, capturer.calls)
}

func TestEnsureFresh_MissingImageCaptured(t *testing.T) {
	t.Parallel()

	now := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	capturer := &fakeCapturer{output: []byte("image")}
	c, _ := newTestCache(t, capturer, &fakeClock{now: now}, "")

	path, outcome, err := c.EnsureFresh(context.Background(), "widget", "https://example.com", KindScreenshot)
	require.NoError(t, err)
	require.Equal(t, OutcomeRefreshed, outcome)
	require.Equal(t, 1, capturer.calls)
	require.Equal(t, fmt.Sprintf("images/widget_screenshot_%d.jpg", now.Unix()), path)
}

func TestEnsureFresh_FailedCaptureRestoresPriorImage(t *testing.T) {
	t.Parallel()

	now := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	capturer := &fakeCapturer{output: nil} // produces nothing
	c, dir := newTestCache(t, capturer, clock, "")

	prior := writeLive(t, dir, "widget", KindScreenshot, 100, []byte("cached"), now.Add(-60*time.Hour))

	path, outcome, err := c.EnsureFresh(context.Background(), "widget", "https://example.com", KindScreenshot)
	require.ErrorIs(t, err, ErrCaptureFailed)
	require.Equal(t, OutcomeFailed, outcome)
	// The previously published path is unchanged and the file intact.
	require.Equal(t, "images/widget_screenshot_100.jpg", path)
	require.FileExists(t, prior)

	data, err := os.ReadFile(prior)
	require.NoError(t, err)
	require.Equal(t, []byte("cached"), data)
	require.NoFileExists(t, filepath.Join(dir, "widget_screenshot.bak"))
}

func TestEnsureFresh_FailedCaptureWithNoPriorImage(t *testing.T) {
	t.Parallel()

	capturer := &fakeCapturer{output: nil}
	c, _ := newTestCache(t, capturer, &fakeClock{now: time.Unix(1000, 0)}, "")

	path, outcome, err := c.EnsureFresh(context.Background(), "widget", "https://example.com", KindScreenshot)
	require.ErrorIs(t, err, ErrCaptureFailed)
	require.Equal(t, OutcomeFailed, outcome)
	require.Empty(t, path)
}

func TestEnsureFresh_KindsArePartitioned(t *testing.T) {
	t.Parallel()

	now := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	capturer := &fakeCapturer{output: []byte("image")}
	c, dir := newTestCache(t, capturer, clock, "")

	// A fresh twitter image must not satisfy a screenshot lookup.
	writeLive(t, dir, "widget", KindTwitter, 100, []byte("cached"), now.Add(-time.Hour))

	path, outcome, err := c.EnsureFresh(context.Background(), "widget", "https://example.com", KindScreenshot)
	require.NoError(t, err)
	require.Equal(t, OutcomeRefreshed, outcome)
	require.Equal(t, 1, capturer.calls)
	require.Contains(t, path, "widget_screenshot_")

	twitter, outcome, err := c.EnsureFresh(context.Background(), "widget", "https://example.com", KindTwitter)
	require.NoError(t, err)
	require.Equal(t, OutcomeHit, outcome)
	require.Equal(t, 1, capturer.calls)
	require.Equal(t, "images/widget_twitter_100.jpg", twitter)
}

func TestCached(t *testing.T) {
	t.Parallel()

	now := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	c, dir := newTestCache(t, &fakeCapturer{}, &fakeClock{now: now}, "")

	_, ok := c.Cached("widget", KindScreenshot)
	require.False(t, ok)

	writeLive(t, dir, "widget", KindScreenshot, 100, []byte("cached"), now)
	path, ok := c.Cached("widget", KindScreenshot)
	require.True(t, ok)
	require.Equal(t, "images/widget_screenshot_100.jpg", path)
}
