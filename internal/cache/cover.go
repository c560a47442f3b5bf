package cache

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/devcellar/concepts/internal/screenshot"
)

// maxCoverBytes caps a cover-image download.
const maxCoverBytes = 20 << 20

// FromCoverImage bypasses the capture procedure: the declared cover
// image is downloaded once and published as the primary image, and a
// social-card variant is derived from it. For animated formats the
// variant uses a single representative frame (image.Decode yields the
// first frame of a GIF). Returns the relative paths of both variants.
func (c *Cache) FromCoverImage(ctx context.Context, slug, coverURL string) (string, string, error) {
	data, ext, err := c.download(ctx, coverURL)
	if err != nil {
		return "", "", fmt.Errorf("download cover image: %w", err)
	}

	epoch := c.clock.Now().Unix()
	primary := filepath.Join(c.cfg.Dir, fmt.Sprintf("%s_%s_%d%s", slug, KindScreenshot, epoch, ext))
	if err := os.WriteFile(primary, data, 0o600); err != nil {
		return "", "", fmt.Errorf("write cover image: %w", err)
	}
	c.evictOthers(slug, KindScreenshot, primary)

	profile := screenshot.Twitter
	card, err := screenshot.ScaleFrame(data, profile.ScaledWidth, profile.ScaledHeight)
	if err != nil {
		return "", "", fmt.Errorf("derive social card: %w", err)
	}
	twitter := filepath.Join(c.cfg.Dir, fmt.Sprintf("%s_%s_%d.jpg", slug, KindTwitter, epoch))
	if err := screenshot.WriteJPEG(twitter, card); err != nil {
		return "", "", fmt.Errorf("write social card: %w", err)
	}
	c.evictOthers(slug, KindTwitter, twitter)

	return c.relPath(primary), c.relPath(twitter), nil
}

// download fetches the cover image and derives a file extension from
// the response content type, falling back to the URL path.
func (c *Cache) download(ctx context.Context, coverURL string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", coverURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: unexpected status %d", coverURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}

	return data, coverExtension(resp.Header.Get("Content-Type"), coverURL), nil
}

func coverExtension(contentType, coverURL string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case "image/gif":
			return ".gif"
		case "image/png":
			return ".png"
		case "image/jpeg":
			return ".jpg"
		}
	}
	if ext := strings.ToLower(path.Ext(coverURL)); ext == ".gif" || ext == ".png" || ext == ".jpg" || ext == ".jpeg" {
		return ext
	}
	return ".jpg"
}
