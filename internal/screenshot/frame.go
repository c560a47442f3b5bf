package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"image"

	// Codecs registered for image.Decode: captures arrive as PNG,
	// cover images may be GIF or JPEG.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// shootFunc produces one raw frame of the target page.
type shootFunc func(ctx context.Context) ([]byte, error)

// captureStable shoots up to maxAttempts frames, stopping early once a
// frame is not a single solid color. A capture can race page rendering
// and yield a uniform blank frame, which is why the loop exists. When
// the budget runs out the last frame is returned anyway; the caller
// publishes the best available image rather than failing.
func captureStable(ctx context.Context, maxAttempts int, shoot shootFunc) ([]byte, error) {
	var frame []byte
	for attempt := 0; attempt < maxAttempts; attempt++ {
		buf, err := shoot(ctx)
		if err != nil {
			return nil, fmt.Errorf("capture attempt %d: %w", attempt+1, err)
		}
		frame = buf

		uniform, err := isUniform(buf)
		if err != nil {
			return nil, fmt.Errorf("inspect frame: %w", err)
		}
		if !uniform {
			return frame, nil
		}
	}
	return frame, nil
}

// isUniform reports whether every pixel matches the first pixel,
// compared channel for channel.
func isUniform(data []byte) (bool, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("decode frame: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return true, nil
	}

	r0, g0, b0, a0 := img.At(bounds.Min.X, bounds.Min.Y).RGBA()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			if r != r0 || g != g0 || b != b0 || a != a0 {
				return false, nil
			}
		}
	}
	return true, nil
}
