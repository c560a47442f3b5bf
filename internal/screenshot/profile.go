// Package screenshot captures page screenshots with a headless browser,
// retrying while the frame is a single flat color.
package screenshot

// Profile names a capture resolution and the resolution the image is
// scaled down to before publishing.
type Profile struct {
	Name         string
	FullWidth    int
	FullHeight   int
	ScaledWidth  int
	ScaledHeight int
}

// The two dimension profiles the pipeline publishes.
var (
	SixteenNine = Profile{Name: "sixteenNine", FullWidth: 1920, FullHeight: 1080, ScaledWidth: 295, ScaledHeight: 166}
	Twitter     = Profile{Name: "twitter", FullWidth: 1080, FullHeight: 1080, ScaledWidth: 144, ScaledHeight: 144}
)
