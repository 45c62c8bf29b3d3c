package results

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ErrDegenerateCrop is returned when a box has no area left after clamping it
// to the image.
var ErrDegenerateCrop = errors.New("crop unavailable")

// ClampRect canonicalizes rect and clamps it to bounds. The result may be empty.
func ClampRect(rect, bounds image.Rectangle) image.Rectangle {
	return rect.Canon().Intersect(bounds)
}

// CropRegion returns a copy of the part of img covered by rect. The rectangle
// is clamped to the image bounds first; if nothing is left, ErrDegenerateCrop
// is returned. img is never modified.
func CropRegion(img image.Image, rect image.Rectangle) (*image.NRGBA, error) {
	clamped := ClampRect(rect, img.Bounds())
	if clamped.Empty() {
		return nil, errors.Wrapf(ErrDegenerateCrop, "box %v outside image %v", rect, img.Bounds())
	}
	return imaging.Crop(img, clamped), nil
}
