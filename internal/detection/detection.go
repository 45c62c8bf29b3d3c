// Package detection defines the values exchanged between a detector and the
// code that ranks and presents its output.
package detection

import (
	"context"
	"fmt"
	"image"
)

// Unknown is the name given to a detection whose class id has no catalog entry.
const Unknown = "Unknown"

// BoundingBox is a detector box in source-image pixel coordinates.
type BoundingBox struct {
	X1, Y1, X2, Y2 float32
}

// ToRect converts the box to an integral, canonical image.Rectangle.
// Fractional pixels around the edges are truncated.
func (b BoundingBox) ToRect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2)).Canon()
}

// Area returns the area of b in pixels, after converting to an image.Rectangle.
func (b BoundingBox) Area() int {
	size := b.ToRect().Size()
	return size.X * size.Y
}

// Intersection returns the overlapping area of b and other in pixels.
func (b BoundingBox) Intersection(other BoundingBox) float32 {
	size := b.ToRect().Intersect(other.ToRect()).Size()
	return float32(size.X * size.Y)
}

// IoU returns intersection over union of the two boxes. This won't be
// entirely precise due to the integral rectangles, which is fine for
// suppressing overlapping boxes.
func (b BoundingBox) IoU(other BoundingBox) float32 {
	inter := b.Intersection(other)
	union := float32(b.Area()+other.Area()) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%.2f, %.2f), (%.2f, %.2f)", b.X1, b.Y1, b.X2, b.Y2)
}

// Detection is a single candidate produced by one inference pass.
type Detection struct {
	Box        BoundingBox
	Confidence float32
	ClassID    int
}

func (d Detection) String() string {
	return fmt.Sprintf("class %d (confidence %f): %s", d.ClassID, d.Confidence, d.Box)
}

// LabeledDetection is a Detection with its resolved species name.
type LabeledDetection struct {
	Detection
	Name string
}

func (d LabeledDetection) String() string {
	return fmt.Sprintf("%s (confidence %f): %s", d.Name, d.Confidence, d.Box)
}

// Detector runs object detection over a decoded image.
//
// Implementations may check ctx before starting inference, but the inference
// call itself is blocking.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// DetectorFunc adapts a plain function to the Detector interface.
type DetectorFunc func(ctx context.Context, img image.Image) ([]Detection, error)

// Detect calls f(ctx, img).
func (f DetectorFunc) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	return f(ctx, img)
}
