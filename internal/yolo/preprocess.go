package yolo

import (
	"image"

	"github.com/nfnt/resize"
)

// prepareInput resizes img to size x size and lays it out as a normalized
// CHW float32 buffer, the layout YOLO exports expect.
func prepareInput(img image.Image, size int) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)
	bounds := resized.Bounds()
	plane := size * size
	input := make([]float32, plane*3)

	idx := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			input[idx] = float32(r>>8) / 255.0
			input[idx+plane] = float32(g>>8) / 255.0
			input[idx+2*plane] = float32(b>>8) / 255.0
			idx++
		}
	}
	return input
}
