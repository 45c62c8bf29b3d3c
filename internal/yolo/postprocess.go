package yolo

import (
	"image"
	"sort"

	"coral_detector/internal/detection"
)

// outputLayout describes a (1, 4+classes, anchors) YOLO output tensor. Rows 0-3
// hold the box centre and size in input pixels, the rest hold class scores.
type outputLayout struct {
	imageSize  int
	numClasses int
	numAnchors int
}

func (l outputLayout) len() int {
	return (4 + l.numClasses) * l.numAnchors
}

// decodeOutput picks the best class for every anchor, drops anchors under
// confThreshold and scales boxes back to a source image of the given size.
// Boxes are clipped to the source image.
func decodeOutput(output []float32, l outputLayout, src image.Point, confThreshold float32) []detection.Detection {
	n := l.numAnchors
	scaleX := float32(src.X) / float32(l.imageSize)
	scaleY := float32(src.Y) / float32(l.imageSize)

	var dets []detection.Detection
	for i := 0; i < n; i++ {
		classID, prob := -1, float32(0)
		for c := 0; c < l.numClasses; c++ {
			if curr := output[n*(c+4)+i]; curr > prob {
				prob = curr
				classID = c
			}
		}
		if classID < 0 || prob < confThreshold {
			continue
		}

		xc, yc := output[i], output[n+i]
		w, h := output[2*n+i], output[3*n+i]
		dets = append(dets, detection.Detection{
			Box: detection.BoundingBox{
				X1: clip((xc-w/2)*scaleX, float32(src.X)),
				Y1: clip((yc-h/2)*scaleY, float32(src.Y)),
				X2: clip((xc+w/2)*scaleX, float32(src.X)),
				Y2: clip((yc+h/2)*scaleY, float32(src.Y)),
			},
			Confidence: prob,
			ClassID:    classID,
		})
	}
	return dets
}

// nonMaxSuppression sorts dets by confidence and drops every box overlapping a
// more confident box of the same class by more than iouThreshold.
func nonMaxSuppression(dets []detection.Detection, iouThreshold float32) []detection.Detection {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})

	kept := make([]detection.Detection, 0, len(dets))
	suppressed := make([]bool, len(dets))
	for i := range dets {
		if suppressed[i] {
			continue
		}
		kept = append(kept, dets[i])
		for j := i + 1; j < len(dets); j++ {
			if suppressed[j] || dets[j].ClassID != dets[i].ClassID {
				continue
			}
			if dets[i].Box.IoU(dets[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func clip(v, limit float32) float32 {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
