// Package results turns raw detector output for one image into a ranked,
// labeled and cropped result set.
package results

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"coral_detector/internal/catalog"
	"coral_detector/internal/detection"
)

// ResolveLabels attaches a species name to every detection, in input order.
// Class ids outside the catalog resolve to detection.Unknown.
func ResolveLabels(dets []detection.Detection, c *catalog.Catalog) []detection.LabeledDetection {
	return lo.Map(dets, func(d detection.Detection, _ int) detection.LabeledDetection {
		return detection.LabeledDetection{Detection: d, Name: c.Name(d.ClassID)}
	})
}

// FilterKnownSpecies keeps the detections whose name is an entry of c.
// Unknown and any name outside the catalog are dropped.
func FilterKnownSpecies(labeled []detection.LabeledDetection, c *catalog.Catalog) []detection.LabeledDetection {
	return lo.Filter(labeled, func(d detection.LabeledDetection, _ int) bool {
		return c.Contains(d.Name)
	})
}

// SelectBest returns the most confident detection. Among equal confidences the
// first in input order wins. ok is false when filtered is empty.
func SelectBest(filtered []detection.LabeledDetection) (best detection.LabeledDetection, ok bool) {
	if len(filtered) == 0 {
		return best, false
	}
	return lo.MaxBy(filtered, func(a, b detection.LabeledDetection) bool {
		return a.Confidence > b.Confidence
	}), true
}

// RankDescending returns a copy of filtered sorted by confidence, highest
// first. Equal confidences keep their input order.
func RankDescending(filtered []detection.LabeledDetection) []detection.LabeledDetection {
	ranked := make([]detection.LabeledDetection, len(filtered))
	copy(ranked, filtered)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	return ranked
}

// FormatConfidence renders a confidence with two decimal places.
func FormatConfidence(conf float32) string {
	return fmt.Sprintf("%.2f", conf)
}
