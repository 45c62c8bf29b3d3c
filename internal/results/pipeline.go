package results

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"coral_detector/internal/catalog"
	"coral_detector/internal/detection"
)

const (
	// DefaultTopN is how many ranked entries get a crop.
	DefaultTopN = 5
	// NoSpeciesMessage is shown when nothing survives the species filter.
	NoSpeciesMessage = "No coral species detected."
)

// Entry is one presentable detection.
type Entry struct {
	Name           string
	Confidence     float32
	ConfidenceText string
	Box            detection.BoundingBox
	// Rect is the crop rectangle after clamping to the image.
	Rect image.Rectangle
	// Crop is nil when the entry was not cropped or CropErr is set.
	Crop    image.Image
	CropErr error
}

// CropAvailable reports whether the entry carries a crop.
func (e *Entry) CropAvailable() bool {
	return e.Crop != nil
}

// Report is the outcome of one pass over one image.
type Report struct {
	// Best is nil when no detection passed the species filter.
	Best *Entry
	// Ranked holds every filtered detection, most confident first. Only the
	// first TopN entries are cropped.
	Ranked []Entry
	// Message is the user-facing summary line.
	Message string
	// Detections counts raw detector output before filtering.
	Detections int
	TopN       int
	Elapsed    time.Duration
}

// Empty reports whether no species was detected.
func (r *Report) Empty() bool {
	return r.Best == nil
}

// Ranker runs detect, label, filter, rank and crop for a single image. It
// holds no per-request state and can be shared.
type Ranker struct {
	catalog *catalog.Catalog
	topN    int
	log     logrus.FieldLogger
}

// NewRanker returns a Ranker. A topN below one falls back to DefaultTopN.
func NewRanker(c *catalog.Catalog, topN int, log logrus.FieldLogger) *Ranker {
	if topN < 1 {
		topN = DefaultTopN
	}
	return &Ranker{catalog: c, topN: topN, log: log}
}

// TopN returns how many ranked entries are cropped.
func (r *Ranker) TopN() int {
	return r.topN
}

// Process runs det over img and builds the report. Only a detector failure is
// returned as an error; empty results and degenerate boxes are reported in
// the Report itself.
func (r *Ranker) Process(ctx context.Context, img image.Image, det detection.Detector) (*Report, error) {
	start := time.Now()

	raw, err := det.Detect(ctx, img)
	if err != nil {
		return nil, errors.Wrap(err, "detect")
	}

	report := r.Build(img, raw)
	report.Elapsed = time.Since(start)

	r.log.WithFields(logrus.Fields{
		"detections": report.Detections,
		"kept":       len(report.Ranked),
		"elapsed":    report.Elapsed,
	}).Info("Image processed")
	return report, nil
}

// Build ranks and crops detections that were already produced for img.
func (r *Ranker) Build(img image.Image, raw []detection.Detection) *Report {
	labeled := ResolveLabels(raw, r.catalog)
	for _, d := range labeled {
		if d.Name == detection.Unknown {
			r.log.WithField("class_id", d.ClassID).Debug("Class id outside catalog")
		}
	}
	filtered := FilterKnownSpecies(labeled, r.catalog)

	report := &Report{
		Detections: len(raw),
		TopN:       r.topN,
	}

	best, ok := SelectBest(filtered)
	if !ok {
		report.Message = NoSpeciesMessage
		return report
	}

	ranked := RankDescending(filtered)
	report.Ranked = make([]Entry, len(ranked))
	for i, d := range ranked {
		report.Ranked[i] = r.entry(img, d, i < r.topN)
	}

	bestEntry := r.entry(img, best, true)
	report.Best = &bestEntry
	report.Message = "Most confident classification: " + best.Name +
		" with confidence " + bestEntry.ConfidenceText
	return report
}

func (r *Ranker) entry(img image.Image, d detection.LabeledDetection, crop bool) Entry {
	e := Entry{
		Name:           d.Name,
		Confidence:     d.Confidence,
		ConfidenceText: FormatConfidence(d.Confidence),
		Box:            d.Box,
		Rect:           ClampRect(d.Box.ToRect(), img.Bounds()),
	}
	if !crop {
		return e
	}

	cropped, err := CropRegion(img, d.Box.ToRect())
	if err != nil {
		r.log.WithError(err).WithField("species", d.Name).Warn("Skipping crop")
		e.CropErr = err
		return e
	}
	e.Crop = cropped
	return e
}
