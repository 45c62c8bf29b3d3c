// Package app performs startup: it loads every static resource once and
// returns an immutable App that request handlers share.
package app

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"coral_detector/internal/catalog"
	"coral_detector/internal/config"
	"coral_detector/internal/detection"
	"coral_detector/internal/results"
	"coral_detector/internal/yolo"
)

// Resource names used in ResourceError.
const (
	ResourceCatalog    = "species catalog"
	ResourceAttributes = "species attributes"
	ResourceRuntime    = "onnx runtime"
	ResourceModel      = "detection model"
)

// ResourceError reports a static resource that could not be loaded at
// startup. It is always fatal.
type ResourceError struct {
	Resource string
	Path     string
	Err      error
}

func (e *ResourceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("loading %s: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("loading %s from %s: %v", e.Resource, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// Cause lets errors.Cause reach the underlying failure.
func (e *ResourceError) Cause() error {
	return e.Err
}

// App is the read-only context shared by every request.
type App struct {
	Config     *config.Config
	Catalog    *catalog.Catalog
	Attributes *catalog.Attributes
	Detector   detection.Detector
	Ranker     *results.Ranker
	Log        logrus.FieldLogger

	closers []func() error
}

// Option customizes New.
type Option func(*settings)

type settings struct {
	detector detection.Detector
}

// WithDetector skips the ONNX runtime and uses det instead.
func WithDetector(det detection.Detector) Option {
	return func(s *settings) {
		s.detector = det
	}
}

// New loads the catalog, the attribute table and the detector, in that
// order. The first failure is returned as a *ResourceError.
func New(cfg *config.Config, log logrus.FieldLogger, opts ...Option) (*App, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	a := &App{Config: cfg, Log: log}

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, &ResourceError{Resource: ResourceCatalog, Path: cfg.CatalogPath, Err: err}
	}
	a.Catalog = cat
	log.WithFields(logrus.Fields{"species": cat.Len(), "path": displayPath(cfg.CatalogPath)}).Info("Species catalog loaded")

	if cfg.AttributesPath != "" {
		attrs, err := catalog.LoadAttributesFile(cfg.AttributesPath, cfg.AttributesKey)
		if err != nil {
			return nil, &ResourceError{Resource: ResourceAttributes, Path: cfg.AttributesPath, Err: err}
		}
		a.Attributes = attrs
		log.WithFields(logrus.Fields{"rows": attrs.Len(), "path": cfg.AttributesPath}).Info("Species attributes loaded")
	}

	if s.detector != nil {
		a.Detector = s.detector
	} else if err := a.loadDetector(); err != nil {
		a.Close()
		return nil, err
	}

	a.Ranker = results.NewRanker(cat, cfg.TopN, log)
	return a, nil
}

func (a *App) loadDetector() error {
	cfg := a.Config

	libPath := cfg.RuntimeLibPath
	if libPath == "" {
		libPath = yolo.DefaultSharedLibPath()
	}
	if err := yolo.InitRuntime(libPath); err != nil {
		return &ResourceError{Resource: ResourceRuntime, Path: libPath, Err: err}
	}
	a.closers = append(a.closers, yolo.ShutdownRuntime)

	numClasses := cfg.NumClasses
	if numClasses == 0 {
		numClasses = a.Catalog.Len()
	} else if numClasses != a.Catalog.Len() {
		a.Log.WithFields(logrus.Fields{
			"model_classes":   numClasses,
			"catalog_species": a.Catalog.Len(),
		}).Warn("Model class count differs from catalog; unmatched ids resolve to Unknown")
	}

	det, err := yolo.New(yolo.Options{
		ModelPath:     cfg.ModelPath,
		ImageSize:     cfg.ImageSize,
		NumClasses:    numClasses,
		NumAnchors:    cfg.NumAnchors,
		ConfThreshold: float32(cfg.ConfThreshold),
		IoUThreshold:  float32(cfg.IoUThreshold),
		Threads:       cfg.Threads,
	}, a.Log)
	if err != nil {
		return &ResourceError{Resource: ResourceModel, Path: cfg.ModelPath, Err: err}
	}
	a.closers = append(a.closers, func() error {
		det.Destroy()
		return nil
	})

	if err := det.Warmup(); err != nil {
		return &ResourceError{Resource: ResourceModel, Path: cfg.ModelPath, Err: err}
	}
	a.Detector = det
	a.Log.WithField("path", cfg.ModelPath).Info("Model session initialized successfully")
	return nil
}

// Close releases the detector and the runtime, most recent first.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	c, err := catalog.LoadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading species list")
	}
	return c, nil
}

func displayPath(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
