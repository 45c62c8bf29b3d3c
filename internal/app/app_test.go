package app

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coral_detector/internal/catalog"
	"coral_detector/internal/config"
	"coral_detector/internal/detection"
)

var noDetections = detection.DetectorFunc(func(context.Context, image.Image) ([]detection.Detection, error) {
	return nil, nil
})

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.LogFile = ""
	return cfg
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewWithInjectedDetector(t *testing.T) {
	logger, hook := test.NewNullLogger()
	cfg := testConfig(t)
	cfg.TopN = 3

	a, err := New(cfg, logger, WithDetector(noDetections))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, catalog.Default().Len(), a.Catalog.Len())
	assert.Nil(t, a.Attributes)
	assert.Equal(t, 3, a.Ranker.TopN())
	assert.Equal(t, "Species catalog loaded", hook.Entries[0].Message)
	assert.Equal(t, "embedded", hook.Entries[0].Data["path"])
}

func TestNewLoadsCatalogAndAttributes(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := testConfig(t)
	cfg.CatalogPath = writeFile(t, "species.txt", "Favia fragum\nPorites lobata\n")
	cfg.AttributesPath = writeFile(t, "attrs.csv", "species,depth\nFavia fragum,4\n")

	a, err := New(cfg, logger, WithDetector(noDetections))
	require.NoError(t, err)

	assert.Equal(t, []string{"Favia fragum", "Porites lobata"}, a.Catalog.Names())
	require.NotNil(t, a.Attributes)
	row, ok := a.Attributes.Lookup("Favia fragum")
	require.True(t, ok)
	assert.Equal(t, "4", row["depth"])
}

func TestNewResourceErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(t *testing.T, cfg *config.Config)
		resource string
		detector detection.Detector
	}{
		{
			name: "missing catalog",
			mutate: func(t *testing.T, cfg *config.Config) {
				cfg.CatalogPath = filepath.Join(t.TempDir(), "nope.txt")
			},
			resource: ResourceCatalog,
			detector: noDetections,
		},
		{
			name: "duplicate species",
			mutate: func(t *testing.T, cfg *config.Config) {
				cfg.CatalogPath = writeFile(t, "dup.txt", "Favia fragum\nFavia fragum\n")
			},
			resource: ResourceCatalog,
			detector: noDetections,
		},
		{
			name: "ragged attributes",
			mutate: func(t *testing.T, cfg *config.Config) {
				cfg.AttributesPath = writeFile(t, "bad.csv", "species,depth\nFavia fragum,1,2\n")
			},
			resource: ResourceAttributes,
			detector: noDetections,
		},
		{
			name: "missing runtime library",
			mutate: func(t *testing.T, cfg *config.Config) {
				cfg.RuntimeLibPath = filepath.Join(t.TempDir(), "libonnxruntime.so")
			},
			resource: ResourceRuntime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := test.NewNullLogger()
			cfg := testConfig(t)
			tt.mutate(t, cfg)

			var opts []Option
			if tt.detector != nil {
				opts = append(opts, WithDetector(tt.detector))
			}
			a, err := New(cfg, logger, opts...)
			assert.Nil(t, a)
			require.Error(t, err)

			var resErr *ResourceError
			require.True(t, errors.As(err, &resErr), "got %T: %v", err, err)
			assert.Equal(t, tt.resource, resErr.Resource)
			assert.Contains(t, err.Error(), tt.resource)
		})
	}
}

func TestResourceErrorFormatting(t *testing.T) {
	cause := errors.New("boom")
	err := &ResourceError{Resource: ResourceModel, Path: "model.onnx", Err: cause}
	assert.Equal(t, "loading detection model from model.onnx: boom", err.Error())
	assert.Equal(t, cause, errors.Cause(err))
	assert.True(t, errors.Is(err, cause))

	err.Path = ""
	assert.Equal(t, "loading detection model: boom", err.Error())
}

func TestCloseRunsInReverse(t *testing.T) {
	var order []int
	a := &App{closers: []func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return errors.New("second") },
	}}
	assert.EqualError(t, a.Close(), "second")
	assert.Equal(t, []int{2, 1}, order)
	assert.NoError(t, a.Close())
}
