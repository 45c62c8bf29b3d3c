// Package yolo runs an Ultralytics YOLO ONNX export through ONNX Runtime and
// adapts its raw output tensor to detection.Detection values.
package yolo

import (
	"runtime"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// DefaultSharedLibPath returns the bundled ONNX Runtime library for this
// platform, or "" when none is bundled.
func DefaultSharedLibPath() string {
	return sharedLibPath(runtime.GOOS, runtime.GOARCH)
}

func sharedLibPath(goos, goarch string) string {
	switch goos {
	case "windows":
		if goarch == "amd64" {
			return "./third_party/onnxruntime.dll"
		}
	case "darwin":
		if goarch == "arm64" {
			return "./third_party/onnxruntime_arm64.dylib"
		}
	case "linux":
		if goarch == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
	return ""
}

// InitRuntime loads the ONNX Runtime shared library and initializes the
// process-wide environment. It must be called once before New.
func InitRuntime(libPath string) error {
	if libPath == "" {
		return errors.Errorf("no onnxruntime library bundled for %s/%s", runtime.GOOS, runtime.GOARCH)
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrapf(err, "initializing onnxruntime from %s", libPath)
	}
	return nil
}

// ShutdownRuntime releases the environment created by InitRuntime.
func ShutdownRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}
