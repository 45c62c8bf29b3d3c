// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds every runtime setting of the service.
type Config struct {
	Addr string

	ModelPath      string
	RuntimeLibPath string
	ImageSize      int
	// NumClasses overrides the model class count; zero means the catalog length.
	NumClasses    int
	NumAnchors    int
	ConfThreshold float64
	IoUThreshold  float64
	Threads       int

	CatalogPath    string
	AttributesPath string
	AttributesKey  string

	TopN        int
	MaxUploadMB int
	CropFormat  string

	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load reads envFiles (missing files are ignored) into the environment without
// overriding variables already set, then builds and validates a Config.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(err, "loading %s", f)
		}
	}

	cfg := &Config{
		Addr:           getEnv("CORAL_ADDR", ":8000"),
		ModelPath:      getEnv("CORAL_MODEL_PATH", "Yolo11_Best.onnx"),
		RuntimeLibPath: getEnv("CORAL_ORT_LIB", ""),
		ImageSize:      getEnvAsInt("CORAL_IMAGE_SIZE", 640),
		NumClasses:     getEnvAsInt("CORAL_NUM_CLASSES", 0),
		NumAnchors:     getEnvAsInt("CORAL_NUM_ANCHORS", 8400),
		ConfThreshold:  getEnvAsFloat("CORAL_CONF_THRESHOLD", 0.25),
		IoUThreshold:   getEnvAsFloat("CORAL_IOU_THRESHOLD", 0.45),
		Threads:        getEnvAsInt("CORAL_THREADS", 0),
		CatalogPath:    getEnv("CORAL_CATALOG_PATH", ""),
		AttributesPath: getEnv("CORAL_ATTRIBUTES_PATH", ""),
		AttributesKey:  getEnv("CORAL_ATTRIBUTES_KEY", "species"),
		TopN:           getEnvAsInt("CORAL_TOP_N", 5),
		MaxUploadMB:    getEnvAsInt("CORAL_MAX_UPLOAD_MB", 32),
		CropFormat:     strings.ToLower(getEnv("CORAL_CROP_FORMAT", "jpeg")),
		LogLevel:       getEnv("CORAL_LOG_LEVEL", "info"),
		LogFormat:      strings.ToLower(getEnv("CORAL_LOG_FORMAT", "text")),
		LogFile:        getEnv("CORAL_LOG_FILE", "app.log"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("CORAL_ADDR is empty")
	case c.ModelPath == "":
		return errors.New("CORAL_MODEL_PATH is empty")
	case c.ImageSize <= 0 || c.ImageSize%32 != 0:
		return errors.Errorf("CORAL_IMAGE_SIZE must be a positive multiple of 32, got %d", c.ImageSize)
	case c.NumClasses < 0:
		return errors.Errorf("CORAL_NUM_CLASSES must not be negative, got %d", c.NumClasses)
	case c.NumAnchors <= 0:
		return errors.Errorf("CORAL_NUM_ANCHORS must be positive, got %d", c.NumAnchors)
	case c.ConfThreshold < 0 || c.ConfThreshold > 1:
		return errors.Errorf("CORAL_CONF_THRESHOLD must be in [0,1], got %v", c.ConfThreshold)
	case c.IoUThreshold < 0 || c.IoUThreshold > 1:
		return errors.Errorf("CORAL_IOU_THRESHOLD must be in [0,1], got %v", c.IoUThreshold)
	case c.Threads < 0:
		return errors.Errorf("CORAL_THREADS must not be negative, got %d", c.Threads)
	case c.TopN < 1:
		return errors.Errorf("CORAL_TOP_N must be at least 1, got %d", c.TopN)
	case c.MaxUploadMB < 1:
		return errors.Errorf("CORAL_MAX_UPLOAD_MB must be at least 1, got %d", c.MaxUploadMB)
	case c.CropFormat != "jpeg" && c.CropFormat != "png":
		return errors.Errorf("CORAL_CROP_FORMAT must be jpeg or png, got %q", c.CropFormat)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return errors.Errorf("CORAL_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
