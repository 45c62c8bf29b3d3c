package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"coral_detector/internal/app"
	"coral_detector/internal/config"
	"coral_detector/internal/logging"
	"coral_detector/internal/server"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file read before the environment")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	logger, logFile, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	}, os.Stdout)
	if err != nil {
		logrus.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logFile.Close()
	logger.Info("Logger initialized")

	// Every static resource is loaded here; nothing is served until all succeed.
	application, err := app.New(cfg, logger)
	if err != nil {
		var resErr *app.ResourceError
		if errors.As(err, &resErr) {
			logger.WithFields(logrus.Fields{
				"resource": resErr.Resource,
				"path":     resErr.Path,
			}).Fatalf("Startup halted: %v", resErr.Err)
		}
		logger.Fatalf("Startup halted: %v", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(application).ListenAndServe(ctx, cfg.Addr); err != nil && err != http.ErrServerClosed {
		logger.Errorf("Server failed: %v", err)
	}
}
