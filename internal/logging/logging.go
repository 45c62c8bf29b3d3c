// Package logging builds the service logger.
package logging

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Options selects level, format and an optional log file.
type Options struct {
	Level  string
	Format string
	// File, when set, receives a copy of everything written to Stdout.
	File string
}

// New returns a logger writing to stdout and, when possible, to opts.File.
// A log file that cannot be opened is reported and otherwise ignored. The
// returned closer releases the file.
func New(opts Options, stdout io.Writer) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, errors.Wrap(err, "log level")
		}
		level = parsed
	}
	log.SetLevel(level)

	switch opts.Format {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, nil, errors.Errorf("unknown log format %q", opts.Format)
	}

	log.SetOutput(stdout)
	if opts.File == "" {
		return log, nopCloser{}, nil
	}

	file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		log.WithError(err).Warn("Failed to log to file, using stdout only")
		return log, nopCloser{}, nil
	}
	log.SetOutput(io.MultiWriter(stdout, file))
	return log, file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
