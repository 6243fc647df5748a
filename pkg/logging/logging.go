package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

// RotatingFile is the size-rotated log sink returned by FileLogger.
type RotatingFile struct {
	*lumberjack.Logger
}

// FileLogger returns a JSON logger writing both to stdout and to a rotated file at opts.Path.
func FileLogger(level logrus.Level, opts FileOptions) (*RotatingFile, *logrus.Logger, error) {
	if opts.Path == "" {
		opts.Path = "./logs/app.log"
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, nil, err
	}
	file := &RotatingFile{Logger: &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}}

	logger := logrus.New()
	logger.SetOutput(io.MultiWriter(os.Stdout, file))
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(level)
	return file, logger, nil
}

// ConsoleLogger returns a text logger for command line tools.
func ConsoleLogger(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(level)
	return logger
}
