package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger represents a logger instance
type Logger = *logrus.Logger

// Fields represents structured logging fields
type Fields = logrus.Fields

// New creates a JSON logger at the given level with a service field on every entry.
func New(serviceName string, level logrus.Level) *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(level)
	return logger.WithField("service", serviceName)
}

// Discard returns an entry that drops everything; used by tests.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
