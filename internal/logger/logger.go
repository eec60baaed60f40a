// Package logger provides the shared structured logger for the delivery
// gateway.
//
// Output is JSON to stdout so edge platform log shippers can ingest lines
// without extra config. Log level is controlled by LOG_LEVEL (default: info).
// The service field is embedded in every line.
//
// Usage:
//
//	log := logger.New("delivery")
//	log.WithField("cid", cid).Info("stream served")
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New creates a logrus logger pre-configured for a named service.
func New(service string) *logrus.Entry {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	log.SetOutput(os.Stdout)

	levelStr := os.Getenv("LOG_LEVEL")
	level, err := logrus.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log.WithField("service", service)
}
