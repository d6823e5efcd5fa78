package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// New builds a logrus logger writing to stdout. Unknown levels fall back to
// info and unknown formats to text.
func New(level, format string) *logrus.Logger {
	return NewWithOutput(os.Stdout, level, format)
}

func NewWithOutput(out io.Writer, level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(ParseLevel(level))

	switch strings.ToLower(format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}
	return l
}

func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// WithComponent tags every entry with the emitting component.
func WithComponent(l logrus.FieldLogger, component string) logrus.FieldLogger {
	return l.WithField("component", component)
}

func WithJob(l logrus.FieldLogger, jobID, jobType string) logrus.FieldLogger {
	return l.WithFields(logrus.Fields{
		"job_id":   jobID,
		"job_type": jobType,
	})
}

func WithWorker(l logrus.FieldLogger, workerID string) logrus.FieldLogger {
	return l.WithField("worker_id", workerID)
}
