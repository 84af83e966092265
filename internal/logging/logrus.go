// Package logging builds logrus loggers scoped to a component.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05"

// Logrus represents the logrus logger
type Logrus struct {
	level  string
	format string
	output io.Writer
}

// NewLogrus creates a new logrus instance writing text lines to output.
func NewLogrus(level string, output io.Writer) *Logrus {
	return &Logrus{level: level, format: "text", output: output}
}

// WithFormat selects "text" or "json" output.
func (l *Logrus) WithFormat(format string) *Logrus {
	l.format = strings.ToLower(format)
	return l
}

// Get returns a logrus entry tagged with the given component context.
func (l *Logrus) Get(context string) *logrus.Entry {
	log := logrus.New()
	level, err := logrus.ParseLevel(l.level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if l.format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	}

	log.SetOutput(l.output)
	return log.WithFields(logrus.Fields{
		"Context": context,
	})
}

// Discard returns an entry that drops everything. Handy as a default.
func Discard() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}
