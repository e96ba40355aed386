package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Fields = logrus.Fields

// Config controls log level, format and destination.
type Config struct {
	Level      string // debug | info | warn | error
	Format     string // json | text
	Output     string // stdout | stderr | file path
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type Logger struct {
	base *logrus.Logger
}

type Entry struct {
	entry *logrus.Entry
}

func New(cfg Config) (*Logger, error) {
	base := logrus.New()

	level, err := logrus.ParseLevel(defaultString(cfg.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	base.SetLevel(level)

	if strings.EqualFold(cfg.Format, "text") {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	base.SetOutput(resolveOutput(cfg))

	return &Logger{base: base}, nil
}

func resolveOutput(cfg Config) io.Writer {
	switch cfg.Output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		return &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    defaultInt(cfg.MaxSizeMB, 100),
			MaxBackups: defaultInt(cfg.MaxBackups, 5),
			MaxAge:     defaultInt(cfg.MaxAgeDays, 30),
			Compress:   true,
		}
	}
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func defaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

// Info logs at info level with alternating key/value pairs after the message.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.base.WithFields(pairsToFields(keysAndValues)).Info(msg)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.base.WithFields(pairsToFields(keysAndValues)).Warn(msg)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.base.WithFields(pairsToFields(keysAndValues)).Error(msg)
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.base.WithFields(pairsToFields(keysAndValues)).Debug(msg)
}

func (l *Logger) WithFields(fields Fields) *Entry {
	return &Entry{entry: l.base.WithFields(fields)}
}

func (l *Logger) WithError(err error) *Entry {
	return &Entry{entry: l.base.WithError(err)}
}

func (e *Entry) Info(msg string, args ...interface{})  { e.entry.Infof(msg, args...) }
func (e *Entry) Warn(msg string, args ...interface{})  { e.entry.Warnf(msg, args...) }
func (e *Entry) Error(msg string, args ...interface{}) { e.entry.Errorf(msg, args...) }
func (e *Entry) Debug(msg string, args ...interface{}) { e.entry.Debugf(msg, args...) }

// LogService records one service operation with duration and outcome.
func (l *Logger) LogService(service, operation string, duration time.Duration, fields map[string]interface{}, err error) {
	entry := l.base.WithFields(Fields{
		"service":     service,
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	}).WithFields(fields)

	if err != nil {
		entry.WithError(err).Error("service operation failed")
		return
	}
	entry.Info("service operation completed")
}

// LogPass records one analysis pass over one article.
func (l *Logger) LogPass(articleID string, pass int, operation string, duration time.Duration, fields map[string]interface{}, err error) {
	entry := l.base.WithFields(Fields{
		"article_id":  articleID,
		"pass":        pass,
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	}).WithFields(fields)

	if err != nil {
		entry.WithError(err).Error("pass failed")
		return
	}
	entry.Info("pass completed")
}

func pairsToFields(keysAndValues []interface{}) Fields {
	fields := Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		fields[strings.TrimSpace(key)] = keysAndValues[i+1]
	}
	return fields
}
