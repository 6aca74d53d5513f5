package util

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents logging severity levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var logrusLevels = map[LogLevel]logrus.Level{
	LevelDebug: logrus.DebugLevel,
	LevelInfo:  logrus.InfoLevel,
	LevelWarn:  logrus.WarnLevel,
	LevelError: logrus.ErrorLevel,
}

// Logger is a leveled logger writing to stderr and, optionally, a rotating file.
type Logger struct {
	entry *logrus.Entry
	file  *lumberjack.Logger
}

var (
	defaultLogger *Logger
	loggerMu      sync.Mutex
)

// Log file rotation limits.
const (
	logMaxSizeMB  = 10
	logMaxBackups = 3
	logMaxAgeDays = 28
)

// GetLogger returns the default logger instance.
func GetLogger() *Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(LevelWarn, "")
	}
	return defaultLogger
}

// NewLogger creates a new logger with the specified level and optional file path.
// Console output goes to stderr so stdout stays reserved for results.
func NewLogger(level LogLevel, filePath string) *Logger {
	base := logrus.New()
	base.SetLevel(logrusLevels[level])
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	l := &Logger{}
	writers := []io.Writer{os.Stderr}
	if filePath != "" {
		if err := EnsureDir(filepath.Dir(filePath)); err == nil {
			l.file = &lumberjack.Logger{
				Filename:   filePath,
				MaxSize:    logMaxSizeMB,
				MaxBackups: logMaxBackups,
				MaxAge:     logMaxAgeDays,
				Compress:   true,
			}
			writers = append(writers, l.file)
		}
	}
	base.SetOutput(io.MultiWriter(writers...))
	l.entry = logrus.NewEntry(base)
	return l
}

// SetLevel sets the logging level.
func (l *Logger) SetLevel(level LogLevel) {
	l.entry.Logger.SetLevel(logrusLevels[level])
}

// SetOutput replaces the console writer. The log file, if any, is kept.
func (l *Logger) SetOutput(w io.Writer) {
	if l.file != nil {
		w = io.MultiWriter(w, l.file)
	}
	l.entry.Logger.SetOutput(w)
}

// WithFields returns a logger that attaches fields to every entry.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields)), file: l.file}
}

// ParseLevel parses a string log level.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Close closes the log file if open.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// Debug logs a debug message using the default logger.
func Debug(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

// Info logs an info message using the default logger.
func Info(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

// Warn logs a warning message using the default logger.
func Warn(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

// Error logs an error message using the default logger.
func Error(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

// WithFields returns the default logger with fields attached.
func WithFields(fields map[string]interface{}) *Logger {
	return GetLogger().WithFields(fields)
}

// InitLogger replaces the default logger.
func InitLogger(level string, filePath string) {
	l := NewLogger(ParseLevel(level), filePath)
	loggerMu.Lock()
	old := defaultLogger
	defaultLogger = l
	loggerMu.Unlock()
	if old != nil {
		_ = old.Close()
	}
}
