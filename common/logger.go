// Package common provides the shared configuration and logging
// infrastructure used by every layer of the client.
package common

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Custom Logger (implements logger.ILogger)
// --------------------------------------------------------------------------

// levelTags maps a level to the tag printed in the log line
var levelTags = map[logger.LogLevel]string{
	logger.DEBUG:    "DEBUG",
	logger.INFO:     "INFO",
	logger.WARNING:  "WARN",
	logger.ERROR:    "ERROR",
	logger.CRITICAL: "PANIC",
}

// orientLogger implements the ILogger interface with custom formatting
type orientLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *orientLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *orientLogger) Debugf(format string, args ...interface{}) {
	l.write(logger.DEBUG, format, args...)
}

func (l *orientLogger) Infof(format string, args ...interface{}) {
	l.write(logger.INFO, format, args...)
}

func (l *orientLogger) Warningf(format string, args ...interface{}) {
	l.write(logger.WARNING, format, args...)
}

func (l *orientLogger) Errorf(format string, args ...interface{}) {
	l.write(logger.ERROR, format, args...)
}

func (l *orientLogger) Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-15s | %s", levelTags[logger.CRITICAL], l.name, msg)
	panic(msg)
}

// write drops messages above the configured level and renders the rest
// as one aligned line per entry.
func (l *orientLogger) write(level logger.LogLevel, format string, args ...interface{}) {
	if l.level < level {
		return
	}
	l.logger.Printf("%-5s | %-15s | %s", levelTags[level], l.name, fmt.Sprintf(format, args...))
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger implements the logger.Factory interface
func CreateLogger(pkgName string) logger.ILogger {
	stdLogger := log.New(os.Stderr, "", log.Ldate|log.Ltime)

	return &orientLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: stdLogger,
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers installs the custom factory and configures the level of
// every named logger the client uses. The ORIENT_DEBUG environment
// variable forces debug level regardless of the configured one.
func InitLoggers(logLevel string) error {
	logger.SetLoggerFactory(CreateLogger)

	level, err := ParseLogLevel(logLevel)
	if err != nil {
		return err
	}
	if os.Getenv("ORIENT_DEBUG") != "" {
		level = logger.DEBUG
	}

	for _, name := range []string{"transport", "message", "client", "cli"} {
		logger.GetLogger(name).SetLevel(level)
	}
	return nil
}
