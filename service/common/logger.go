// Package common provides configuration, logging and error types shared by the echo service
package common

import (
	"fmt"
	"github.com/fatih/color"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/mattn/go-isatty"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// LoggerNames lists all loggers used by the echo service
var LoggerNames = []string{
	"server",
	"transport",
	"transport/tcp",
	"sink",
	"client",
}

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// dEchoLogger implements the ILogger interface with custom formatting
type dEchoLogger struct {
	name string
	// level is changed by InitLoggers while handlers are logging
	level  atomic.Int32
	logger *log.Logger
	colors map[string]*color.Color
}

func (l *dEchoLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

// enabled reports whether messages of the given level are written
func (l *dEchoLogger) enabled(level logger.LogLevel) bool {
	return logger.LogLevel(l.level.Load()) >= level
}

func (l *dEchoLogger) Debugf(format string, args ...interface{}) {
	if l.enabled(logger.DEBUG) {
		l.log("DEBUG", format, args...)
	}
}

func (l *dEchoLogger) Infof(format string, args ...interface{}) {
	if l.enabled(logger.INFO) {
		l.log("INFO", format, args...)
	}
}

func (l *dEchoLogger) Warningf(format string, args ...interface{}) {
	if l.enabled(logger.WARNING) {
		l.log("WARN", format, args...)
	}
}

func (l *dEchoLogger) Errorf(format string, args ...interface{}) {
	if l.enabled(logger.ERROR) {
		l.log("ERROR", format, args...)
	}
}

func (l *dEchoLogger) Panicf(format string, args ...interface{}) {
	if l.enabled(logger.CRITICAL) {
		panic(fmt.Sprintf(format, args...))
	}
}

// log formats and writes a log message. this internal helper is used by the public methods
func (l *dEchoLogger) log(levelStr string, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	tag := fmt.Sprintf("%-5s", levelStr)
	if c, ok := l.colors[levelStr]; ok {
		tag = c.Sprint(tag)
	}
	l.logger.Printf("%s | %-15s | %s", tag, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// logOutput is where all loggers write to. Stdout is kept free for the local echo sink.
var logOutput io.Writer = os.Stderr

// CreateLogger implements dragonboats logger.Factory
func CreateLogger(pkgName string) logger.ILogger {
	// Create standard logger with custom flags
	stdLogger := log.New(logOutput, "", log.Ldate|log.Ltime)

	l := &dEchoLogger{
		name:   pkgName,
		logger: stdLogger,
		colors: levelColors(logOutput),
	}
	l.SetLevel(logger.INFO)
	return l
}

// levelColors returns the colors for the level tags, or nil if out is not a terminal
func levelColors(out io.Writer) map[string]*color.Color {
	f, ok := out.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return nil
	}

	colors := map[string]*color.Color{
		"DEBUG": color.New(color.FgHiBlack),
		"INFO":  color.New(color.FgGreen),
		"WARN":  color.New(color.FgYellow),
		"ERROR": color.New(color.FgRed, color.Bold),
	}
	for _, c := range colors {
		c.EnableColor()
	}
	return colors
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
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

var factoryOnce sync.Once

// InitLoggers installs the custom logger factory and applies level to all loggers.
// It may be called repeatedly, e.g. by every server of a process.
func InitLoggers(levelStr string) error {
	level, err := ParseLogLevel(levelStr)
	if err != nil {
		return err
	}

	// Set as the global logger factory (only once per process)
	factoryOnce.Do(func() {
		logger.SetLoggerFactory(CreateLogger)
	})

	for _, name := range LoggerNames {
		logger.GetLogger(name).SetLevel(level)
	}
	return nil
}
