// Package definition holds the ambient implementations every graybat
// component falls back to when a caller does not supply its own: right
// now, just the default logger.
package definition

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

var (
	infoColor  = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	debugColor = color.New(color.FgCyan)
	fatalColor = color.New(color.FgRed, color.Bold)
)

// NewDefaultLogger builds the logger used when a communicator is not
// given one explicitly: a logrus.Logger writing to stderr, with
// colorized level prefixes and debug output disabled by default.
func NewDefaultLogger() *DefaultLogger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{DisableTimestamp: false})
	return &DefaultLogger{
		entry: logrus.NewEntry(base),
		debug: false,
	}
}

// DefaultLogger implements types.Logger on top of logrus, matching the
// level-prefixed, colorized style of the teacher's default logger
// while delegating the actual writing/formatting to logrus.
type DefaultLogger struct {
	entry *logrus.Entry
	debug bool
}

func prefixed(c *color.Color, prefix, message string) string {
	return fmt.Sprintf("%s %s", c.Sprintf("[%s]", prefix), message)
}

func (l *DefaultLogger) Info(v ...interface{}) {
	l.entry.Info(prefixed(infoColor, "INFO", fmt.Sprint(v...)))
}

func (l *DefaultLogger) Infof(format string, v ...interface{}) {
	l.entry.Info(prefixed(infoColor, "INFO", fmt.Sprintf(format, v...)))
}

func (l *DefaultLogger) Warn(v ...interface{}) {
	l.entry.Warn(prefixed(warnColor, "WARN", fmt.Sprint(v...)))
}

func (l *DefaultLogger) Warnf(format string, v ...interface{}) {
	l.entry.Warn(prefixed(warnColor, "WARN", fmt.Sprintf(format, v...)))
}

func (l *DefaultLogger) Error(v ...interface{}) {
	l.entry.Error(prefixed(errorColor, "ERROR", fmt.Sprint(v...)))
}

func (l *DefaultLogger) Errorf(format string, v ...interface{}) {
	l.entry.Error(prefixed(errorColor, "ERROR", fmt.Sprintf(format, v...)))
}

func (l *DefaultLogger) Debug(v ...interface{}) {
	if l.debug {
		l.entry.Debug(prefixed(debugColor, "DEBUG", fmt.Sprint(v...)))
	}
}

func (l *DefaultLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.entry.Debug(prefixed(debugColor, "DEBUG", fmt.Sprintf(format, v...)))
	}
}

func (l *DefaultLogger) ToggleDebug(value bool) bool {
	l.debug = value
	if value {
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
	return l.debug
}

func (l *DefaultLogger) Fatal(v ...interface{}) {
	l.entry.Fatal(prefixed(fatalColor, "FATAL", fmt.Sprint(v...)))
}

func (l *DefaultLogger) Fatalf(format string, v ...interface{}) {
	l.entry.Fatal(prefixed(fatalColor, "FATAL", fmt.Sprintf(format, v...)))
}

func (l *DefaultLogger) Panic(v ...interface{}) {
	l.entry.Panic(v...)
}

func (l *DefaultLogger) Panicf(format string, v ...interface{}) {
	l.entry.Panicf(format, v...)
}
