// Package logging wraps logrus with the console/file fan-out used across
// the gateway, consumer, and client binaries.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

var log = defaultLogger()

func defaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	l.SetOutput(os.Stdout)
	return l
}

// Options configures Init. WriteConsole/WriteFile mirror the source's
// write_console_log/write_file_log CLI flags: false disables that sink.
type Options struct {
	Level       string
	RootPath    string
	ClientTitle string
	WriteConsole bool
	WriteFile    bool
}

// Init rebuilds the package logger according to opts. Safe to call once at
// process startup, before any component logs.
func Init(opts Options) error {
	l := logrus.New()

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return err
		}
		level = parsed
	}
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})

	var writers []io.Writer
	if opts.WriteConsole {
		writers = append(writers, os.Stdout)
	}

	if opts.WriteFile {
		if opts.RootPath == "" {
			opts.RootPath = "."
		}
		if err := os.MkdirAll(opts.RootPath, 0o755); err != nil {
			return err
		}
		name := opts.ClientTitle
		if name == "" {
			name = "process"
		}
		file, err := os.OpenFile(filepath.Join(opts.RootPath, name+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		writers = append(writers, file)
	}

	switch len(writers) {
	case 0:
		l.SetOutput(io.Discard)
	case 1:
		l.SetOutput(writers[0])
	default:
		l.SetOutput(io.MultiWriter(writers...))
	}

	log = l
	return nil
}

// Get returns the active logger.
func Get() *logrus.Logger { return log }

func WithField(key string, value interface{}) *logrus.Entry { return log.WithField(key, value) }

func WithFields(fields logrus.Fields) *logrus.Entry { return log.WithFields(fields) }

func Debug(args ...interface{})                 { log.Debug(args...) }
func Debugf(format string, args ...interface{}) { log.Debugf(format, args...) }
func Info(args ...interface{})                  { log.Info(args...) }
func Infof(format string, args ...interface{})  { log.Infof(format, args...) }
func Error(args ...interface{})                 { log.Error(args...) }
func Errorf(format string, args ...interface{}) { log.Errorf(format, args...) }
func Warn(args ...interface{})                  { log.Warn(args...) }
func Warnf(format string, args ...interface{})  { log.Warnf(format, args...) }
