package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// LogLevel is the minimum severity a message must meet to be written.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger is a mutex-guarded, level-gated writer to stdout and, optionally,
// a log file. It is this command's only process-wide singleton; the
// estimator packages never reach for it.
type Logger struct {
	mu    sync.Mutex
	level LogLevel
	inner *log.Logger
	file  *os.File
}

var (
	loggerOnce sync.Once
	logger     *Logger
)

// InitLogger creates the singleton with minLevel as its gate. If
// logFilePath is non-empty, messages are written to stdout and the file;
// otherwise to stdout only. Safe to call once; subsequent calls are no-ops.
func InitLogger(minLevel LogLevel, logFilePath string) *Logger {
	loggerOnce.Do(func() {
		var out io.Writer = os.Stdout
		var f *os.File
		if logFilePath != "" {
			var err error
			f, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				fmt.Fprintf(os.Stderr, "vicon2gt: could not open log file %s: %v\n", logFilePath, err)
			} else {
				out = io.MultiWriter(os.Stdout, f)
			}
		}
		logger = &Logger{
			level: minLevel,
			inner: log.New(out, "", 0),
			file:  f,
		}
	})
	return logger
}

// L returns the singleton, falling back to a stdout-only INFO logger if
// InitLogger was never called.
func L() *Logger {
	if logger == nil {
		return InitLogger(LevelInfo, "")
	}
	return logger
}

// Close closes the underlying log file, if one was opened.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) log(lvl LogLevel, format string, args ...interface{}) {
	if lvl < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	l.inner.Printf("%s [%s] %s", time.Now().UTC().Format(time.RFC3339), lvl, msg)
	if lvl == LevelFatal {
		os.Exit(1)
	}
}

func (l *Logger) Debug(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(LevelError, format, args...) }
func (l *Logger) Fatal(format string, args ...interface{}) { l.log(LevelFatal, format, args...) }
