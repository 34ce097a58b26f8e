// Package logger configures the process-wide slog logger.
package logger

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level  string
	Format string
	// File, when set, receives a copy of every record and is rotated.
	File string
}

var (
	mu            sync.Mutex
	defaultLogger *slog.Logger
	closers       []io.Closer
)

// New builds a logger writing to w and, when cfg.File is set, to a rotating
// file. The returned closer releases the file.
func New(cfg Config, w io.Writer) (*slog.Logger, io.Closer) {
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		fl := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    20,
			MaxAge:     14,
			MaxBackups: 3,
			Compress:   true,
		}
		w = io.MultiWriter(w, fl)
		closer = fl
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer
}

// Init installs a stderr logger as the package and slog default.
func Init(cfg Config) *slog.Logger {
	l, c := New(cfg, os.Stderr)
	mu.Lock()
	defaultLogger = l
	closers = append(closers, c)
	mu.Unlock()
	slog.SetDefault(l)
	return l
}

// L returns the logger set by Init, or slog's default.
func L() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		return slog.Default()
	}
	return defaultLogger
}

// Named returns a child logger tagged with component=name.
func Named(name string) *slog.Logger {
	return L().With("component", name)
}

// Sync closes any log files opened by Init.
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	var err error
	for _, c := range closers {
		err = errors.Join(err, c.Close())
	}
	closers = nil
	return err
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
