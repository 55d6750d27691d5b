package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var minLevel atomic.Int32

var (
	outMu sync.RWMutex
	out   io.Writer
	file  *lumberjack.Logger
)

func init() { minLevel.Store(int32(zerolog.InfoLevel)) }

// Options configures process-wide log output.
type Options struct {
	Level string
	// Format is "json" or "console". Empty picks console when APP_ENV=dev.
	Format string
	// File, when set, also writes JSON lines to a size-rotated file.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Configure applies o to loggers created afterwards.
func Configure(o Options) error {
	if err := SetLevel(o.Level); err != nil {
		return err
	}
	format := strings.ToLower(o.Format)
	if format == "" && strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		format = "console"
	}
	var w io.Writer = os.Stdout
	switch format {
	case "", "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	default:
		return fmt.Errorf("log format %q", o.Format)
	}

	outMu.Lock()
	defer outMu.Unlock()
	if file != nil {
		_ = file.Close()
		file = nil
	}
	if o.File != "" {
		file = &lumberjack.Logger{Filename: o.File, MaxSize: o.MaxSizeMB, MaxBackups: o.MaxBackups}
		w = zerolog.MultiLevelWriter(w, file)
	}
	out = w
	return nil
}

// Close releases the log file opened by Configure.
func Close() error {
	outMu.Lock()
	defer outMu.Unlock()
	out = nil
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

// SetLevel sets the minimum level for loggers created afterwards.
func SetLevel(level string) error {
	if level == "" {
		return nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	minLevel.Store(int32(lvl))
	return nil
}

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a logger on the configured output. Without
// Configure it writes JSON to stdout, or console lines when APP_ENV=dev.
func NewZerologLogger(component string) Logger {
	outMu.RLock()
	w := out
	outMu.RUnlock()
	if w == nil {
		w = os.Stdout
		if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
			w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		}
	}
	return NewZerologLoggerWithWriter(component, w)
}

// NewZerologLoggerWithWriter writes JSON lines to w.
func NewZerologLoggerWithWriter(component string, w io.Writer) Logger {
	z := zerolog.New(w).
		Level(zerolog.Level(minLevel.Load())).
		With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

// Debugw attaches fields as top-level keys. Incident ids go under
// "incident" so they can be filtered across components.
func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
