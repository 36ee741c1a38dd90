// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Config represents logger configuration.
type Config struct {
	Output string // "stdout", "stderr", or a file path
	Level  string // "debug", "info", "warn", "error"
}

// Init initializes the global zerolog logger with the given configuration.
// Console outputs get colored human-readable lines, files get JSON.
func Init(cfg Config) error {
	level := parseLevel(cfg.Level)

	writer, console, err := openOutput(cfg.Output)
	if err != nil {
		return err
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.TimeOnly
	zerolog.CallerMarshalFunc = shortCaller

	logger := New(writer, console, level)
	zerolog.DefaultContextLogger = &logger
	zlog.Logger = logger

	return nil
}

// New builds a logger writing to w. Caller information is only attached at
// debug level.
func New(w io.Writer, console bool, level zerolog.Level) zerolog.Logger {
	if console {
		cw := zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.TimeOnly,
		}
		if level == zerolog.DebugLevel {
			cw.PartsOrder = []string{"time", "level", "message", "caller"}
			cw.FormatCaller = func(i interface{}) string {
				return "(" + i.(string) + ")"
			}
		}
		w = cw
	}

	ctx := zerolog.New(w).Level(level).With().Timestamp()
	if level == zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// openOutput resolves the output writer and whether it is a terminal stream.
func openOutput(output string) (io.Writer, bool, error) {
	switch strings.ToLower(output) {
	case "stdout", "":
		return os.Stdout, true, nil
	case "stderr":
		return os.Stderr, true, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, false, errors.Wrapf(err, "failed to open log file %s", output)
		}
		return f, false, nil
	}
}

// shortCaller trims the caller to "dir/file.go:line".
func shortCaller(_ uintptr, file string, line int) string {
	parts := strings.Split(file, string(filepath.Separator))
	if len(parts) > 1 {
		return filepath.Join(parts[len(parts)-2:]...) + ":" + strconv.Itoa(line)
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// parseLevel parses the log level string.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
