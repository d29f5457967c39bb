// Package logging builds the process-wide structured logger. The service
// writes one JSON stream; packages derive children with
// logger.With("module", ...), so every line carries its origin.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configures the root logger. Zero values mean stderr at info
// level with no component tag.
type Options struct {
	Level     string
	Writer    io.Writer
	Component string
}

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

func NewLogger(opts Options) *slog.Logger {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	lg := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: parseLevel(opts.Level)}))
	if component := strings.TrimSpace(opts.Component); component != "" {
		lg = lg.With("component", component)
	}
	return lg
}

// parseLevel maps a config string to a slog level, defaulting to info so a
// typo in the level never silences the service.
func parseLevel(level string) slog.Level {
	if lv, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]; ok {
		return lv
	}
	return slog.LevelInfo
}
