// Package logutil configures structured logging with an additional trace
// level below debug.
package logutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"
)

const LevelTrace slog.Level = slog.LevelDebug - 4

// NewLogger returns a text logger writing to w that reports the source file
// of every record.
func NewLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		AddSource:   true,
		ReplaceAttr: replaceAttr,
	}))
}

func replaceAttr(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.LevelKey:
		if level, ok := attr.Value.Any().(slog.Level); ok && level <= LevelTrace {
			attr.Value = slog.StringValue("TRACE")
		}
	case slog.SourceKey:
		if source, ok := attr.Value.Any().(*slog.Source); ok {
			source.File = filepath.Base(source.File)
		}
	}
	return attr
}

// TraceEnabled reports whether the default logger emits trace records.
func TraceEnabled() bool {
	return slog.Default().Enabled(context.Background(), LevelTrace)
}

type key string

func Trace(msg string, args ...any) {
	TraceContext(context.WithValue(context.TODO(), key("skip"), 1), msg, args...)
}

func TraceContext(ctx context.Context, msg string, args ...any) {
	if logger := slog.Default(); logger.Enabled(ctx, LevelTrace) {
		skip, _ := ctx.Value(key("skip")).(int)
		pc, _, _, _ := runtime.Caller(1 + skip)
		record := slog.NewRecord(time.Now(), LevelTrace, msg, pc)
		record.Add(args...)
		logger.Handler().Handle(ctx, record)
	}
}
