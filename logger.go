package workshop

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print(format("DBG", msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print(format("INF", msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print(format("WRN", msg, args...))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print(format("ERR", msg, args...))
}

func format(level, msg string, args ...any) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(level)
	b.WriteString("] WORKSHOP ")
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fmt.Fprintf(&b, " %v", args[i])
			break
		}
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	b.WriteString("\n")
	return b.String()
}

// DefaultLogger returns the stdout logger used when none is configured.
func DefaultLogger() Logger {
	return defLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger discards everything.
func NopLogger() Logger {
	return nopLogger{}
}

type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger adapts a slog.Logger. Rich errors passed as values are
// expanded into their category, text code and metadata attributes.
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return slogLogger{logger: logger}
}

func (s slogLogger) Debug(msg string, args ...any) {
	s.log(slog.LevelDebug, msg, args...)
}

func (s slogLogger) Info(msg string, args ...any) {
	s.log(slog.LevelInfo, msg, args...)
}

func (s slogLogger) Warn(msg string, args ...any) {
	s.log(slog.LevelWarn, msg, args...)
}

func (s slogLogger) Error(msg string, args ...any) {
	s.log(slog.LevelError, msg, args...)
}

func (s slogLogger) log(level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	if !s.logger.Enabled(ctx, level) {
		return
	}

	expanded := make([]any, 0, len(args))
	for _, arg := range args {
		expanded = append(expanded, arg)
		if err, ok := arg.(error); ok {
			for _, attr := range goerrors.ToSlogAttributes(err) {
				expanded = append(expanded, attr)
			}
		}
	}

	s.logger.Log(ctx, level, msg, expanded...)
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
