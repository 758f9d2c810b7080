// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"
)

// TextHandler renders compact single-line logs for terminals. The
// embedded handler keeps Enabled and attribute plumbing standard.
type TextHandler struct {
	slog.Handler
	l *log.Logger
}

// NewTextHandler creates a TextHandler writing to out.
func NewTextHandler(out io.Writer, options *slog.HandlerOptions) *TextHandler {
	return &TextHandler{
		Handler: slog.NewTextHandler(out, options),
		l:       log.New(out, "", 0),
	}
}

// Handle formats the record as "2006/01/02 15:04:05 LEVEL msg k=v".
func (h *TextHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	b.WriteString(r.Time.Format("2006/01/02 15:04:05"))
	b.WriteByte(' ')
	b.WriteString(r.Level.String())
	b.WriteByte(' ')
	b.WriteString(r.Message)

	r.Attrs(func(a slog.Attr) bool {
		_, _ = fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())

		return true
	})

	h.l.Println(b.String())

	return nil
}

// Setup installs the default logger. Format "json" selects structured
// JSON output, anything else the compact text handler.
func Setup(out io.Writer, format string, debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var logHandler slog.Handler
	if format == "json" {
		logHandler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		logHandler = NewTextHandler(out, handlerOpts)
	}

	slog.SetDefault(slog.New(logHandler))
}
