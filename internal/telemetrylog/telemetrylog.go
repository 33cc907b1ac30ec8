// Package telemetrylog adapts telemetry.Sink onto log/slog, fanning
// events out to a stderr text handler plus, optionally, a JSON file
// handler via slog-multi.
package telemetrylog

import (
	"context"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"

	"github.com/nexus-run/nexus/internal/telemetry"
)

// Option configures New.
type Option func(*options)

type options struct {
	debug   bool
	jsonOut io.Writer
}

// WithDebug lowers the stderr handler's level to Debug.
func WithDebug() Option { return func(o *options) { o.debug = true } }

// WithJSONFile fans events out to w as newline-delimited JSON, in
// addition to the stderr text handler.
func WithJSONFile(w io.Writer) Option { return func(o *options) { o.jsonOut = w } }

// Sink is a telemetry.Sink backed by a slog.Logger.
type Sink struct {
	logger *slog.Logger
}

// New builds a Sink. With no options it logs text lines to stderr at
// Info level.
func New(opts ...Option) *Sink {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}

	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	var handler slog.Handler = stderrHandler
	if o.jsonOut != nil {
		jsonHandler := slog.NewJSONHandler(o.jsonOut, &slog.HandlerOptions{Level: level})
		handler = slogmulti.Fanout(stderrHandler, jsonHandler)
	}

	return &Sink{logger: slog.New(handler)}
}

// Emit implements telemetry.Sink.
func (s *Sink) Emit(event string, measurements telemetry.Measurements, metadata telemetry.Metadata) {
	attrs := make([]slog.Attr, 0, len(measurements)+len(metadata)+1)
	attrs = append(attrs, slog.String("event", event))
	for k, v := range measurements {
		attrs = append(attrs, slog.Any(k, v))
	}
	for k, v := range metadata {
		attrs = append(attrs, slog.Any(k, v))
	}

	level := slog.LevelInfo
	if event == telemetry.EventPipelineException || event == telemetry.EventTaskException {
		level = slog.LevelError
	}
	s.logger.LogAttrs(context.Background(), level, event, attrs...)
}
