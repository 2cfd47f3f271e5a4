package obs

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/grocery-pos/internal/common"
)

// NewLogger configures a zerolog logger writing to stdout.
func NewLogger(format, level string) zerolog.Logger {
	return NewLoggerTo(os.Stdout, format, level)
}

// NewLoggerTo configures a zerolog logger. Format "console" (or "text") gives
// human readable output; anything else is JSON.
func NewLoggerTo(w io.Writer, format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := w
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "grocery-pos").Logger()
}

// RequestLogger writes one structured line per request. Server errors are
// logged at error level, client errors at warn.
type RequestLogger struct {
	Logger zerolog.Logger
}

// Middleware implements chi middleware for structured request logs.
func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := NewStatusRecorder(w)
		start := time.Now()
		ctx, actorOf := common.TrackActor(r.Context())
		next.ServeHTTP(recorder, r.WithContext(ctx))

		route := RoutePatternFromContext(r.Context())
		if route == "" {
			route = r.URL.Path
		}
		status := recorder.Status()
		evt := l.Logger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			evt = l.Logger.Error()
		case status >= http.StatusBadRequest:
			evt = l.Logger.Warn()
		}
		evt = evt.
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Int64("bytes", recorder.BytesWritten()).
			Str("request_id", middleware.GetReqID(r.Context()))
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			evt = evt.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
		if actor, ok := actorOf(); ok {
			evt = evt.Str("actor_id", actor.ID).Str("actor_role", actor.Role)
		}
		if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
			evt = evt.Str("idempotency_key", key)
		}
		evt.Str("remote_addr", common.ClientIP(r)).Msg("http_request")
	})
}
