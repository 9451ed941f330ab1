package redact

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ugobe007/pythh-sub021/internal/hermes"
	"github.com/ugobe007/pythh-sub021/internal/metrics"
)

// bufferedWriter holds the response until the handler returns.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

// Middleware scans every JSON response body with t before it is sent.
// Blocked fields are removed; every violation is logged, counted and emitted
// through emitter. Findings never fail the response: a body that cannot be
// parsed is sent unchanged.
func Middleware(t *Tripwire, emitter *hermes.Emitter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buf := &bufferedWriter{header: w.Header()}
			next.ServeHTTP(buf, r)
			if buf.status == 0 {
				buf.status = http.StatusOK
			}

			body := buf.body.Bytes()
			if isJSON(buf.header.Get("Content-Type")) && len(body) > 0 {
				clean, violations, err := t.ScanJSON(body)
				switch {
				case err != nil:
					logger.Warn("redaction scan skipped", "path", r.URL.Path, "error", err)
				default:
					body = clean
					report(r, violations, emitter, logger)
				}
			}

			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(buf.status)
			_, _ = w.Write(body)
		})
	}
}

func report(r *http.Request, violations []Violation, emitter *hermes.Emitter, logger *slog.Logger) {
	if len(violations) == 0 {
		return
	}
	route := r.URL.Path
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		route = rc.RoutePattern()
	}
	reqID := chiMiddleware.GetReqID(r.Context())
	now := time.Now().UTC()

	for _, v := range violations {
		logger.Warn("redaction violation",
			"type", v.Type,
			"path", v.Path,
			"preview", v.Preview,
			"route", route,
			"request_id", reqID,
		)
		metrics.RedactionViolations.WithLabelValues(string(v.Type), route).Inc()
		emitter.Emit(hermes.SubjectRedactionViolation, hermes.RedactionViolationEvent{
			Route:     route,
			RequestID: reqID,
			Type:      string(v.Type),
			Path:      v.Path,
			Preview:   v.Preview,
			Timestamp: now,
		})
	}
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "application/json")
}
