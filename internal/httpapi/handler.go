package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NewHandler returns the production handler (mux + observability middleware).
//
// Tests can still use NewMux directly to avoid noisy logs unless needed.
func NewHandler(opt Options) http.Handler {
	opt = opt.withDefaults()
	return withObservability(opt, NewMux(opt))
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func withObservability(opt Options, next http.Handler) http.Handler {
	log := opt.Logger.Named("access")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}

		pattern := r.Pattern
		if pattern == "" {
			pattern = "(unmatched)"
		}
		// The prefix is a credential; keep it out of labels and logs.
		pattern = redactPrefix(pattern, opt.Prefix)

		dur := time.Since(start)
		httpRequests.WithLabelValues(pattern, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(pattern).Observe(dur.Seconds())

		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			return
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("pattern", pattern),
			zap.String("name", r.PathValue("name")),
			zap.Int("status", status),
			zap.Duration("dur", dur.Round(time.Millisecond)),
			zap.Int("bytes", sw.bytes),
			zap.String("remote", r.RemoteAddr),
		}
		switch {
		case status >= 500:
			log.Error("http", fields...)
		case status >= 400:
			log.Warn("http", fields...)
		default:
			log.Info("http", fields...)
		}
	})
}

func redactPrefix(pattern, prefix string) string {
	if prefix == "" {
		return pattern
	}
	return strings.Replace(pattern, "/"+prefix+"/", "/{prefix}/", 1)
}
