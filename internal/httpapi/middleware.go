package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/rollworks/oms/internal/observability"
)

// timingWriter stamps Server-Timing and X-Response-Time right before the
// status line goes out; headers added later would never reach the client.
type timingWriter struct {
	middleware.WrapResponseWriter
	start   time.Time
	stamped bool
}

func (tw *timingWriter) stamp() {
	if tw.stamped {
		return
	}
	tw.stamped = true
	dur := msSince(tw.start)
	observability.AppendServerTiming(tw.WrapResponseWriter, "app", dur, "")
	observability.SetIfPos(tw.WrapResponseWriter, "X-Response-Time", dur)
}

func (tw *timingWriter) WriteHeader(code int) {
	tw.stamp()
	tw.WrapResponseWriter.WriteHeader(code)
}

func (tw *timingWriter) Write(b []byte) (int, error) {
	tw.stamp()
	return tw.WrapResponseWriter.Write(b)
}

// ServerTimingApp measures request processing time, writes app;dur=... to
// Server-Timing plus X-Response-Time and reports the request to
// Metrics.ObserveHTTP.
func ServerTimingApp(m observability.Metrics) func(http.Handler) http.Handler {
	if m == nil {
		m = observability.NewNoop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tw := &timingWriter{
				WrapResponseWriter: middleware.NewWrapResponseWriter(w, r.ProtoMajor),
				start:              time.Now(),
			}
			next.ServeHTTP(tw, r)
			m.ObserveHTTP(r.Method, r.URL.Path, tw.Status(), msSince(tw.start))
		})
	}
}

func msSince(t0 time.Time) float64 {
	return float64(time.Since(t0).Microseconds()) / 1000.0
}
