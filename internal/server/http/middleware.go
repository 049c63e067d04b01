package httpserver

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	logpkg "github.com/brugmanjoost/drumbeat/pkg/log"
)

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusRecorder) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func requestID(r *http.Request) string {
	if id := r.Header.Get(requestIDHeader); id != "" {
		return id
	}
	return uuid.New().String()
}

// withLogging tags the request with an id, echoes it back and logs one
// line per completed request.
func withLogging(logger logpkg.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := requestID(r)
			w.Header().Set(requestIDHeader, id)
			r = r.WithContext(logpkg.ContextWithRequestID(r.Context(), id))

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			entry := logger.WithContext(r.Context()).WithFields(logpkg.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
				"status": rec.Status(),
				"ip":     r.RemoteAddr,
			})
			fields := []logpkg.Field{logpkg.Duration("duration", time.Since(start))}
			if rec.Status() >= http.StatusInternalServerError {
				entry.Warn("request completed", fields...)
				return
			}
			entry.Debug("request completed", fields...)
		})
	}
}

// withRecovery turns a handler panic into 500 error-internal.
func withRecovery(logger logpkg.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					logger.WithContext(r.Context()).WithFields(logpkg.Fields{
						"panic": v,
						"stack": string(debug.Stack()),
					}).Error("handler panicked")
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"result":"error-internal"}` + "\n"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
