package server

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/pulse/internal/metrics"
)

// statusRecorder wraps [http.ResponseWriter] to capture the status code.
//
// Streaming handlers need the flusher and hijacker of the underlying writer, so both are passed through.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	if rw.status == 0 {
		rw.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

func (rw *statusRecorder) code() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

// Logging logs each request once it finishes and records it in m, which may be nil.
func Logging(logger *log.Logger, m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rw, r)

			elapsed := time.Since(start)
			route := r.Pattern
			if route == "" {
				route = r.URL.Path
			}
			m.RecordHTTPRequest(r.Method, route, rw.code(), elapsed)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rw.code(), "duration", elapsed, "remote", r.RemoteAddr)
		})
	}
}

// Recover turns a handler panic into a 500 and logs the stack.
func Recover(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					logger.Error("handler panic", "path", r.URL.Path, "panic", v, "stack", string(debug.Stack()))
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit rejects requests with 429 once limiter runs out of tokens. A nil limiter admits everything.
func RateLimit(limiter *rate.Limiter, m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				m.RecordRateLimited(r.URL.Path)
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too many sessions requested", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewLimiter builds the admission limiter for perSecond sessions with the given burst.
// It returns nil when perSecond is zero.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
