package observers

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/harunnryd/cleanline/pkg/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working through the wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// HTTPMiddleware records one http_request event per request with its
// latency in milliseconds.
func HTTPMiddleware(obs metrics.Observer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)
			metrics.Record(obs, metrics.EventHTTPRequest, float64(time.Since(start).Milliseconds()), map[string]string{
				"method": r.Method,
				"route":  routeOf(r.URL.Path),
				"status": strconv.Itoa(rec.statusCode),
			})
		})
	}
}

// routeOf collapses per-asset paths so they share one series.
func routeOf(path string) string {
	if strings.HasPrefix(path, "/audio/") {
		return "/audio"
	}
	return path
}
