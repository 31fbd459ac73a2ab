package httpmw

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/wireup/internal/log"
)

// responseWriter wraps http.ResponseWriter to capture status and bytes written.
type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// support Flush if the underlying writer does.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// support Hijack (websockets, etc).
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
	}
	return h.Hijack()
}

// AccessLog logs one line per completed request to the named logger in
// the installed topology, at INFO. Forwarded client addresses are
// preferred over the peer address when present.
func AccessLog(base log.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = log.Nop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{ResponseWriter: w}
			next.ServeHTTP(rw, r)

			status := rw.status
			if status == 0 {
				status = http.StatusOK
			}

			clientAddr := r.RemoteAddr
			if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
				parts := strings.Split(xf, ",")
				clientAddr = strings.TrimSpace(parts[0])
			}
			if host, _, err := net.SplitHostPort(clientAddr); err == nil {
				clientAddr = host
			}

			// get route pattern for http.route
			routePat := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				routePat = rc.RoutePattern()
			}
			if routePat == "" {
				routePat = r.URL.Path
			}

			L := base
			if id := RequestIDFromContext(r.Context()); id != "" {
				L = L.With("request_id", id)
			}

			L.Info(r.Context(), "http request",
				"http.request.method", r.Method,
				"url.path", r.URL.Path,
				"http.route", routePat,
				"http.response.status_code", status,
				"http.response.body.size", rw.bytes,
				"client.address", clientAddr,
				"http.server.request.duration", time.Since(start).Seconds(),
			)
		})
	}
}
