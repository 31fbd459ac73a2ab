package httpmw

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/keithlinneman/wireup/internal/log"
	"github.com/keithlinneman/wireup/internal/report"
)

// Raven recovers panics from the inner handler, captures an error event
// with the goroutine stack, logs it, and serves a plain 500. The request
// never escapes with a half-written panic trace.
//
// onPanic, if non-nil, is called after capture (the metrics layer hooks
// in here). http.ErrAbortHandler is re-raised so the server's connection
// teardown still works.
func Raven(rep report.Reporter, L log.Logger, onPanic func()) func(http.Handler) http.Handler {
	if rep == nil {
		rep = report.Nop()
	}
	if L == nil {
		L = log.Nop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rec)
				}

				stack := make([]byte, 64<<10)
				stack = stack[:runtime.Stack(stack, false)]

				rep.Capture(report.Event{
					Level:   "error",
					Message: err.Error(),
					Stack:   string(stack),
					Tags: map[string]string{
						"http.request.method": r.Method,
						"url.path":            r.URL.Path,
					},
				})

				L.Error(r.Context(), err, "panic recovered",
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
				)

				if onPanic != nil {
					onPanic()
				}

				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
