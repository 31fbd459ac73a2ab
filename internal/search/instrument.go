package search

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/wireup/internal/hook"
	"github.com/keithlinneman/wireup/internal/xerrors"
)

// TraceTransport is the `wireup.instrument:trace_transport` entry point.
// It wraps the client's round tripper with otelhttp so outbound search
// calls produce client spans.
func TraceTransport(target any) error {
	c, ok := target.(*Client)
	if !ok {
		return xerrors.Newf("trace_transport: target is %T, want *search.Client", target)
	}
	c.SetTransport(otelhttp.NewTransport(c.Transport()))
	return nil
}

// CountRequests returns the `wireup.instrument:count_requests` entry
// point bound to a counter callback.
func CountRequests(onRequest func(statusCode int)) hook.InstrumentFunc {
	return func(target any) error {
		c, ok := target.(*Client)
		if !ok {
			return xerrors.Newf("count_requests: target is %T, want *search.Client", target)
		}
		c.SetTransport(countingTransport{next: c.Transport(), onRequest: onRequest})
		return nil
	}
}

type countingTransport struct {
	next      http.RoundTripper
	onRequest func(statusCode int)
}

func (t countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		if t.onRequest != nil {
			t.onRequest(0)
		}
		return nil, err
	}
	if t.onRequest != nil {
		t.onRequest(resp.StatusCode)
	}
	return resp, nil
}
