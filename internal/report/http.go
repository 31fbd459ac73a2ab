package report

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/keithlinneman/wireup/internal/xerrors"
)

const (
	defaultQueueSize = 64
	defaultTimeout   = 5 * time.Second
)

// HTTPReporter posts events as JSON to a collector endpoint identified by
// a DSN URL. Credentials embedded in the DSN userinfo are sent as the
// X-Report-Key header, not in the request URL.
type HTTPReporter struct {
	endpoint string
	key      string
	client   *http.Client

	queue chan Event
	done  chan struct{}

	// OnDrop is called with the number of events dropped so far each time
	// the queue is full. Used to feed a prometheus counter.
	onDrop func()
	// onError is called when a delivery attempt fails.
	onError func(error)

	// mu guards closed so a Capture racing Close drops the event
	// instead of sending on a closed queue.
	mu     sync.Mutex
	closed bool
}

type Option func(*HTTPReporter)

// WithTransport replaces the underlying HTTP transport, e.g. for tracing
// instrumentation or tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(r *HTTPReporter) { r.client.Transport = rt }
}

// WithQueueSize bounds the in-memory event queue.
func WithQueueSize(n int) Option {
	return func(r *HTTPReporter) {
		if n > 0 {
			r.queue = make(chan Event, n)
		}
	}
}

// WithOnDrop sets a callback invoked once per dropped event.
func WithOnDrop(fn func()) Option {
	return func(r *HTTPReporter) { r.onDrop = fn }
}

// WithOnError sets a callback invoked when delivery fails.
func WithOnError(fn func(error)) Option {
	return func(r *HTTPReporter) { r.onError = fn }
}

// NewHTTP builds a reporter from a DSN of the form
// https://<key>@host/<project>. The worker goroutine runs until Close.
func NewHTTP(dsn string, opts ...Option) (*HTTPReporter, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, xerrors.Wrapf(err, "report: bad dsn %q", dsn)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, xerrors.Newf("report: bad dsn %q (want scheme://key@host/project)", dsn)
	}
	key := ""
	if u.User != nil {
		key = u.User.Username()
		u.User = nil
	}

	r := &HTTPReporter{
		endpoint: u.String(),
		key:      key,
		client:   &http.Client{Timeout: defaultTimeout},
		queue:    make(chan Event, defaultQueueSize),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	go r.run()
	return r, nil
}

// Capture enqueues an event for delivery. Events arriving after Close,
// or while the queue is full, are dropped and counted.
func (r *HTTPReporter) Capture(ev Event) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		if r.onDrop != nil {
			r.onDrop()
		}
		return
	}
	select {
	case r.queue <- fill(ev):
		r.mu.Unlock()
	default:
		r.mu.Unlock()
		if r.onDrop != nil {
			r.onDrop()
		}
	}
}

func (r *HTTPReporter) run() {
	for ev := range r.queue {
		if err := r.send(ev); err != nil && r.onError != nil {
			r.onError(err)
		}
	}
	close(r.done)
}

func (r *HTTPReporter) send(ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return xerrors.Wrap(err, "report: encode event")
	}
	req, err := http.NewRequest(http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return xerrors.Wrap(err, "report: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if r.key != "" {
		req.Header.Set("X-Report-Key", r.key)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return xerrors.Wrap(err, "report: deliver event")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return xerrors.Newf("report: collector returned %d", resp.StatusCode)
	}
	return nil
}

// Close stops accepting events and waits for the queue to drain, bounded
// by ctx. Close is idempotent; Capture stays safe to call afterward.
func (r *HTTPReporter) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
