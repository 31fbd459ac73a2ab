package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestNewHTTP_BadDSN(t *testing.T) {
	for _, dsn := range []string{"", "not a url ://", "relative/path"} {
		if _, err := NewHTTP(dsn); err == nil {
			t.Fatalf("NewHTTP(%q): expected error", dsn)
		}
	}
}

func TestHTTPReporter_DeliversEvent(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Event
		gotKey   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode: %v", err)
		}
		mu.Lock()
		received = append(received, ev)
		gotKey = r.Header.Get("X-Report-Key")
		mu.Unlock()
	}))
	defer srv.Close()

	dsn := "http://public@" + srv.Listener.Addr().String() + "/1"
	r, err := NewHTTP(dsn)
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}

	r.Capture(Event{Level: "error", Message: "boom", Logger: "h"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("received %d events, want 1", len(received))
	}
	ev := received[0]
	if ev.Message != "boom" || ev.Level != "error" || ev.Logger != "h" {
		t.Fatalf("event = %+v", ev)
	}
	if ev.ID == "" {
		t.Fatal("event id not assigned")
	}
	if ev.Timestamp.IsZero() {
		t.Fatal("timestamp not assigned")
	}
	if gotKey != "public" {
		t.Fatalf("key header = %q, want %q", gotKey, "public")
	}
}

func TestHTTPReporter_KeyNotInURL(t *testing.T) {
	r, err := NewHTTP("https://secret@collector.example.com/7")
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	defer r.Close(context.Background())

	if r.endpoint != "https://collector.example.com/7" {
		t.Fatalf("endpoint = %q, credentials leaked", r.endpoint)
	}
	if r.key != "secret" {
		t.Fatalf("key = %q", r.key)
	}
}

func TestHTTPReporter_DropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	drops := 0
	r, err := NewHTTP("http://k@"+srv.Listener.Addr().String()+"/1",
		WithQueueSize(1),
		WithOnDrop(func() { drops++ }),
	)
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}

	// first event occupies the worker, second fills the queue, the rest drop
	for i := 0; i < 10; i++ {
		r.Capture(Event{Message: "x"})
	}
	if drops == 0 {
		t.Fatal("no events dropped with a full queue")
	}
}

func TestHTTPReporter_CaptureAfterCloseDrops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	drops := 0
	r, err := NewHTTP("http://k@"+srv.Listener.Addr().String()+"/1",
		WithOnDrop(func() { drops++ }),
	)
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// a shutdown-time capture must be dropped, never sent on the closed queue
	r.Capture(Event{Message: "late"})
	if drops != 1 {
		t.Fatalf("drops = %d, want 1", drops)
	}

	// Close stays idempotent after late captures
	if err := r.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestHTTPReporter_OnErrorForServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	errs := make(chan error, 1)
	r, err := NewHTTP("http://k@"+srv.Listener.Addr().String()+"/1",
		WithOnError(func(e error) {
			select {
			case errs <- e:
			default:
			}
		}),
	)
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}

	r.Capture(Event{Message: "x"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = r.Close(ctx)

	select {
	case <-errs:
	default:
		t.Fatal("delivery failure not surfaced via OnError")
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	m.Capture(Event{Message: "a"})
	m.Capture(Event{Message: "b"})

	evs := m.Events()
	if len(evs) != 2 {
		t.Fatalf("events = %d, want 2", len(evs))
	}
	if evs[0].ID == "" || evs[1].ID == "" {
		t.Fatal("ids not assigned")
	}

	m.Reset()
	if len(m.Events()) != 0 {
		t.Fatal("Reset did not clear events")
	}
}

func TestNop(t *testing.T) {
	n := Nop()
	n.Capture(Event{Message: "ignored"})
	if err := n.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
