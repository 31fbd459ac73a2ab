package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newSearchServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("q") == "" {
			http.Error(w, "missing q", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"id":"a1","score":0.9,"title":"first"},{"id":"b2","score":0.4,"title":"second"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearch_DecodesResults(t *testing.T) {
	srv := newSearchServer(t)
	c := NewClient(srv.URL)

	got, err := c.Search(context.Background(), "annotations", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("results = %d, want 2", len(got))
	}
	if got[0].ID != "a1" || got[0].Title != "first" {
		t.Fatalf("first result = %+v", got[0])
	}
}

func TestSearch_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Search(context.Background(), "x", 0); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestCountRequests_ObservesStatus(t *testing.T) {
	srv := newSearchServer(t)
	c := NewClient(srv.URL)

	var codes []int
	fn := CountRequests(func(code int) { codes = append(codes, code) })
	if err := fn(c); err != nil {
		t.Fatalf("instrument: %v", err)
	}

	if _, err := c.Search(context.Background(), "q", 1); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(codes) != 1 || codes[0] != http.StatusOK {
		t.Fatalf("codes = %v", codes)
	}
}

func TestCountRequests_RejectsWrongTarget(t *testing.T) {
	fn := CountRequests(nil)
	if err := fn("not a client"); err == nil {
		t.Fatal("expected type error")
	}
}

func TestTraceTransport_WrapsTransport(t *testing.T) {
	srv := newSearchServer(t)
	c := NewClient(srv.URL)

	before := c.Transport()
	if err := TraceTransport(c); err != nil {
		t.Fatalf("instrument: %v", err)
	}
	if c.Transport() == before {
		t.Fatal("transport not wrapped")
	}

	// the wrapped client must still work
	if _, err := c.Search(context.Background(), "q", 1); err != nil {
		t.Fatalf("Search through traced transport: %v", err)
	}
}

func TestTraceTransport_RejectsWrongTarget(t *testing.T) {
	if err := TraceTransport(42); err == nil {
		t.Fatal("expected type error")
	}
}
