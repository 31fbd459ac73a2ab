package apps

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/keithlinneman/wireup/internal/decl"
)

func TestStatic_ServesFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi there"), 0o644); err != nil {
		t.Fatal(err)
	}

	h, err := Static(decl.AppSpec{Name: "site", Extra: map[string]string{"root": dir}})
	if err != nil {
		t.Fatalf("Static: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/hello.txt", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "hi there" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestStatic_MissingRoot(t *testing.T) {
	if _, err := Static(decl.AppSpec{Name: "site"}); err == nil {
		t.Fatal("expected error without root")
	}
	if _, err := Static(decl.AppSpec{Name: "site", Extra: map[string]string{"root": "/no/such/dir"}}); err == nil {
		t.Fatal("expected error for nonexistent root")
	}
}

func TestStatus_AnswersJSON(t *testing.T) {
	h, err := Status(decl.AppSpec{Name: "api", Extra: map[string]string{"name": "annotator"}})
	if err != nil {
		t.Fatalf("Status: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/anything", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["app"] != "annotator" || body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}
