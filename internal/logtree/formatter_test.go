package logtree

import (
	"strings"
	"testing"
	"time"
)

func testRecord() Record {
	return Record{
		Time:    time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC),
		Name:    "h.api",
		Level:   WARNING,
		Message: "slow search backend",
		PID:     4242,
	}
}

func TestFormatter_Render(t *testing.T) {
	f := NewFormatter("generic", "%(asctime)s [%(process)d] [%(name)s] [%(levelname)s] %(message)s")
	got := f.Render(testRecord())
	want := "2025-03-14 09:26:53,589 [4242] [h.api] [WARNING] slow search backend"
	if got != want {
		t.Fatalf("rendered = %q, want %q", got, want)
	}
}

func TestFormatter_FieldCoverage(t *testing.T) {
	r := testRecord()
	cases := map[string]string{
		"%(name)s":      "h.api",
		"%(levelname)s": "WARNING",
		"%(levelno)s":   "30",
		"%(message)s":   "slow search backend",
	}
	for tpl, want := range cases {
		if got := NewFormatter("f", tpl).Render(r); got != want {
			t.Fatalf("Render(%q) = %q, want %q", tpl, got, want)
		}
	}
}

func TestFormatter_ProcessField(t *testing.T) {
	got := NewFormatter("f", "pid=%(process)s").Render(testRecord())
	if got != "pid=4242" {
		t.Fatalf("Render = %q", got)
	}
}

func TestFormatter_RootNameForEmptyLogger(t *testing.T) {
	r := testRecord()
	r.Name = ""
	if got := NewFormatter("f", "%(name)s").Render(r); got != "root" {
		t.Fatalf("Render = %q, want root", got)
	}
}

func TestFormatter_UnknownFieldRendersEmpty(t *testing.T) {
	if got := NewFormatter("f", "<%(thread)s>").Render(testRecord()); got != "<>" {
		t.Fatalf("Render = %q", got)
	}
}

func TestFormatter_MalformedPlaceholderKeptLiteral(t *testing.T) {
	if got := NewFormatter("f", "100%(done").Render(testRecord()); got != "100%(done" {
		t.Fatalf("Render = %q", got)
	}
}

func TestFormatter_CreatedField(t *testing.T) {
	got := NewFormatter("f", "%(created)s").Render(testRecord())
	if !strings.HasPrefix(got, "1741944413.") {
		t.Fatalf("created = %q", got)
	}
}
