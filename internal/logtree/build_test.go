package logtree

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/keithlinneman/wireup/internal/decl"
	"github.com/keithlinneman/wireup/internal/report"
)

const topologyDecl = `
[loggers]
keys = root, gunicorn, h

[handlers]
keys = console, sentry

[formatters]
keys = generic

[logger_root]
level = WARNING
handlers = console, sentry

[logger_gunicorn]
level = INFO
handlers = console
qualname = gunicorn.error
propagate = 0

[logger_h]
level = INFO
handlers =
qualname = h

[handler_console]
class = stream
args = (sys.stderr,)
level = NOTSET
formatter = generic

[handler_sentry]
class = report
args = ('https://public@errors.example.com/1',)
level = WARN
formatter = generic

[formatter_generic]
format = [%(name)s] [%(levelname)s] %(message)s
`

type fixture struct {
	topo   *Topology
	stderr *bytes.Buffer
	stdout *bytes.Buffer
	rep    *report.Memory
}

func buildFixture(t *testing.T, src string) *fixture {
	t.Helper()
	d, err := decl.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse declaration: %v", err)
	}
	fx := &fixture{
		stderr: &bytes.Buffer{},
		stdout: &bytes.Buffer{},
		rep:    report.NewMemory(),
	}
	topo, err := Build(d, Env{
		Stdout:      fx.stdout,
		Stderr:      fx.stderr,
		NewReporter: func(string) (report.Reporter, error) { return fx.rep, nil },
	})
	if err != nil {
		t.Fatalf("build topology: %v", err)
	}
	fx.topo = topo
	return fx
}

func TestBuild_RootFloorRejectsInfo(t *testing.T) {
	fx := buildFixture(t, topologyDecl)

	fx.topo.Root().Log(INFO, "", "nothing to see")

	if fx.stderr.Len() != 0 {
		t.Fatalf("console received a record below the root floor: %q", fx.stderr.String())
	}
	if len(fx.rep.Events()) != 0 {
		t.Fatal("report sink received a record below the root floor")
	}
}

func TestBuild_RootWarningReachesBothHandlers(t *testing.T) {
	fx := buildFixture(t, topologyDecl)

	fx.topo.Root().Log(WARNING, "", "disk filling up")

	// console handler floor is NOTSET: no filtering beyond the logger's own
	if !strings.Contains(fx.stderr.String(), "[root] [WARNING] disk filling up") {
		t.Fatalf("console output = %q", fx.stderr.String())
	}
	// sentry handler floor is WARN, so the record lands there too
	evs := fx.rep.Events()
	if len(evs) != 1 {
		t.Fatalf("report sink events = %d, want 1", len(evs))
	}
	if evs[0].Message != "disk filling up" || evs[0].Level != "warning" {
		t.Fatalf("event = %+v", evs[0])
	}
}

func TestBuild_HandlerFloorFiltersIndependently(t *testing.T) {
	fx := buildFixture(t, strings.Replace(topologyDecl, "level = WARN\n", "level = ERROR\n", 1))

	// WARNING clears the root floor but not the sentry handler's ERROR
	// floor: only the console sees it
	fx.topo.Root().Log(WARNING, "", "disk filling up")
	if !strings.Contains(fx.stderr.String(), "[root] [WARNING] disk filling up") {
		t.Fatalf("console output = %q", fx.stderr.String())
	}
	if len(fx.rep.Events()) != 0 {
		t.Fatal("report sink received a record below its own floor")
	}

	fx.topo.Root().Log(ERROR, "", "disk full")
	if len(fx.rep.Events()) != 1 {
		t.Fatalf("report sink events = %d, want 1", len(fx.rep.Events()))
	}
}

func TestBuild_PropagationWalksToRoot(t *testing.T) {
	fx := buildFixture(t, topologyDecl)

	// logger h has no handlers and propagates; an ERROR emitted against it
	// must surface through the root's handlers
	fx.topo.Logger("h").Log(ERROR, "h", "search exploded")

	if !strings.Contains(fx.stderr.String(), "[h] [ERROR] search exploded") {
		t.Fatalf("console output = %q", fx.stderr.String())
	}
	if len(fx.rep.Events()) != 1 {
		t.Fatalf("report events = %d, want 1", len(fx.rep.Events()))
	}
	if fx.rep.Events()[0].Logger != "h" {
		t.Fatalf("event logger = %q, want h", fx.rep.Events()[0].Logger)
	}
}

func TestBuild_AncestorFloorAppliesIndependently(t *testing.T) {
	fx := buildFixture(t, topologyDecl)

	// INFO clears h's floor but not the root's WARNING floor: accepted by
	// h (which has no handlers), offered to root, and silently gated there
	fx.topo.Logger("h").Log(INFO, "h", "background refresh")

	if fx.stderr.Len() != 0 {
		t.Fatalf("console output = %q, want none", fx.stderr.String())
	}
}

func TestBuild_PropagateOffStopsAtNode(t *testing.T) {
	fx := buildFixture(t, topologyDecl)

	fx.topo.Logger("gunicorn.error").Log(ERROR, "gunicorn.error", "worker died")

	// gunicorn's own console handler fires, but with propagate = 0 the
	// record never reaches the root's sentry handler
	if !strings.Contains(fx.stderr.String(), "[gunicorn.error] [ERROR] worker died") {
		t.Fatalf("console output = %q", fx.stderr.String())
	}
	if len(fx.rep.Events()) != 0 {
		t.Fatal("record propagated past a propagate = 0 logger")
	}
}

func TestBuild_EmitNodeFloorGatesEverything(t *testing.T) {
	fx := buildFixture(t, topologyDecl)

	// DEBUG is below h's INFO floor: not accepted, so nothing propagates
	fx.topo.Logger("h").Log(DEBUG, "h", "noise")

	if fx.stderr.Len() != 0 || len(fx.rep.Events()) != 0 {
		t.Fatal("record below the emitting logger's floor was delivered")
	}
}

func TestTopology_NearestAncestorLookup(t *testing.T) {
	fx := buildFixture(t, topologyDecl)

	if got := fx.topo.Logger("h.api.search").Qualname(); got != "h" {
		t.Fatalf("Logger(h.api.search) = %q, want h", got)
	}
	if got := fx.topo.Logger("gunicorn.error").Qualname(); got != "gunicorn.error" {
		t.Fatalf("Logger(gunicorn.error) = %q", got)
	}
	if got := fx.topo.Logger("unrelated.thing").Qualname(); got != "root" {
		t.Fatalf("Logger(unrelated.thing) = %q, want root", got)
	}
}

func TestBuild_DeterministicRebuild(t *testing.T) {
	a := buildFixture(t, topologyDecl)
	b := buildFixture(t, topologyDecl)

	for _, fx := range []*fixture{a, b} {
		fx.topo.Root().Log(INFO, "", "drop me")
		fx.topo.Root().Log(CRITICAL, "", "keep me")
		fx.topo.Logger("h").Log(WARNING, "h", "and me")
	}

	if a.stderr.String() != b.stderr.String() {
		t.Fatalf("console output differs across rebuilds:\n%q\n%q", a.stderr.String(), b.stderr.String())
	}
	if len(a.rep.Events()) != len(b.rep.Events()) {
		t.Fatal("report deliveries differ across rebuilds")
	}
}

func TestBuild_StdoutStream(t *testing.T) {
	src := `
[loggers]
keys = root
[handlers]
keys = console
[formatters]
keys = plain
[logger_root]
level = INFO
handlers = console
[handler_console]
class = stream
args = (sys.stdout,)
level = NOTSET
formatter = plain
[formatter_plain]
format = %(message)s
`
	fx := buildFixture(t, src)
	fx.topo.Root().Log(INFO, "", "hello")
	if fx.stdout.String() != "hello\n" {
		t.Fatalf("stdout = %q", fx.stdout.String())
	}
	if fx.stderr.Len() != 0 {
		t.Fatal("record went to stderr, not stdout")
	}
}

func buildErr(t *testing.T, src string) error {
	t.Helper()
	d, err := decl.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse declaration: %v", err)
	}
	_, err = Build(d, Env{})
	if err == nil {
		t.Fatal("expected build error")
	}
	return err
}

func TestBuild_UnknownFormatter(t *testing.T) {
	err := buildErr(t, `
[loggers]
keys = root
[handlers]
keys = console
[formatters]
keys = generic
[logger_root]
level = INFO
handlers = console
[handler_console]
class = stream
args = (sys.stderr,)
level = NOTSET
formatter = missing
[formatter_generic]
format = %(message)s
`)
	if !errors.Is(err, ErrUnknownFormatter) {
		t.Fatalf("err = %v, want ErrUnknownFormatter", err)
	}
	if !strings.Contains(err.Error(), `"console"`) || !strings.Contains(err.Error(), `"missing"`) {
		t.Fatalf("error does not name the failing entities: %v", err)
	}
}

func TestBuild_UnknownHandler(t *testing.T) {
	err := buildErr(t, `
[loggers]
keys = root
[handlers]
keys = console
[formatters]
keys = generic
[logger_root]
level = INFO
handlers = console, ghost
[handler_console]
class = stream
args = (sys.stderr,)
level = NOTSET
formatter = generic
[formatter_generic]
format = %(message)s
`)
	if !errors.Is(err, ErrUnknownHandler) {
		t.Fatalf("err = %v, want ErrUnknownHandler", err)
	}
}

func TestBuild_DuplicateQualname(t *testing.T) {
	err := buildErr(t, `
[loggers]
keys = root, api, legacy
[handlers]
keys = console
[formatters]
keys = generic
[logger_root]
level = WARNING
handlers = console
[logger_api]
level = INFO
handlers =
qualname = svc.api
[logger_legacy]
level = DEBUG
handlers =
qualname = svc.api
[handler_console]
class = stream
args = (sys.stderr,)
level = NOTSET
formatter = generic
[formatter_generic]
format = %(message)s
`)
	if !strings.Contains(err.Error(), `"svc.api"`) {
		t.Fatalf("error does not name the duplicated qualname: %v", err)
	}
	if !strings.Contains(err.Error(), `"api"`) || !strings.Contains(err.Error(), `"legacy"`) {
		t.Fatalf("error does not name both claimants: %v", err)
	}
}

func TestBuild_InvalidSeverity(t *testing.T) {
	err := buildErr(t, `
[loggers]
keys = root
[handlers]
keys = console
[formatters]
keys = generic
[logger_root]
level = LOUD
handlers = console
[handler_console]
class = stream
args = (sys.stderr,)
level = NOTSET
formatter = generic
[formatter_generic]
format = %(message)s
`)
	if !errors.Is(err, ErrInvalidSeverity) {
		t.Fatalf("err = %v, want ErrInvalidSeverity", err)
	}
}

func TestBuild_UnknownHandlerClass(t *testing.T) {
	err := buildErr(t, `
[loggers]
keys = root
[handlers]
keys = console
[formatters]
keys = generic
[logger_root]
level = INFO
handlers = console
[handler_console]
class = carrier.pigeon
args = ()
level = NOTSET
formatter = generic
[formatter_generic]
format = %(message)s
`)
	if !errors.Is(err, ErrUnknownHandlerClass) {
		t.Fatalf("err = %v, want ErrUnknownHandlerClass", err)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"NOTSET":   NOTSET,
		"debug":    DEBUG,
		"Info":     INFO,
		"WARN":     WARNING,
		"WARNING":  WARNING,
		"ERROR":    ERROR,
		"CRITICAL": CRITICAL,
	}
	for tok, want := range cases {
		got, err := ParseLevel(tok)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", tok, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tok, got, want)
		}
	}

	if _, err := ParseLevel("LOUD"); !errors.Is(err, ErrInvalidSeverity) {
		t.Fatalf("ParseLevel(LOUD) err = %v", err)
	}
}

func TestInstall_SealsAfterFirstUse(t *testing.T) {
	fx := buildFixture(t, topologyDecl)

	if err := Install(fx.topo); err != nil {
		t.Fatalf("first Install: %v", err)
	}
	if Active() != fx.topo {
		t.Fatal("Active() does not return the installed topology")
	}

	other := buildFixture(t, topologyDecl)
	if err := Install(other.topo); err == nil {
		t.Fatal("second Install succeeded; topology must be sealed")
	}
	if Active() != fx.topo {
		t.Fatal("failed Install replaced the active topology")
	}

	if err := Install(nil); err == nil {
		t.Fatal("Install(nil) succeeded")
	}
}
