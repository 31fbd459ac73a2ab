package logtree

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/keithlinneman/wireup/internal/decl"
	"github.com/keithlinneman/wireup/internal/report"
	"github.com/keithlinneman/wireup/internal/xerrors"
)

var (
	// ErrUnknownFormatter reports a handler referencing an undeclared
	// formatter.
	ErrUnknownFormatter = errors.New("unknown formatter")
	// ErrUnknownHandler reports a logger referencing an undeclared
	// handler.
	ErrUnknownHandler = errors.New("unknown handler")
	// ErrUnknownHandlerClass reports a handler class with no registered
	// sink constructor. Resolution is a closed table, not dynamic import.
	ErrUnknownHandlerClass = errors.New("unknown handler class")
)

// Env supplies the process resources sinks bind to. The zero value is
// completed with stdout/stderr and a discarding reporter factory, so
// tests can substitute buffers and recorders.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer

	// NewReporter constructs the error-report sink for a `report` class
	// handler from its DSN argument.
	NewReporter func(dsn string) (report.Reporter, error)
}

func (e Env) withDefaults() Env {
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}
	if e.NewReporter == nil {
		e.NewReporter = func(string) (report.Reporter, error) { return report.Nop(), nil }
	}
	return e
}

// Topology is a fully built logging configuration: formatters, handlers,
// and the logger tree. It is immutable once built; Install makes it the
// process-wide configuration.
type Topology struct {
	formatters map[string]*Formatter
	handlers   map[string]Handler
	loggers    map[string]*Logger // keyed by qualname, "" is root
	root       *Logger
	reporters  []report.Reporter
}

// Root returns the root logger node.
func (t *Topology) Root() *Logger { return t.root }

// Logger resolves a dotted name to its nearest declared node, walking
// the namespace toward the root. The lookup never fails: an undeclared
// name lands on its closest declared ancestor.
func (t *Topology) Logger(name string) *Logger {
	for n := name; n != ""; {
		if l, ok := t.loggers[n]; ok {
			return l
		}
		i := strings.LastIndex(n, ".")
		if i < 0 {
			break
		}
		n = n[:i]
	}
	return t.root
}

// Handler returns a declared handler by name, for observability surfaces.
func (t *Topology) Handler(name string) (Handler, bool) {
	h, ok := t.handlers[name]
	return h, ok
}

// Close flushes any reporters owned by the topology's handlers.
func (t *Topology) Close(ctx context.Context) error {
	var errs []error
	for _, r := range t.reporters {
		if err := r.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build composes formatters, then handlers, then loggers, validating
// every cross-reference in that order. Nothing is installed on failure,
// so a bad declaration can never leave a half-active topology behind.
func Build(d *decl.Declaration, env Env) (*Topology, error) {
	env = env.withDefaults()
	t := &Topology{
		formatters: map[string]*Formatter{},
		handlers:   map[string]Handler{},
		loggers:    map[string]*Logger{},
	}

	for name, fs := range d.Formatters {
		t.formatters[name] = NewFormatter(name, fs.Format)
	}

	// deterministic build order so error messages are stable
	for _, name := range sortedKeys(d.Handlers) {
		h, rep, err := buildHandler(d.Handlers[name], t.formatters, env)
		if err != nil {
			return nil, err
		}
		t.handlers[name] = h
		if rep != nil {
			t.reporters = append(t.reporters, rep)
		}
	}

	if err := buildLoggers(d.Loggers, t); err != nil {
		return nil, err
	}
	return t, nil
}

func buildHandler(hs decl.HandlerSpec, formatters map[string]*Formatter, env Env) (Handler, report.Reporter, error) {
	floor, err := ParseLevel(hs.Level)
	if err != nil {
		return nil, nil, xerrors.Wrapf(err, "handler %q", hs.Name)
	}
	f, ok := formatters[hs.Formatter]
	if !ok {
		return nil, nil, xerrors.Wrapf(ErrUnknownFormatter, "handler %q references formatter %q", hs.Name, hs.Formatter)
	}

	switch hs.Class {
	case "stream", "StreamHandler", "logging.StreamHandler":
		w := env.Stderr
		if len(hs.Args) > 0 && hs.Args[0] == "sys.stdout" {
			w = env.Stdout
		}
		return newStreamHandler(hs.Name, floor, f, w), nil, nil

	case "report", "SentryHandler", "raven.handlers.logging.SentryHandler":
		dsn := ""
		if len(hs.Args) > 0 {
			dsn = hs.Args[0]
		}
		rep, err := env.NewReporter(dsn)
		if err != nil {
			return nil, nil, xerrors.Wrapf(err, "handler %q", hs.Name)
		}
		return newReportHandler(hs.Name, floor, f, rep), rep, nil
	}
	return nil, nil, xerrors.Wrapf(ErrUnknownHandlerClass, "handler %q declares class %q", hs.Name, hs.Class)
}

func buildLoggers(specs map[string]decl.LoggerSpec, t *Topology) error {
	// the root always exists so every propagation chain terminates
	t.root = &Logger{qualname: "", floor: WARNING}
	t.loggers[""] = t.root

	declared := map[string]string{} // qualname -> declaring logger
	for _, name := range sortedKeys(specs) {
		ls := specs[name]
		floor, err := ParseLevel(ls.Level)
		if err != nil {
			return xerrors.Wrapf(err, "logger %q", name)
		}
		node := &Logger{floor: floor, propagate: ls.Propagate}
		for _, hn := range ls.Handlers {
			h, ok := t.handlers[hn]
			if !ok {
				return xerrors.Wrapf(ErrUnknownHandler, "logger %q references handler %q", name, hn)
			}
			node.handlers = append(node.handlers, h)
		}
		if name == "root" && ls.Qualname == "" {
			node.qualname = ""
			node.propagate = false
			*t.root = *node
			continue
		}
		if prior, dup := declared[ls.Qualname]; dup {
			return xerrors.Newf("logger %q duplicates qualname %q already claimed by logger %q", name, ls.Qualname, prior)
		}
		declared[ls.Qualname] = name
		node.qualname = ls.Qualname
		t.loggers[ls.Qualname] = node
	}

	// link parents: nearest declared ancestor in the dotted namespace,
	// falling back to the root
	for q, node := range t.loggers {
		if q == "" {
			continue
		}
		node.parent = t.parentOf(q)
	}
	return nil
}

func (t *Topology) parentOf(qualname string) *Logger {
	n := qualname
	for {
		i := strings.LastIndex(n, ".")
		if i < 0 {
			return t.root
		}
		n = n[:i]
		if l, ok := t.loggers[n]; ok {
			return l
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
