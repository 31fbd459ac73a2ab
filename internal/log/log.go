// Package log is the logging handle handed to components by injection.
// The interface matches how the rest of the codebase wants to talk about
// logging; records are delivered through the declared logtree topology,
// so severity floors, propagation, and sinks all come from the
// declaration rather than from code.
package log

import (
	"context"
	"fmt"
	"strings"

	"github.com/keithlinneman/wireup/internal/logtree"
)

type Logger interface {
	With(kv ...any) Logger

	Debug(ctx context.Context, msg string, kv ...any)
	Info(ctx context.Context, msg string, kv ...any)
	Warn(ctx context.Context, msg string, kv ...any)
	Error(ctx context.Context, err error, msg string, kv ...any)

	Sync() error
}

// New returns a handle that emits against the named logger in the given
// topology. The name is resolved through the dotted hierarchy, so
// descendants of declared loggers inherit their nearest ancestor's
// configuration.
func New(t *logtree.Topology, name string) Logger {
	return &treeLogger{topo: t, name: name}
}

type treeLogger struct {
	topo  *logtree.Topology
	name  string
	attrs []string // pre-rendered key=value pairs
}

func (l *treeLogger) With(kv ...any) Logger {
	next := &treeLogger{topo: l.topo, name: l.name}
	// copy-on-write so handles are safe to share concurrently
	next.attrs = append(append([]string{}, l.attrs...), renderKV(kv)...)
	return next
}

func (l *treeLogger) Debug(ctx context.Context, msg string, kv ...any) {
	l.emit(logtree.DEBUG, msg, kv)
}
func (l *treeLogger) Info(ctx context.Context, msg string, kv ...any) {
	l.emit(logtree.INFO, msg, kv)
}
func (l *treeLogger) Warn(ctx context.Context, msg string, kv ...any) {
	l.emit(logtree.WARNING, msg, kv)
}
func (l *treeLogger) Error(ctx context.Context, err error, msg string, kv ...any) {
	if err != nil {
		kv = append(kv, "err", err)
	}
	l.emit(logtree.ERROR, msg, kv)
}

func (l *treeLogger) Sync() error { return nil }

func (l *treeLogger) emit(level logtree.Level, msg string, kv []any) {
	node := l.topo.Logger(l.name)
	if !node.Enabled(level) {
		return
	}
	parts := append([]string{msg}, l.attrs...)
	parts = append(parts, renderKV(kv)...)
	node.Log(level, l.name, strings.Join(parts, " "))
}

func renderKV(kv []any) []string {
	out := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, k+"="+fmt.Sprint(kv[i+1]))
	}
	return out
}
