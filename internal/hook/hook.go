// Package hook applies declared instrumentation to library clients at
// assembly time.
//
// A declaration names a target (the client being instrumented) and an
// entry point (the instrumentation function, as `module:callable`).
// Targets are a finite map supplied by the assembler; entry points come
// from a typed registry. Application is best effort: a hook that cannot
// be resolved or fails to apply is logged and skipped, never fatal,
// because observability tooling must not prevent the process from
// serving.
package hook

import (
	"context"
	"errors"

	"github.com/keithlinneman/wireup/internal/decl"
	"github.com/keithlinneman/wireup/internal/log"
	"github.com/keithlinneman/wireup/internal/xerrors"
)

// ErrHookResolution marks a hook whose target or entry point could not
// be resolved, or whose application failed.
var ErrHookResolution = errors.New("hook resolution failure")

// InstrumentFunc mutates or wraps the given target. Implementations
// type-assert to the concrete client they instrument and fail when
// handed something else.
type InstrumentFunc func(target any) error

// Registry maps entry-point references to instrumentation functions.
type Registry struct {
	funcs map[string]InstrumentFunc
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]InstrumentFunc)}
}

func (r *Registry) Register(ref string, fn InstrumentFunc) {
	r.funcs[ref] = fn
}

func (r *Registry) lookup(ref string) (InstrumentFunc, bool) {
	fn, ok := r.funcs[ref]
	return fn, ok
}

// Table applies declared hooks against a known set of targets.
type Table struct {
	reg *Registry
	L   log.Logger

	// counters, both optional
	OnApplied func(target string)
	OnFailed  func(target string)
}

func NewTable(reg *Registry, L log.Logger) *Table {
	if L == nil {
		L = log.Nop()
	}
	return &Table{reg: reg, L: L}
}

// Apply walks the declared hooks and applies each enabled one to its
// target. Failures are logged and counted but never returned: a broken
// hook must not stop assembly. The number of successfully applied hooks
// is returned for observability.
func (t *Table) Apply(ctx context.Context, hooks []decl.HookSpec, targets map[string]any) int {
	applied := 0
	for _, h := range hooks {
		if !h.Enabled {
			t.L.Debug(ctx, "instrumentation hook disabled", "target", h.Target)
			continue
		}

		if err := t.applyOne(h, targets); err != nil {
			t.L.Warn(ctx, "instrumentation hook skipped",
				"target", h.Target,
				"execute", h.Execute,
				"error", err.Error(),
			)
			if t.OnFailed != nil {
				t.OnFailed(h.Target)
			}
			continue
		}

		t.L.Info(ctx, "instrumentation hook applied", "target", h.Target, "execute", h.Execute)
		if t.OnApplied != nil {
			t.OnApplied(h.Target)
		}
		applied++
	}
	return applied
}

func (t *Table) applyOne(h decl.HookSpec, targets map[string]any) error {
	target, ok := targets[h.Target]
	if !ok {
		return xerrors.Wrapf(ErrHookResolution, "no instrumentable target %q", h.Target)
	}
	fn, ok := t.reg.lookup(h.Execute)
	if !ok {
		return xerrors.Wrapf(ErrHookResolution, "no entry point registered for %q", h.Execute)
	}
	if err := fn(target); err != nil {
		return xerrors.Wrapf(ErrHookResolution, "applying %q to %q: %v", h.Execute, h.Target, err)
	}
	return nil
}
