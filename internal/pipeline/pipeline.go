// Package pipeline resolves a declared chain of filter names and one
// terminal application name into a single http.Handler. Resolution runs
// over typed registries populated at startup: reference strings map to
// constructor functions, and an unknown reference fails the build rather
// than falling back to anything dynamic.
package pipeline

import (
	"errors"
	"net/http"

	"github.com/keithlinneman/wireup/internal/decl"
)

var (
	// ErrUnresolvedReference reports a pipeline component or `use`
	// reference that no registry entry satisfies.
	ErrUnresolvedReference = errors.New("unresolved reference")
	// ErrInvalidPipeline reports a pipeline with zero or more than one
	// application name, or an application that is not terminal.
	ErrInvalidPipeline = errors.New("invalid pipeline")
)

// Middleware wraps an inner handler, observing or transforming requests
// on the way in and responses on the way out.
type Middleware func(http.Handler) http.Handler

// FilterFactory builds a middleware from its declaration section.
type FilterFactory func(spec decl.FilterSpec) (Middleware, error)

// AppFactory builds the terminal application from its declaration
// section. It runs once, at startup; the handler lives for the process.
type AppFactory func(spec decl.AppSpec) (http.Handler, error)

// Registry maps `use` reference strings to factories. Lookups fail
// closed: an unregistered reference is ErrUnresolvedReference at build
// time, never a nil handler at request time.
type Registry struct {
	filters map[string]FilterFactory
	apps    map[string]AppFactory
}

func NewRegistry() *Registry {
	return &Registry{
		filters: map[string]FilterFactory{},
		apps:    map[string]AppFactory{},
	}
}

// RegisterFilter binds a reference string (e.g. "wireup:raven") to a
// filter factory. Later registrations win, which lets tests shadow the
// built-ins.
func (r *Registry) RegisterFilter(ref string, f FilterFactory) {
	r.filters[ref] = f
}

// RegisterApp binds a reference string to an application factory.
func (r *Registry) RegisterApp(ref string, f AppFactory) {
	r.apps[ref] = f
}

func (r *Registry) filterFactory(ref string) (FilterFactory, bool) {
	f, ok := r.filters[ref]
	return f, ok
}

func (r *Registry) appFactory(ref string) (AppFactory, bool) {
	f, ok := r.apps[ref]
	return f, ok
}
