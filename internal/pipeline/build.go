package pipeline

import (
	"net/http"

	"github.com/keithlinneman/wireup/internal/decl"
	"github.com/keithlinneman/wireup/internal/httpmw"
	"github.com/keithlinneman/wireup/internal/xerrors"
)

// Build composes the named pipeline from d into one handler. The first
// listed filter is the outermost wrapper and the application is the
// innermost; composition is a strict right fold over the declared order,
// with no reordering, deduplication, or dependency inference. Duplicate
// filter names are legal and re-apply the filter.
func Build(reg *Registry, d *decl.Declaration, name string) (http.Handler, error) {
	p, ok := d.Pipelines[name]
	if !ok {
		return nil, xerrors.Wrapf(ErrUnresolvedReference, "pipeline %q is not declared", name)
	}

	// classify components and enforce the one-terminal-app shape before
	// constructing anything
	var (
		filterSpecs []decl.FilterSpec
		appSpec     decl.AppSpec
		appCount    int
	)
	for i, comp := range p.Components {
		if fs, ok := d.Filters[comp]; ok {
			if appCount > 0 {
				return nil, xerrors.Wrapf(ErrInvalidPipeline, "pipeline %q: application %q must be the terminal component", name, appSpec.Name)
			}
			filterSpecs = append(filterSpecs, fs)
			continue
		}
		if as, ok := d.Apps[comp]; ok {
			appCount++
			if appCount > 1 {
				return nil, xerrors.Wrapf(ErrInvalidPipeline, "pipeline %q declares more than one application (%q and %q)", name, appSpec.Name, as.Name)
			}
			appSpec = as
			continue
		}
		return nil, xerrors.Wrapf(ErrUnresolvedReference, "pipeline %q component %d: %q is neither a declared filter nor app", name, i, comp)
	}
	if appCount == 0 {
		return nil, xerrors.Wrapf(ErrInvalidPipeline, "pipeline %q declares no application", name)
	}

	appFactory, ok := reg.appFactory(appSpec.Use)
	if !ok {
		return nil, xerrors.Wrapf(ErrUnresolvedReference, "app %q: no factory registered for %q", appSpec.Name, appSpec.Use)
	}
	h, err := appFactory(appSpec)
	if err != nil {
		return nil, xerrors.Wrapf(err, "app %q", appSpec.Name)
	}

	mws := make([]func(http.Handler) http.Handler, 0, len(filterSpecs))
	for _, fs := range filterSpecs {
		factory, ok := reg.filterFactory(fs.Use)
		if !ok {
			return nil, xerrors.Wrapf(ErrUnresolvedReference, "filter %q: no factory registered for %q", fs.Name, fs.Use)
		}
		mw, err := factory(fs)
		if err != nil {
			return nil, xerrors.Wrapf(err, "filter %q", fs.Name)
		}
		mws = append(mws, mw)
	}

	// Chain wraps right to left, so the first declared filter ends up
	// outermost
	return httpmw.Chain(h, mws...), nil
}
