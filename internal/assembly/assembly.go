// Package assembly turns a parsed declaration into a running process's
// parts: it owns the built-in component registries, applies the
// instrumentation hook table, and drives the build order (logging
// topology first, then hooks, then the pipeline). Any topology or
// pipeline error is fatal; hook failures are not.
package assembly

import (
	"context"
	"net/http"
	"strconv"

	"github.com/keithlinneman/wireup/internal/apps"
	"github.com/keithlinneman/wireup/internal/decl"
	"github.com/keithlinneman/wireup/internal/hook"
	"github.com/keithlinneman/wireup/internal/httpmw"
	"github.com/keithlinneman/wireup/internal/log"
	"github.com/keithlinneman/wireup/internal/logtree"
	"github.com/keithlinneman/wireup/internal/metrics"
	"github.com/keithlinneman/wireup/internal/pipeline"
	"github.com/keithlinneman/wireup/internal/ratelimit"
	"github.com/keithlinneman/wireup/internal/report"
	"github.com/keithlinneman/wireup/internal/search"
	"github.com/keithlinneman/wireup/internal/xerrors"
)

// Options configures one assembly run.
type Options struct {
	Decl     *decl.Declaration
	Pipeline string // declared pipeline to build
	Server   string // declared server section, optional

	// Env supplies the sinks the logging topology binds to.
	Env logtree.Env

	// Install makes the built topology the process-wide logging state.
	// Off in tests, which keep their topology local.
	Install bool

	// Reporter is the error sink for the raven filter. The report log
	// handler has its own reporter, built through Env.
	Reporter report.Reporter

	Metrics *metrics.ServerMetrics

	// SearchClient is the instrumentable target for declared hooks.
	SearchClient *search.Client

	// Register, when set, adds the embedding application's own filter
	// and app factories to the built-in registry before the pipeline is
	// built.
	Register func(*pipeline.Registry)
}

// Result is an assembled process, ready to serve.
type Result struct {
	Handler      http.Handler
	Server       decl.ServerSpec
	Topology     *logtree.Topology
	Logger       log.Logger
	HooksApplied int
}

// Assemble builds everything the declaration names, in startup order:
// logging topology (installed before anything can log), instrumentation
// hooks, then the middleware pipeline.
func Assemble(ctx context.Context, o Options) (*Result, error) {
	topo, err := logtree.Build(o.Decl, o.Env)
	if err != nil {
		return nil, xerrors.Wrap(err, "logging topology")
	}
	if o.Install {
		if err := logtree.Install(topo); err != nil {
			return nil, err
		}
	}

	L := log.New(topo, "wireup")

	tbl := hook.NewTable(Instrumenters(o.Metrics), L)
	if o.Metrics != nil {
		tbl.OnApplied = o.Metrics.IncHookApplied
		tbl.OnFailed = o.Metrics.IncHookFailed
	}
	applied := tbl.Apply(ctx, o.Decl.Hooks, Targets(o.SearchClient))

	reg := Registry(ctx, Deps{
		Logger:   L,
		Access:   log.New(topo, "wsgi"),
		Metrics:  o.Metrics,
		Reporter: o.Reporter,
	})
	if o.Register != nil {
		o.Register(reg)
	}

	h, err := pipeline.Build(reg, o.Decl, o.Pipeline)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Handler:      h,
		Topology:     topo,
		Logger:       L,
		HooksApplied: applied,
	}
	if o.Server != "" {
		srv, ok := o.Decl.Servers[o.Server]
		if !ok {
			return nil, xerrors.Wrapf(pipeline.ErrUnresolvedReference, "server %q is not declared", o.Server)
		}
		res.Server = srv
	}
	return res, nil
}

// Deps carries the shared process resources built-in filters close over.
type Deps struct {
	Logger   log.Logger
	Access   log.Logger
	Metrics  *metrics.ServerMetrics
	Reporter report.Reporter
}

// Registry returns the built-in component registry. The ctx bounds
// background goroutines started by factories (the rate limiter's
// eviction loop).
func Registry(ctx context.Context, d Deps) *pipeline.Registry {
	if d.Logger == nil {
		d.Logger = log.Nop()
	}
	if d.Access == nil {
		d.Access = d.Logger
	}

	reg := pipeline.NewRegistry()

	reg.RegisterFilter("wireup:proxy-prefix", func(spec decl.FilterSpec) (pipeline.Middleware, error) {
		return httpmw.ProxyPrefix(spec.Extra["prefix"], spec.Extra["scheme"]), nil
	})

	reg.RegisterFilter("wireup:raven", func(spec decl.FilterSpec) (pipeline.Middleware, error) {
		onPanic := func() {}
		if d.Metrics != nil {
			onPanic = d.Metrics.IncHttpPanic
		}
		return httpmw.Raven(d.Reporter, d.Logger, onPanic), nil
	})

	reg.RegisterFilter("wireup:request-id", func(spec decl.FilterSpec) (pipeline.Middleware, error) {
		return httpmw.RequestID(spec.Extra["header"]), nil
	})

	reg.RegisterFilter("wireup:accesslog", func(spec decl.FilterSpec) (pipeline.Middleware, error) {
		return httpmw.AccessLog(d.Access), nil
	})

	reg.RegisterFilter("wireup:security-headers", func(spec decl.FilterSpec) (pipeline.Middleware, error) {
		return httpmw.SecurityHeaders, nil
	})

	reg.RegisterFilter("wireup:metrics", func(spec decl.FilterSpec) (pipeline.Middleware, error) {
		if d.Metrics == nil {
			return nil, xerrors.Newf("filter %q: metrics registry not available", spec.Name)
		}
		return d.Metrics.Middleware, nil
	})

	reg.RegisterFilter("wireup:ratelimit", func(spec decl.FilterSpec) (pipeline.Middleware, error) {
		opts := []ratelimit.Option{
			ratelimit.WithOnFirstDenied(func(ip string) {
				d.Logger.Warn(ctx, "rate limiting client", "client.address", ip)
			}),
		}
		if d.Metrics != nil {
			opts = append(opts, ratelimit.WithOnDenied(func(string) {
				d.Metrics.IncRateLimitDenied()
			}))
		}
		perSecond, burst, err := rateArgs(spec)
		if err != nil {
			return nil, err
		}
		if perSecond > 0 {
			opts = append(opts, ratelimit.WithRate(perSecond, burst))
		}
		return ratelimit.New(ctx, opts...).Middleware, nil
	})

	reg.RegisterApp("wireup:static", apps.Static)
	reg.RegisterApp("wireup:status", apps.Status)

	return reg
}

func rateArgs(spec decl.FilterSpec) (float64, int, error) {
	if spec.Extra["per_second"] == "" {
		return 0, 0, nil
	}
	perSecond, err := strconv.ParseFloat(spec.Extra["per_second"], 64)
	if err != nil {
		return 0, 0, xerrors.Wrapf(err, "filter %q: per_second", spec.Name)
	}
	burst := int(perSecond) * 3
	if spec.Extra["burst"] != "" {
		burst, err = strconv.Atoi(spec.Extra["burst"])
		if err != nil {
			return 0, 0, xerrors.Wrapf(err, "filter %q: burst", spec.Name)
		}
	}
	return perSecond, burst, nil
}

// Instrumenters returns the entry-point registry the hook table
// resolves `execute` references against.
func Instrumenters(m *metrics.ServerMetrics) *hook.Registry {
	reg := hook.NewRegistry()
	reg.Register("wireup.instrument:trace_transport", search.TraceTransport)

	onRequest := func(int) {}
	if m != nil {
		onRequest = m.IncSearchRequest
	}
	reg.Register("wireup.instrument:count_requests", search.CountRequests(onRequest))
	return reg
}

// Targets returns the finite map of instrumentable clients.
func Targets(c *search.Client) map[string]any {
	t := make(map[string]any)
	if c != nil {
		t["search.client"] = c
		t["search.requests"] = c
	}
	return t
}
