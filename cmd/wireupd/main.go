package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keithlinneman/wireup/internal/assembly"
	"github.com/keithlinneman/wireup/internal/cfg"
	"github.com/keithlinneman/wireup/internal/decl"
	"github.com/keithlinneman/wireup/internal/health"
	"github.com/keithlinneman/wireup/internal/httpserver"
	"github.com/keithlinneman/wireup/internal/log"
	"github.com/keithlinneman/wireup/internal/logtree"
	"github.com/keithlinneman/wireup/internal/metrics"
	"github.com/keithlinneman/wireup/internal/opshttp"
	"github.com/keithlinneman/wireup/internal/otelx"
	"github.com/keithlinneman/wireup/internal/prof"
	"github.com/keithlinneman/wireup/internal/report"
	"github.com/keithlinneman/wireup/internal/search"
	v "github.com/keithlinneman/wireup/internal/version"
)

const appName = "wireupd"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags and env
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, build_date=%s, go=%s, dirty=%v)\n",
			appName, vi.Version, vi.Commit, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	// Fill in config from environment variables with prefix WIREUP_ and validate
	cfg.FillFromEnv(flag.CommandLine, "WIREUP_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Parse the assembly declaration. Everything about the request path
	// lives in this file: the pipeline, its filters, the app, the server
	// binding, and the logging topology.
	d, err := decl.ParseFile(conf.DeclPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "declaration error:", err)
		os.Exit(1)
	}

	m := metrics.New()
	m.SetBuildInfoFromVersion(appName, vi)

	// The raven filter's reporter comes from the process flag; the
	// `report` log handler class gets its DSN from the declaration and
	// builds its own through Env.NewReporter. Both count drops.
	newReporter := func(dsn string) (report.Reporter, error) {
		return report.NewHTTP(dsn, report.WithOnDrop(m.IncReportDropped))
	}
	reporter := report.Nop()
	if conf.ReportDSN != "" {
		r, err := newReporter(conf.ReportDSN)
		if err != nil {
			fmt.Fprintln(os.Stderr, "report DSN error:", err)
			os.Exit(1)
		}
		reporter = r
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = reporter.Close(closeCtx)
	}()

	searchClient := search.NewClient(conf.SearchURL)

	// Assemble the declared process: logging topology first (installed
	// as the process-wide state), then instrumentation hooks, then the
	// middleware pipeline.
	res, err := assembly.Assemble(ctx, assembly.Options{
		Decl:         d,
		Pipeline:     conf.Pipeline,
		Server:       conf.Server,
		Env:          logtree.Env{NewReporter: newReporter},
		Install:      true,
		Reporter:     reporter,
		Metrics:      m,
		SearchClient: searchClient,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "assembly error:", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = res.Topology.Close(closeCtx)
	}()

	L := res.Logger.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"decl", conf.DeclPath,
		"pipeline", conf.Pipeline,
		"server", conf.Server,
		"hooks_applied", res.HooksApplied,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"pyro_server", conf.PyroServer,
		"trace_sample", conf.TraceSample,
		"search_url", conf.SearchURL,
	)

	// Setup pyroscope profiling
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       appName,
		ServerAddress: conf.PyroServer,
		Tags: map[string]string{
			"app":     appName,
			"version": vi.Version,
			"commit":  vi.Commit,
			"source":  "go-agent",
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	} else if conf.EnablePyroscope {
		m.SetProfilingActive(true)
	}
	defer func() { stopProf() }()

	// Setup otel for tracing
	// Insecure is true because we only write to a collector on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:  conf.EnableTracing,
		Endpoint: conf.OTLPEndpoint,
		Insecure: true,
		Sample:   conf.TraceSample,
		Service:  appName,
		Version:  vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	// setup toggle for server shutdown
	var gate health.ShutdownGate
	readiness := health.All(gate.Probe())

	// start the assembled pipeline on the declared host/port
	siteHTTPStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:  L,
		Host:    res.Server.Host,
		Port:    res.Server.Port,
		Handler: res.Handler,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start http listener")
		os.Exit(1)
	}
	defer func() { _ = siteHTTPStop(context.Background()) }()

	// start admin/ops listener to serve metrics, health checks and pprof.
	// listens on its own port, never through the declared pipeline.
	opsHTTPStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	// notify systemd that we started successfully if started under systemd
	if err := notifySystemd(); err != nil {
		// log and dont exit, worst case systemd will kill the process after timeout
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	// block until signal so we dont exit
	sigCtx, stopSig := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSig()
	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	L.Info(context.Background(), "shutdown signal received")

	// fail readiness checks to drain connections
	gate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed")

	L.Info(context.Background(), "sleeping 15s for in-flight requests and health checks to drain")
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(15 * time.Second):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "http server shutdown")
	}

	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}

	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}

	stopProf()

	L.Info(context.Background(), "shutdown complete")
}

func notifySystemd() error {
	// systemd will set NOTIFY_SOCKET to a unix socket path if we were started under systemd with type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	conn.Write([]byte("READY=1"))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}
