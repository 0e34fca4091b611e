// Command pyctoolsd is a demo driver for the pyctools dataflow runtime: it
// wires a small in-memory source -> transform -> sink graph, projects the
// graph's configuration onto CLI flags, serves Prometheus metrics, and
// drives the graph to completion (or graceful shutdown on SIGINT),
// following the teacher's cmd/driver/main.go structure (metrics
// registration, http /metrics endpoint, graceful shutdown wiring) without
// any of the camera/cgo specifics that structure originally served.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/pyctools/runtime/internal/component"
	"github.com/pyctools/runtime/internal/config"
	"github.com/pyctools/runtime/internal/confwatch"
	"github.com/pyctools/runtime/internal/metrics"
	"github.com/pyctools/runtime/internal/runner"
	"github.com/pyctools/runtime/internal/runtimelog"
	"github.com/pyctools/runtime/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	debug, logFile := preParseLogFlags(os.Args[1:])
	logger := runtimelog.New(runtimelog.Options{Debug: debug, RotateFile: logFile})

	fs := pflag.NewFlagSet("pyctoolsd", pflag.ContinueOnError)
	listenAddr := fs.String("listen", ":8080", "address to serve /metrics on")
	fs.Bool("debug", debug, "enable debug-level logging")
	fs.String("log-file", logFile, "rotate logs through this file in addition to stdout")
	serviceAction := fs.String("service", "", "install|uninstall|run as an OS background service instead of the foreground")
	configFile := fs.String("config-file", "", "optional JSON file ({\"child\":{\"leaf\":value}}) live-watched for configuration changes")

	source := &counterSource{PoolObserver: metrics.PoolObserver("source", "output")}
	transform := newIdentityTransform()
	transform.PoolObserver = metrics.PoolObserver("transform", "output")
	sink := &countingSink{}

	r := runner.New(logger, 5*time.Second)
	sourceC, err := r.NewComponent("source", source, component.ThreadLoops())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return runner.ExitFatal
	}
	transformC, err := r.NewComponent("transform", transform, component.ThreadLoops())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return runner.ExitFatal
	}
	sinkC, err := r.NewComponent("sink", sink, component.ThreadLoops())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return runner.ExitFatal
	}
	if err := sourceC.BindTo("output", transformC, "input"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return runner.ExitFatal
	}
	if err := transformC.BindTo("output", sinkC, "input"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return runner.ExitFatal
	}
	r.MarkSink("sink")

	byName := map[string]*component.Component{
		"source":    sourceC,
		"transform": transformC,
		"sink":      sinkC,
	}
	root := config.NewGrandParent()
	for _, name := range []string{"source", "transform", "sink"} {
		root.Add(name, byName[name].GetConfig())
	}
	bindings := config.RegisterFlags(fs, root)

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return runner.ExitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return runner.ExitConfigInvalid
	}

	next, err := config.Apply(bindings, root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		return runner.ExitConfigInvalid
	}
	for _, name := range next.Names() {
		sub, _ := next.Get(name)
		if err := byName[name].SetConfig(sub); err != nil {
			fmt.Fprintln(os.Stderr, "invalid configuration:", err)
			return runner.ExitConfigInvalid
		}
	}

	for name, c := range byName {
		componentName := name
		c.Instrument(
			func(d time.Duration, procErr error) { metrics.ObserveProcessFrame(componentName, d, procErr) },
			func() { metrics.IncStreamEnd(componentName) },
			func(error) { metrics.IncFatal(componentName) },
		)
	}

	if *configFile != "" {
		watchCtx, cancelWatch := context.WithCancel(context.Background())
		defer cancelWatch()
		w := confwatch.New(*configFile, decodeConfigFile(byName), logger, 200*time.Millisecond)
		go func() {
			if err := w.Run(watchCtx); err != nil {
				logger.Error("config watch stopped", runtimelog.Error(err))
			}
		}()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:           *listenAddr,
		Handler:        mux,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   7 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", runtimelog.Error(err))
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	if *serviceAction != "" {
		return runAsService(r, logger, *serviceAction)
	}

	code, runErr := r.RunWithSignals(context.Background())
	if runErr != nil {
		logger.Error("graph finished with error", runtimelog.Error(runErr))
	}
	logger.Info("sink received frames", runtimelog.Int64("count", sink.Received))
	return code
}

// preParseLogFlags extracts --debug/--log-file before the graph's
// component config tree (and therefore the rest of the flags) exists, so
// the logger handed to runner.New is already configured correctly by the
// time any component is constructed. Unknown flags and parse errors are
// ignored here; the real parse a few lines later in run() reports them
// properly once every flag is registered.
func preParseLogFlags(args []string) (debug bool, logFile string) {
	fs := pflag.NewFlagSet("pyctoolsd-prelog", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist = pflag.ParseErrorsWhitelist{UnknownFlags: true}
	fs.Usage = func() {}
	d := fs.Bool("debug", false, "")
	l := fs.String("log-file", "", "")
	_ = fs.Parse(args)
	return *d, *l
}

// decodeConfigFile returns a confwatch.Decoder that parses a JSON object of
// child -> leaf -> value, assigns each value onto a fresh copy of that
// child's live config via config.SetRawValue, and applies it through
// Component.SetConfig, so a running graph can be live-reconfigured by
// editing the file on disk (spec.md §2 item 5).
func decodeConfigFile(byName map[string]*component.Component) confwatch.Decoder {
	return func(data []byte) error {
		var raw map[string]map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("config-file: %w", err)
		}
		for childName, leaves := range raw {
			c, ok := byName[childName]
			if !ok {
				return fmt.Errorf("config-file: unknown component %q", childName)
			}
			next := c.GetConfig()
			for leafName, value := range leaves {
				node, ok := next.Get(leafName)
				if !ok {
					return fmt.Errorf("config-file: component %q has no leaf %q", childName, leafName)
				}
				if err := config.SetRawValue(node, value); err != nil {
					return fmt.Errorf("config-file: %s.%s: %w", childName, leafName, err)
				}
			}
			if err := c.SetConfig(next); err != nil {
				return fmt.Errorf("config-file: component %q: %w", childName, err)
			}
		}
		return nil
	}
}

func runAsService(r *runner.Runner, logger runtimelog.Logger, action string) int {
	svc, err := service.New(service.Config{
		Name:        "pyctoolsd",
		DisplayName: "pyctools dataflow runtime",
		Description: "Runs a pyctools component graph as a background service",
	}, r, logger, 5*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return runner.ExitFatal
	}
	switch action {
	case "install":
		if err := svc.Install(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return runner.ExitFatal
		}
	case "uninstall":
		if err := svc.Uninstall(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return runner.ExitFatal
		}
	case "run":
		if err := svc.Run(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return runner.ExitFatal
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown --service action %q\n", action)
		return runner.ExitConfigInvalid
	}
	return runner.ExitOK
}
