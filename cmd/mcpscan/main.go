package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/cherrydra/mcpscan/config"
	"github.com/cherrydra/mcpscan/headers"
	"github.com/cherrydra/mcpscan/metrics"
	"github.com/cherrydra/mcpscan/parser"
	"github.com/cherrydra/mcpscan/probe"
	"github.com/cherrydra/mcpscan/report"
	"github.com/cherrydra/mcpscan/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

var createOutput = func(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	p := parser.Parser{}
	if err := p.Parse(args); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err.Error())
		if errors.Is(err, parser.ErrInvalidUsage) {
			printUsage(stderr)
			return 2
		}
		return 1
	}
	a := p.Arguments()
	if a.Help {
		printUsage(stdout)
		return 0
	}
	if a.Version {
		fmt.Fprintln(stdout, version.Long())
		return 0
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: a.LogLevel}))
	slog.SetDefault(logger)

	out := stdout
	var outFile io.WriteCloser
	if a.Output != "" {
		f, err := createOutput(a.Output)
		if err != nil {
			fmt.Fprintf(stderr, "Error: create output: %s\n", err.Error())
			return 1
		}
		out, outFile = f, f
	}

	paths := a.ConfigFiles
	if !a.NoDefaults {
		paths = append(paths, config.DefaultPaths()...)
	}
	conf := config.Loader{Paths: paths}.Load()

	var probes *metrics.Probes
	opts := probe.Options{
		Concurrency: a.Concurrency,
		Timeout:     a.Timeout,
		Logger:      logger,
	}
	if a.MetricsFile != "" {
		probes = metrics.New()
		opts.Metrics = probes
	}
	client := probe.NewClient(headers.Resolver{Token: a.Auth, Logger: logger}, opts)

	logger.Info("fetching tools from available servers", "servers", len(conf.Servers))
	results := client.Probe(ctx, conf.Servers)

	if err := report.Build(time.Now(), results).Write(out); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err.Error())
		if outFile != nil {
			outFile.Close()
		}
		return 1
	}
	if outFile != nil {
		if err := outFile.Close(); err != nil {
			fmt.Fprintf(stderr, "Error: close output: %s\n", err.Error())
			return 1
		}
	}
	if probes != nil {
		if err := probes.WriteFile(a.MetricsFile); err != nil {
			logger.Error("write metrics file", "file", a.MetricsFile, "err", err)
		}
	}
	if len(conf.Servers) == 0 {
		logger.Warn("no MCP servers found; configure \"mcpServers\" or \"servers\" in a VS Code mcp.json", "locations", len(paths))
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage:
  mcpscan [options]

Scans VS Code mcp.json files, probes every "sse" and "http" server for its
tools and prints a JSON report to stdout. Diagnostics go to stderr.

Options:
  -f, --file <path>           extra mcp.json to read before the defaults (repeatable)
  -n, --no-defaults           only read files given with -f or MCPSCAN_CONFIG_PATHS
  -c, --concurrency <n>       servers probed at once (default 4)
  -T, --timeout <duration>    timeout of each network call (default 30s)
  -o, --output <path>         write the report to a file instead of stdout
  -m, --metrics-file <path>   write Prometheus metrics in text format
  -l, --log-level <level>     debug, info, warn or error (default info)

  -h, --help                  show this usage
  -v, --version               show version information

Environment:
  MCP_AUTH                    bearer token sent to every server (required)
  MCPSCAN_CONFIG_PATHS        shell-quoted list of extra mcp.json files
  MCPSCAN_CONCURRENCY, MCPSCAN_TIMEOUT, MCPSCAN_LOG_LEVEL`)
}
