package probe

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cherrydra/mcpscan/config"
	"github.com/cherrydra/mcpscan/headers"
	"github.com/cherrydra/mcpscan/transport"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

type Status string

const (
	StatusReachable   Status = "reachable"
	StatusUnreachable Status = "unreachable"
	StatusSkipped     Status = "skipped"
)

// Result is the outcome for one configured server.
type Result struct {
	Server    config.Server
	Tools     []Tool
	Reachable bool
	// Probed is false when no network attempt was made; Reason says why.
	Probed bool
	Reason string
}

func (r Result) Status() Status {
	switch {
	case !r.Probed:
		return StatusSkipped
	case r.Reachable:
		return StatusReachable
	default:
		return StatusUnreachable
	}
}

// Recorder observes finished probes.
type Recorder interface {
	ObserveProbe(kind string, status Status, elapsed time.Duration, tools int)
}

type Options struct {
	Concurrency int
	// Timeout bounds each network call.
	Timeout    time.Duration
	HTTPClient *http.Client
	Metrics    Recorder
	Logger     *slog.Logger
}

type Client struct {
	Resolver    headers.Resolver
	Stream      Strategy
	Stateless   Strategy
	Concurrency int
	Metrics     Recorder
	Logger      *slog.Logger
}

func NewClient(resolver headers.Resolver, opts Options) *Client {
	timeout := cmp.Or(opts.Timeout, DefaultTimeout)
	var base http.RoundTripper
	if opts.HTTPClient != nil {
		base = opts.HTTPClient.Transport
	}
	return &Client{
		Resolver: resolver,
		Stream: StreamStrategy{
			Timeout: timeout,
			Base:    base,
			Logger:  opts.Logger,
		},
		Stateless: StatelessStrategy{
			Client: transport.Client{HTTPClient: opts.HTTPClient, Timeout: timeout},
			Logger: opts.Logger,
		},
		Concurrency: opts.Concurrency,
		Metrics:     opts.Metrics,
		Logger:      opts.Logger,
	}
}

// Probe probes every server and returns the results in input order once all
// probes have finished. A name already seen earlier in servers is dropped.
func (c *Client) Probe(ctx context.Context, servers []config.Server) []Result {
	log := cmp.Or(c.Logger, slog.Default())

	unique := make([]config.Server, 0, len(servers))
	seen := make(map[string]struct{}, len(servers))
	for _, s := range servers {
		if _, ok := seen[s.Name]; ok {
			log.Debug("server already resolved", "server", s.Name)
			continue
		}
		seen[s.Name] = struct{}{}
		unique = append(unique, s)
	}

	limit := c.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]Result, len(unique))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, s := range unique {
		g.Go(func() error {
			results[i] = c.probeOne(ctx, s, log.With("server", s.Name))
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Client) probeOne(ctx context.Context, s config.Server, log *slog.Logger) (res Result) {
	res = Result{Server: s}

	kind := transport.ParseKind(s.Type)
	if kind == transport.KindOther {
		res.Reason = fmt.Sprintf("transport %q cannot be probed", s.Type)
		log.Info("skip server", "reason", res.Reason)
		c.observe(kind.String(), res, 0)
		return res
	}
	if _, err := transport.ValidateURL(s.URL); err != nil {
		res.Reason = fmt.Sprintf("invalid url: %v", err)
		log.Warn("skip server", "reason", res.Reason)
		c.observe(kind.String(), res, 0)
		return res
	}

	strategy := c.Stream
	if kind == transport.KindStateless {
		strategy = c.Stateless
	}

	log.Info("probing", "url", s.URL, "transport", kind)
	start := time.Now()
	res.Probed = true
	defer func() {
		if r := recover(); r != nil {
			log.Error("probe panicked", "err", r)
			res.Tools, res.Reachable = nil, false
		}
		c.observe(kind.String(), res, time.Since(start))
	}()

	out := strategy.Probe(ctx, s.URL, c.Resolver.Resolve(s.Headers))
	res.Tools, res.Reachable = out.Tools, out.Reachable
	if len(res.Tools) > 0 {
		log.Info("found tools", "count", len(res.Tools))
	} else {
		log.Info("no tools retrieved", "reachable", res.Reachable)
	}
	return res
}

func (c *Client) observe(kind string, res Result, elapsed time.Duration) {
	if c.Metrics == nil {
		return
	}
	c.Metrics.ObserveProbe(kind, res.Status(), elapsed, len(res.Tools))
}
