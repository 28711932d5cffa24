package probe

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cherrydra/mcpscan/config"
	"github.com/cherrydra/mcpscan/headers"
)

type fakeStrategy struct {
	probe func(endpoint string) Outcome

	mu      sync.Mutex
	calls   []string
	headers []map[string]string
}

func (f *fakeStrategy) Probe(_ context.Context, endpoint string, hdrs map[string]string) Outcome {
	f.mu.Lock()
	f.calls = append(f.calls, endpoint)
	f.headers = append(f.headers, hdrs)
	f.mu.Unlock()
	if f.probe == nil {
		return Outcome{Reachable: true}
	}
	return f.probe(endpoint)
}

func (f *fakeStrategy) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type observation struct {
	kind   string
	status Status
	tools  int
}

type fakeRecorder struct {
	mu  sync.Mutex
	obs []observation
}

func (r *fakeRecorder) ObserveProbe(kind string, status Status, _ time.Duration, tools int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{kind, status, tools})
}

func newTestClient(stream, stateless Strategy) *Client {
	return &Client{
		Resolver:  headers.Resolver{Token: "token", NewSessionID: func() string { return "sid" }},
		Stream:    stream,
		Stateless: stateless,
		Logger:    discard,
	}
}

func TestClientSkipsNonNetworkTransports(t *testing.T) {
	stream, stateless := &fakeStrategy{}, &fakeStrategy{}
	c := newTestClient(stream, stateless)

	results := c.Probe(context.Background(), []config.Server{
		{Name: "local", Type: "stdio", Command: "npx"},
		{Name: "untyped", URL: "https://example.com/mcp"},
		{Name: "ws", Type: "websocket", URL: "wss://example.com"},
	})

	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, StatusSkipped, r.Status(), r.Server.Name)
		assert.False(t, r.Probed)
		assert.Empty(t, r.Tools)
	}
	assert.Contains(t, results[0].Reason, "stdio")
	assert.Empty(t, stream.Calls())
	assert.Empty(t, stateless.Calls())
}

func TestClientSkipsInvalidURL(t *testing.T) {
	stream, stateless := &fakeStrategy{}, &fakeStrategy{}
	c := newTestClient(stream, stateless)

	results := c.Probe(context.Background(), []config.Server{
		{Name: "empty", Type: "sse"},
		{Name: "relative", Type: "http", URL: "/mcp"},
		{Name: "file", Type: "http", URL: "file:///tmp/x"},
	})

	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, StatusSkipped, r.Status())
		assert.Contains(t, r.Reason, "invalid url")
	}
	assert.Empty(t, stream.Calls())
	assert.Empty(t, stateless.Calls())
}

func TestClientDispatchesByTransport(t *testing.T) {
	stream := &fakeStrategy{probe: func(string) Outcome {
		return Outcome{Reachable: true, Tools: []Tool{{Name: "a"}, {Name: "b"}, {Name: "c"}}}
	}}
	stateless := &fakeStrategy{probe: func(string) Outcome { return Outcome{} }}
	c := newTestClient(stream, stateless)

	results := c.Probe(context.Background(), []config.Server{
		{Name: "events", Type: "sse", URL: "https://a.example/sse", Headers: config.KV{"X-Extra": "1"}},
		{Name: "plain", Type: "http", URL: "https://b.example/mcp"},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "events", results[0].Server.Name)
	assert.Equal(t, StatusReachable, results[0].Status())
	assert.Len(t, results[0].Tools, 3)
	assert.Equal(t, StatusUnreachable, results[1].Status())

	assert.Equal(t, []string{"https://a.example/sse"}, stream.Calls())
	assert.Equal(t, []string{"https://b.example/mcp"}, stateless.Calls())
	assert.Equal(t, map[string]string{
		"X-Extra":        "1",
		"Authorization":  "Bearer token",
		"Mcp-Session-Id": "sid",
	}, stream.headers[0])
}

func TestClientDropsDuplicateNames(t *testing.T) {
	stream := &fakeStrategy{}
	c := newTestClient(stream, &fakeStrategy{})

	results := c.Probe(context.Background(), []config.Server{
		{Name: "dup", Type: "sse", URL: "https://first.example"},
		{Name: "dup", Type: "sse", URL: "https://second.example"},
	})

	require.Len(t, results, 1)
	assert.Equal(t, "https://first.example", results[0].Server.URL)
	assert.Equal(t, []string{"https://first.example"}, stream.Calls())
}

func TestClientIsolatesFailures(t *testing.T) {
	stream := &fakeStrategy{probe: func(endpoint string) Outcome {
		switch endpoint {
		case "https://panic.example":
			panic("strategy bug")
		case "https://slow.example":
			time.Sleep(100 * time.Millisecond)
			return Outcome{}
		}
		return Outcome{Reachable: true, Tools: []Tool{{Name: "ok"}}}
	}}
	c := newTestClient(stream, &fakeStrategy{})

	results := c.Probe(context.Background(), []config.Server{
		{Name: "panics", Type: "sse", URL: "https://panic.example"},
		{Name: "slow", Type: "sse", URL: "https://slow.example"},
		{Name: "healthy", Type: "sse", URL: "https://healthy.example"},
	})

	require.Len(t, results, 3)
	assert.Equal(t, StatusUnreachable, results[0].Status())
	assert.Empty(t, results[0].Tools)
	assert.Equal(t, StatusUnreachable, results[1].Status())
	assert.Equal(t, StatusReachable, results[2].Status())
	assert.Len(t, results[2].Tools, 1)
}

func TestClientBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	stream := &fakeStrategy{probe: func(string) Outcome {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return Outcome{Reachable: true}
	}}
	c := newTestClient(stream, &fakeStrategy{})
	c.Concurrency = 2

	var servers []config.Server
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		servers = append(servers, config.Server{Name: name, Type: "sse", URL: "https://" + name + ".example"})
	}
	results := c.Probe(context.Background(), servers)

	require.Len(t, results, 6)
	for i, r := range results {
		assert.Equal(t, servers[i].Name, r.Server.Name)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Len(t, stream.Calls(), 6)
}

func TestClientRecordsMetrics(t *testing.T) {
	rec := &fakeRecorder{}
	stream := &fakeStrategy{probe: func(string) Outcome {
		return Outcome{Reachable: true, Tools: []Tool{{Name: "x"}, {Name: "y"}}}
	}}
	c := newTestClient(stream, &fakeStrategy{probe: func(string) Outcome { return Outcome{} }})
	c.Metrics = rec
	c.Concurrency = 1

	c.Probe(context.Background(), []config.Server{
		{Name: "a", Type: "sse", URL: "https://a.example"},
		{Name: "b", Type: "http", URL: "https://b.example"},
		{Name: "c", Type: "stdio"},
	})

	assert.ElementsMatch(t, []observation{
		{"sse", StatusReachable, 2},
		{"http", StatusUnreachable, 0},
		{"other", StatusSkipped, 0},
	}, rec.obs)
}

func TestNewClientWiresStrategies(t *testing.T) {
	c := NewClient(headers.Resolver{Token: "t"}, Options{Timeout: time.Second, Concurrency: 3})

	require.IsType(t, StreamStrategy{}, c.Stream)
	require.IsType(t, StatelessStrategy{}, c.Stateless)
	assert.Equal(t, time.Second, c.Stream.(StreamStrategy).Timeout)
	assert.Equal(t, time.Second, c.Stateless.(StatelessStrategy).Client.Timeout)
	assert.Equal(t, 3, c.Concurrency)
}
