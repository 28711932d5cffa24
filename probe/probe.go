// Package probe retrieves the tool catalogue of remote MCP servers.
//
// A probe connects to one server with the strategy matching its declared
// transport:
//
//   - "sse" servers are reached through a persistent event-stream session
//     (StreamStrategy).
//   - "http" servers are reached with three independent JSON-RPC POSTs,
//     initialize, notifications/initialized and tools/list, threading the
//     Mcp-Session-Id between them (StatelessStrategy).
//
// Strategies never fail: transport faults are logged and turned into an
// Outcome with no tools. Outcome.Reachable tells a server that never
// completed initialize apart from one that did but could not list tools.
//
// Client probes a set of servers concurrently and returns one Result per
// distinct server name.
package probe

import (
	"context"
	"encoding/json"

	"github.com/cherrydra/mcpscan/version"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const ProtocolVersion = "2024-11-05"

var (
	Implementation = &mcp.Implementation{
		Name:    "mcpscan",
		Title:   "MCP Server Tool Scanner",
		Version: version.Short(),
	}
)

// Tool is a capability advertised by a server. InputSchema is passed
// through unmodified.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

type Outcome struct {
	Tools     []Tool
	Reachable bool
}

// Strategy is one way of reaching an endpoint. Implementations are
// StreamStrategy and StatelessStrategy.
type Strategy interface {
	Probe(ctx context.Context, endpoint string, headers map[string]string) Outcome
}
