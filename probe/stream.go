package probe

import (
	"cmp"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/cherrydra/mcpscan/transport"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const DefaultTimeout = 30 * time.Second

// StreamStrategy probes servers speaking the SSE transport. Connect performs
// the initialize handshake; a single tools/list request follows.
type StreamStrategy struct {
	Implementation *mcp.Implementation
	// Timeout bounds the whole session, from opening the stream to the
	// tools/list reply.
	Timeout time.Duration
	// Base is the round tripper under the header injection. Defaults to
	// http.DefaultTransport.
	Base   http.RoundTripper
	Logger *slog.Logger
}

func (s StreamStrategy) Probe(ctx context.Context, endpoint string, headers map[string]string) Outcome {
	log := cmp.Or(s.Logger, slog.Default()).With("url", endpoint, "transport", transport.KindStream)
	ctx, cancel := context.WithTimeout(ctx, cmp.Or(s.Timeout, DefaultTimeout))
	defer cancel()

	client := mcp.NewClient(cmp.Or(s.Implementation, Implementation), nil)
	cs, err := client.Connect(ctx, transport.Stream(endpoint, headers, s.Base), nil)
	if err != nil {
		log.Warn("connect mcp server", "err", err)
		return Outcome{}
	}
	defer func() {
		if err := cs.Close(); err != nil {
			log.Debug("close client session", "err", err)
		}
	}()

	result, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		log.Warn("list tools", "err", err)
		return Outcome{Reachable: true}
	}
	tools := make([]Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		tools = append(tools, fromSDKTool(t, log))
	}
	return Outcome{Tools: tools, Reachable: true}
}

func fromSDKTool(t *mcp.Tool, log *slog.Logger) Tool {
	tool := Tool{Name: t.Name, Description: t.Description}
	if t.InputSchema == nil {
		return tool
	}
	schema, err := json.Marshal(t.InputSchema)
	if err != nil {
		log.Debug("marshal tool schema", "tool", t.Name, "err", err)
		return tool
	}
	tool.InputSchema = schema
	return tool
}
