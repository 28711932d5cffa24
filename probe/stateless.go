package probe

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"

	"github.com/cherrydra/mcpscan/headers"
	"github.com/cherrydra/mcpscan/transport"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tidwall/gjson"
)

const (
	methodInitialize  = "initialize"
	methodInitialized = "notifications/initialized"
	methodListTools   = "tools/list"

	initializeID = 1
	listToolsID  = 2
)

var ErrEmptyInitializeReply = errors.New("empty initialize reply")

// StatelessStrategy probes servers that only accept independent JSON-RPC
// POSTs. Steps run strictly in order, each with its own timeout.
type StatelessStrategy struct {
	Client         transport.Client
	Implementation *mcp.Implementation
	Logger         *slog.Logger
}

// session is the Mcp-Session-Id authoritative for the next step. It starts
// as the locally generated id and is replaced once by the id the server
// returns from initialize.
type session struct {
	id string
}

func (s session) adopt(id string) session {
	if id == "" {
		return s
	}
	return session{id: id}
}

type initializeParams struct {
	ProtocolVersion string              `json:"protocolVersion"`
	Capabilities    struct{}            `json:"capabilities"`
	ClientInfo      *mcp.Implementation `json:"clientInfo"`
}

func (s StatelessStrategy) Probe(ctx context.Context, endpoint string, hdrs map[string]string) Outcome {
	log := cmp.Or(s.Logger, slog.Default()).With("url", endpoint, "transport", transport.KindStateless)

	sess, err := s.initialize(ctx, endpoint, hdrs, session{id: lookupSession(hdrs)})
	if err != nil {
		log.Warn("initialize", "err", err)
		return Outcome{}
	}
	if err := s.acknowledge(ctx, endpoint, hdrs, sess); err != nil {
		log.Warn("initialized notification not delivered", "err", err)
	}
	tools, err := s.listTools(ctx, endpoint, hdrs, sess)
	if err != nil {
		log.Warn("list tools", "err", err)
		return Outcome{Reachable: true}
	}
	return Outcome{Tools: tools, Reachable: true}
}

// initialize is sent without a session header: some servers reject an
// initialize that names a session they did not create.
func (s StatelessStrategy) initialize(ctx context.Context, endpoint string, hdrs map[string]string, sess session) (session, error) {
	params := initializeParams{
		ProtocolVersion: ProtocolVersion,
		ClientInfo:      s.clientInfo(),
	}
	reply, err := s.Client.Exchange(ctx, endpoint, withSession(hdrs, ""), transport.NewRequest(initializeID, methodInitialize, params))
	if err != nil {
		return sess, err
	}
	sess = sess.adopt(reply.SessionID)
	if err := reply.Err(); err != nil {
		return sess, err
	}
	if !reply.Message.Exists() {
		return sess, ErrEmptyInitializeReply
	}
	return sess, nil
}

func (s StatelessStrategy) acknowledge(ctx context.Context, endpoint string, hdrs map[string]string, sess session) error {
	_, err := s.Client.Exchange(ctx, endpoint, withSession(hdrs, sess.id), transport.NewNotification(methodInitialized, struct{}{}))
	return err
}

func (s StatelessStrategy) listTools(ctx context.Context, endpoint string, hdrs map[string]string, sess session) ([]Tool, error) {
	reply, err := s.Client.Exchange(ctx, endpoint, withSession(hdrs, sess.id), transport.NewRequest(listToolsID, methodListTools, struct{}{}))
	if err != nil {
		return nil, err
	}
	if err := reply.Err(); err != nil {
		return nil, err
	}
	entries := reply.Result().Get("tools")
	if !entries.IsArray() {
		return nil, nil
	}
	var tools []Tool
	entries.ForEach(func(_, t gjson.Result) bool {
		if !t.IsObject() {
			return true
		}
		tool := Tool{
			Name:        t.Get("name").String(),
			Description: t.Get("description").String(),
		}
		if schema := t.Get("inputSchema"); schema.Exists() {
			tool.InputSchema = []byte(schema.Raw)
		}
		tools = append(tools, tool)
		return true
	})
	return tools, nil
}

func (s StatelessStrategy) clientInfo() *mcp.Implementation {
	impl := cmp.Or(s.Implementation, Implementation)
	return &mcp.Implementation{Name: impl.Name, Version: impl.Version}
}

func lookupSession(hdrs map[string]string) string {
	for k, v := range hdrs {
		if strings.EqualFold(k, headers.SessionID) {
			return v
		}
	}
	return ""
}

// withSession copies hdrs with the session header set to id, or removed
// when id is empty.
func withSession(hdrs map[string]string, id string) map[string]string {
	out := maps.Clone(hdrs)
	if out == nil {
		out = make(map[string]string, 1)
	}
	for k := range out {
		if strings.EqualFold(k, headers.SessionID) {
			delete(out, k)
		}
	}
	if id != "" {
		out[headers.SessionID] = id
	}
	return out
}
