package transport

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tmaxmax/go-sse"
)

const (
	defaultTimeout = 30 * time.Second
	maxReplySize   = 8 << 20
	maxErrorBody   = 256

	sessionIDHeader = "Mcp-Session-Id"
)

var ErrInvalidReply = errors.New("reply is not a json-rpc message")

// Request is a JSON-RPC 2.0 message. A nil ID makes it a notification.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

func NewRequest(id int, method string, params any) Request {
	return Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
}

func NewNotification(method string, params any) Request {
	return Request{JSONRPC: "2.0", Method: method, Params: params}
}

// Reply is what came back from one POST.
type Reply struct {
	Status int
	// SessionID is the Mcp-Session-Id response header, if any.
	SessionID string
	// Message is the decoded JSON-RPC message. It does not exist for
	// empty bodies, which is normal for notifications.
	Message gjson.Result
}

// Err returns the protocol-level error carried by the message, if any.
func (r *Reply) Err() error {
	e := r.Message.Get("error")
	if !e.Exists() {
		return nil
	}
	if !e.IsObject() {
		return &RPCError{Message: e.String()}
	}
	rpcErr := &RPCError{
		Code:    e.Get("code").Int(),
		Message: e.Get("message").String(),
	}
	if d := e.Get("data"); d.Exists() {
		rpcErr.Data = d.Raw
	}
	return rpcErr
}

func (r *Reply) Result() gjson.Result {
	return r.Message.Get("result")
}

// Client posts JSON-RPC messages to a stateless endpoint, one request per
// call. Each call is bounded by Timeout.
type Client struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Exchange posts req with headers and decodes the reply. A non-2xx status
// yields a *StatusError together with the partially filled Reply.
func (c Client) Exchange(ctx context.Context, endpoint string, headers map[string]string, req Request) (*Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, cmp.Or(c.Timeout, defaultTimeout))
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", req.Method, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", req.Method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return nil, fmt.Errorf("read %s reply: %w", req.Method, err)
	}
	reply := &Reply{
		Status:    resp.StatusCode,
		SessionID: resp.Header.Get(sessionIDHeader),
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return reply, &StatusError{Code: resp.StatusCode, Body: truncate(strings.TrimSpace(string(data)), maxErrorBody)}
	}

	msg, err := decodeMessage(resp.Header.Get("Content-Type"), data, req.ID)
	if err != nil {
		return reply, fmt.Errorf("decode %s reply: %w", req.Method, err)
	}
	reply.Message = msg
	return reply, nil
}

// decodeMessage extracts the reply to the request with the given id. An
// event stream may carry server notifications or requests ahead of the
// reply; those are skipped. A nil id accepts the first message.
func decodeMessage(contentType string, data []byte, id any) (gjson.Result, error) {
	if mediaType, _, _ := mime.ParseMediaType(contentType); mediaType == "text/event-stream" {
		return replyFromEvents(data, id)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return gjson.Result{}, nil
	}
	return parseMessage(data)
}

func parseMessage(data []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, ErrInvalidReply
	}
	msg := gjson.ParseBytes(data)
	if !msg.IsObject() {
		return gjson.Result{}, ErrInvalidReply
	}
	return msg, nil
}

// replyFromEvents returns the first event message answering id. Events that
// are not JSON-RPC messages are ignored. A stream without a matching reply
// yields a message that does not exist.
func replyFromEvents(data []byte, id any) (gjson.Result, error) {
	var want string
	if id != nil {
		b, err := json.Marshal(id)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("marshal request id: %w", err)
		}
		want = string(b)
	}
	for ev, err := range sse.Read(bytes.NewReader(data), nil) {
		if err != nil {
			return gjson.Result{}, fmt.Errorf("read event stream: %w", err)
		}
		if ev.Data == "" {
			continue
		}
		msg, err := parseMessage([]byte(ev.Data))
		if err != nil {
			continue
		}
		if want == "" {
			return msg, nil
		}
		if isReply(msg) && msg.Get("id").Raw == want {
			return msg, nil
		}
	}
	return gjson.Result{}, nil
}

// isReply reports whether msg is a response rather than a request or
// notification sent by the server.
func isReply(msg gjson.Result) bool {
	return !msg.Get("method").Exists() && (msg.Get("result").Exists() || msg.Get("error").Exists())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
