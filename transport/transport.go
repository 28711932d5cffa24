// Package transport holds the HTTP plumbing used to reach remote MCP
// endpoints: transport kind selection, endpoint validation, the event-stream
// client transport and the stateless JSON-RPC exchange.
package transport

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	ErrEmptyURL          = errors.New("empty url")
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	ErrMissingHost       = errors.New("url has no host")
)

// Kind is the transport style declared by a server's "type" field.
type Kind int

const (
	KindOther Kind = iota
	// KindStream is a persistent server-sent-events session ("sse").
	KindStream
	// KindStateless is independent JSON-RPC POSTs ("http").
	KindStateless
)

func ParseKind(s string) Kind {
	switch s {
	case "sse":
		return KindStream
	case "http":
		return KindStateless
	default:
		return KindOther
	}
}

func (k Kind) String() string {
	switch k {
	case KindStream:
		return "sse"
	case KindStateless:
		return "http"
	default:
		return "other"
	}
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, ErrEmptyURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return nil, ErrMissingHost
	}
	return u, nil
}

// Stream returns an SSE client transport whose requests all carry headers.
func Stream(endpoint string, headers map[string]string, base http.RoundTripper) mcp.Transport {
	return &mcp.SSEClientTransport{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Transport: &AddHeadersRoundTripper{Headers: headers, Base: base}},
	}
}
