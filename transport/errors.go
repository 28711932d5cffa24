package transport

import (
	"fmt"
	"net/http"
)

// StatusError reports a reply with a non-2xx HTTP status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("unexpected status %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// RPCError is the "error" member of a JSON-RPC response.
type RPCError struct {
	Code    int64
	Message string
	Data    string
}

func (e *RPCError) Error() string {
	if e.Data == "" {
		return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, e.Data)
}
