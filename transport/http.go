package transport

import (
	"cmp"
	"log/slog"
	"net/http"
	"sync"
)

// AddHeadersRoundTripper sets Headers on every outgoing request that does not
// already carry them.
type AddHeadersRoundTripper struct {
	Headers map[string]string
	Base    http.RoundTripper

	parsedHeaders    http.Header
	parseHeadersOnce sync.Once
}

func (r *AddHeadersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	r.parseHeadersOnce.Do(func() {
		slog.Debug("Parsing headers", "count", len(r.Headers))
		r.parsedHeaders = make(http.Header, len(r.Headers))
		for k, v := range r.Headers {
			r.parsedHeaders.Set(k, v)
		}
	})
	for k, v := range r.parsedHeaders {
		if _, ok := req.Header[k]; ok {
			continue
		}
		for _, hv := range v {
			req.Header.Add(k, hv)
		}
	}
	return cmp.Or(r.Base, http.DefaultTransport).RoundTrip(req)
}
