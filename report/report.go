// Package report builds the aggregate document written at the end of a run.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/tidwall/sjson"

	"github.com/cherrydra/mcpscan/config"
	"github.com/cherrydra/mcpscan/probe"
)

const Note = "This list represents configured MCP servers. 'tools' field populated for HTTP servers if reachable."

type Report struct {
	Timestamp string  `json:"timestamp"`
	Count     int     `json:"count"`
	Servers   []Entry `json:"servers"`
	Note      string  `json:"note"`
}

// Entry is a configured server plus what probing it found. It is written as
// the configured entry object with name, _source, status, reason, tools and
// tools_count set on top. Tools and ToolsCount are only present when tools
// were retrieved.
type Entry struct {
	config.Server
	Status     probe.Status `json:"status"`
	Reason     string       `json:"reason,omitempty"`
	Tools      []probe.Tool `json:"tools,omitempty"`
	ToolsCount int          `json:"tools_count,omitempty"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	doc := bytes.Clone(e.Raw)
	if len(doc) == 0 {
		var err error
		if doc, err = json.Marshal(e.Server); err != nil {
			return nil, fmt.Errorf("marshal server %s: %w", e.Name, err)
		}
	}

	type member struct {
		path  string
		value any
	}
	members := []member{{"name", e.Name}}
	if e.Source != "" {
		members = append(members, member{"_source", e.Source})
	}
	members = append(members, member{"status", e.Status})
	if e.Reason != "" {
		members = append(members, member{"reason", e.Reason})
	}
	if len(e.Tools) > 0 {
		members = append(members, member{"tools", e.Tools}, member{"tools_count", e.ToolsCount})
	}

	for _, m := range members {
		raw, err := marshalRaw(m.value)
		if err != nil {
			return nil, fmt.Errorf("marshal %s of server %s: %w", m.path, e.Name, err)
		}
		if doc, err = sjson.SetRawBytes(doc, m.path, raw); err != nil {
			return nil, fmt.Errorf("set %s of server %s: %w", m.path, e.Name, err)
		}
	}
	return doc, nil
}

// marshalRaw encodes v without escaping HTML characters.
func marshalRaw(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func Build(now time.Time, results []probe.Result) Report {
	r := Report{
		Timestamp: now.Format(time.RFC3339),
		Count:     len(results),
		Servers:   make([]Entry, 0, len(results)),
		Note:      Note,
	}
	for _, res := range results {
		e := Entry{
			Server: res.Server,
			Status: res.Status(),
			Reason: res.Reason,
		}
		if len(res.Tools) > 0 {
			e.Tools = res.Tools
			e.ToolsCount = len(res.Tools)
		}
		r.Servers = append(r.Servers, e)
	}
	return r
}

func (r Report) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
