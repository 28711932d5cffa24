// Package config locates and parses editor MCP configuration files
// (mcp.json) and aggregates the servers they declare.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/tailscale/hujson"
	"github.com/tidwall/gjson"
)

var (
	ErrNoServerMapping = errors.New("config root is not an object")
)

// KV is a string mapping decoded leniently: values of any JSON type are kept
// in their textual form, and a non-object value decodes to nil.
type KV map[string]string

func (kv *KV) UnmarshalJSON(b []byte) error {
	*kv = kvOf(gjson.ParseBytes(b))
	return nil
}

func kvOf(v gjson.Result) KV {
	if !v.IsObject() {
		return nil
	}
	m := make(KV)
	v.ForEach(func(key, value gjson.Result) bool {
		m[key.String()] = value.String()
		return true
	})
	return m
}

// Args is a string list decoded leniently: scalar elements keep their
// textual form and a non-array value decodes to nil.
type Args []string

func (a *Args) UnmarshalJSON(b []byte) error {
	*a = argsOf(gjson.ParseBytes(b))
	return nil
}

func argsOf(v gjson.Result) Args {
	if !v.IsArray() {
		return nil
	}
	var args Args
	v.ForEach(func(_, value gjson.Result) bool {
		args = append(args, value.String())
		return true
	})
	return args
}

type Server struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Command string `json:"command,omitempty"`
	Args    Args   `json:"args,omitempty"`
	Env     KV     `json:"env,omitempty"`
	URL     string `json:"url,omitempty"`
	Headers KV     `json:"headers,omitempty"`
	Source  string `json:"_source,omitempty"`

	// Raw is the entry object exactly as configured, keys the fields above
	// do not model included.
	Raw json.RawMessage `json:"-"`
}

// decodeServer reads the modelled fields of an entry object. Values of an
// unexpected JSON type are taken in their textual form, so an entry is never
// dropped for its field types.
func decodeServer(name string, v gjson.Result) Server {
	return Server{
		Name:    name,
		Type:    v.Get("type").String(),
		Command: v.Get("command").String(),
		Args:    argsOf(v.Get("args")),
		Env:     kvOf(v.Get("env")),
		URL:     v.Get("url").String(),
		Headers: kvOf(v.Get("headers")),
		Raw:     json.RawMessage(v.Raw),
	}
}

type Config struct {
	Servers []Server
}

// Loader reads every file in Paths, in order. A server name seen in an
// earlier file wins over the same name in a later one.
type Loader struct {
	Paths []string
}

func (l Loader) Load() *Config {
	conf := &Config{}
	seen := make(map[string]struct{})
	slog.Info("scanning for mcp configuration", "locations", len(l.Paths))
	for _, p := range l.Paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		slog.Info("reading config", "file", p)
		servers, err := ParseFile(p)
		if err != nil {
			slog.Warn("skip config file", "file", p, "err", err)
			continue
		}
		for _, s := range servers {
			if s.Name == "" {
				continue
			}
			if _, ok := seen[s.Name]; ok {
				slog.Debug("duplicate server ignored", "server", s.Name, "file", p)
				continue
			}
			seen[s.Name] = struct{}{}
			s.Source = p
			conf.Servers = append(conf.Servers, s)
		}
	}
	return conf
}

func ParseFile(file string) ([]Server, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	servers, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return servers, nil
}

// Parse decodes a JSON-with-comments document. Servers come from the
// "mcpServers" object, or from "servers" when the former is missing or
// empty, in document order.
func Parse(data []byte) ([]Server, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("standardize json: %w", err)
	}
	root := gjson.ParseBytes(std)
	if !root.IsObject() {
		return nil, ErrNoServerMapping
	}
	entries := root.Get("mcpServers")
	if !nonEmptyObject(entries) {
		entries = root.Get("servers")
	}
	if !entries.IsObject() {
		return nil, nil
	}

	var servers []Server
	entries.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if !value.IsObject() {
			slog.Warn("skip server entry: not an object", "server", name)
			return true
		}
		servers = append(servers, decodeServer(name, value))
		return true
	})
	return servers, nil
}

func nonEmptyObject(v gjson.Result) bool {
	if !v.IsObject() {
		return false
	}
	empty := true
	v.ForEach(func(_, _ gjson.Result) bool {
		empty = false
		return false
	})
	return !empty
}
