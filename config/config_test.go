package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMCPServersWithComments(t *testing.T) {
	data := []byte(`{
  // workspace servers
  "mcpServers": {
    "remote": {
      "type": "sse",
      "url": "https://example.com/sse", /* trailing */
      "headers": {"X-Token": "${env:TOKEN}", "X-Retries": 3},
    },
    "local": {"type": "stdio", "command": "npx", "args": ["-y", "server"]},
  },
}`)
	servers, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, servers, 2)

	assert.Equal(t, "remote", servers[0].Name)
	assert.Equal(t, "sse", servers[0].Type)
	assert.Equal(t, "https://example.com/sse", servers[0].URL)
	assert.Equal(t, KV{"X-Token": "${env:TOKEN}", "X-Retries": "3"}, servers[0].Headers)

	assert.Equal(t, "local", servers[1].Name)
	assert.Equal(t, Args{"-y", "server"}, servers[1].Args)
}

func TestParseFallsBackToServersKey(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{"missing mcpServers", `{"servers": {"a": {"type": "http", "url": "http://a"}}}`, []string{"a"}},
		{"empty mcpServers", `{"mcpServers": {}, "servers": {"b": {"type": "http"}}}`, []string{"b"}},
		{"mcpServers preferred", `{"mcpServers": {"c": {}}, "servers": {"d": {}}}`, []string{"c"}},
		{"neither", `{"inputs": []}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			servers, err := Parse([]byte(tt.data))
			require.NoError(t, err)
			var names []string
			for _, s := range servers {
				names = append(names, s.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestParseKeepsDocumentOrderAndSkipsNonObjects(t *testing.T) {
	data := []byte(`{"servers": {"z": {}, "bad": "nope", "a": {}, "m": {"args": "not-a-list"}, "b": {}}}`)
	servers, err := Parse(data)
	require.NoError(t, err)
	var names []string
	for _, s := range servers {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"z", "a", "m", "b"}, names)
	assert.Nil(t, servers[2].Args)
}

func TestParseKeepsEntryAsConfigured(t *testing.T) {
	data := []byte(`{"servers": {
  "numeric-arg": {"type": "stdio", "command": "srv", "args": ["--port", 8080, true]},
  "extras": {
    "type": "http",
    "url": "https://x.example/mcp",
    "cwd": "/srv",
    "envFile": "/srv/.env",
    "dev": {"watch": "src/**/*.ts"},
  },
}}`)
	servers, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, servers, 2)

	assert.Equal(t, "numeric-arg", servers[0].Name)
	assert.Equal(t, Args{"--port", "8080", "true"}, servers[0].Args)
	assert.JSONEq(t, `{"type": "stdio", "command": "srv", "args": ["--port", 8080, true]}`, string(servers[0].Raw))

	assert.Equal(t, "extras", servers[1].Name)
	assert.Equal(t, "https://x.example/mcp", servers[1].URL)
	assert.JSONEq(t, `{
  "type": "http",
  "url": "https://x.example/mcp",
  "cwd": "/srv",
  "envFile": "/srv/.env",
  "dev": {"watch": "src/**/*.ts"}
}`, string(servers[1].Raw))
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse([]byte(`{"servers": {`))
	assert.Error(t, err)

	_, err = Parse([]byte(`[1, 2]`))
	assert.ErrorIs(t, err, ErrNoServerMapping)
}

func TestLoaderFirstSeenWins(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")
	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(first, []byte(`{"servers": {"shared": {"url": "http://first"}}}`), 0o644))
	require.NoError(t, os.WriteFile(broken, []byte(`{{{`), 0o644))
	require.NoError(t, os.WriteFile(second, []byte(`{"mcpServers": {"shared": {"url": "http://second"}, "only": {"type": "stdio"}}}`), 0o644))

	conf := Loader{Paths: []string{
		filepath.Join(dir, "missing.json"),
		first,
		broken,
		second,
	}}.Load()

	require.Len(t, conf.Servers, 2)
	assert.Equal(t, "shared", conf.Servers[0].Name)
	assert.Equal(t, "http://first", conf.Servers[0].URL)
	assert.Equal(t, first, conf.Servers[0].Source)
	assert.Equal(t, "only", conf.Servers[1].Name)
	assert.Equal(t, second, conf.Servers[1].Source)
}

func TestSearchPaths(t *testing.T) {
	env := func(k string) string {
		if k == "APPDATA" {
			return "/appdata"
		}
		return ""
	}

	linux := SearchPaths("linux", "/home/u", "/work", env)
	assert.Equal(t, filepath.Join("/work", ".vscode", "mcp.json"), linux[0])
	assert.Len(t, linux, 6)
	assert.Contains(t, linux, filepath.Join("/home/u", ".config", "Code - OSS", "User", "mcp.json"))

	darwin := SearchPaths("darwin", "/Users/u", "/work", env)
	assert.Len(t, darwin, 5)
	assert.Contains(t, darwin, filepath.Join("/Users/u", "Library", "Application Support", "Code", "User", "mcp.json"))

	windows := SearchPaths("windows", "C:/u", "C:/work", env)
	assert.Contains(t, windows, filepath.Join("/appdata", "Code - Insiders", "User", "mcp.json"))

	noAppData := SearchPaths("windows", "C:/u", "C:/work", func(string) string { return "" })
	assert.Len(t, noAppData, 3)
}
