// Package headers resolves the configured HTTP headers of a server into the
// header set sent on every probe request.
package headers

import (
	"cmp"
	"log/slog"
	"net/textproto"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	Authorization = "Authorization"
	SessionID     = "Mcp-Session-Id"

	userHomePlaceholder = "${userHome}"
)

var envPlaceholder = regexp.MustCompile(`\$\{env:([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Resolver expands ${userHome} and ${env:NAME} placeholders in header values
// and adds the bearer Authorization and Mcp-Session-Id headers.
type Resolver struct {
	// Token is the bearer credential placed in every Authorization header.
	Token string
	// Home replaces ${userHome}. Defaults to os.UserHomeDir.
	Home string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
	// NewSessionID defaults to a random UUID.
	NewSessionID func() string
	Logger       *slog.Logger
}

// Resolve never fails: an unset variable expands to the empty string and is
// reported as a warning. Keys are canonicalised, so a configured session
// header in any case is kept as-is.
func (r Resolver) Resolve(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw)+2)
	for k, v := range raw {
		out[textproto.CanonicalMIMEHeaderKey(k)] = r.Expand(v)
	}
	out[Authorization] = "Bearer " + r.Token
	if _, ok := out[SessionID]; !ok {
		newID := r.NewSessionID
		if newID == nil {
			newID = uuid.NewString
		}
		out[SessionID] = newID()
	}
	return out
}

func (r Resolver) Expand(value string) string {
	if strings.Contains(value, userHomePlaceholder) {
		value = strings.ReplaceAll(value, userHomePlaceholder, r.home())
	}
	lookup := r.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return envPlaceholder.ReplaceAllStringFunc(value, func(m string) string {
		name := envPlaceholder.FindStringSubmatch(m)[1]
		v, ok := lookup(name)
		if !ok {
			cmp.Or(r.Logger, slog.Default()).Warn("environment variable not found", "name", name)
			return ""
		}
		return v
	})
}

func (r Resolver) home() string {
	if r.Home != "" {
		return r.Home
	}
	home, err := os.UserHomeDir()
	if err != nil {
		cmp.Or(r.Logger, slog.Default()).Warn("resolve home directory", "err", err)
		return ""
	}
	return home
}
