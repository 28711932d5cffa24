package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultPaths returns the standard mcp.json locations for the running
// platform: workspace first, then VS Code Server data, then the user
// configuration directories.
func DefaultPaths() []string {
	home, _ := os.UserHomeDir()
	cwd, _ := os.Getwd()
	return SearchPaths(runtime.GOOS, home, cwd, os.Getenv)
}

func SearchPaths(goos, home, cwd string, getenv func(string) string) []string {
	paths := []string{
		filepath.Join(cwd, ".vscode", "mcp.json"),
		filepath.Join(home, ".vscode-server", "data", "User", "mcp.json"),
		filepath.Join(home, ".vscode-server-insiders", "data", "User", "mcp.json"),
	}

	var base string
	var editions []string
	switch goos {
	case "windows":
		base = getenv("APPDATA")
		editions = []string{"Code", "Code - Insiders"}
	case "darwin":
		base = filepath.Join(home, "Library", "Application Support")
		editions = []string{"Code", "Code - Insiders"}
	default:
		base = filepath.Join(home, ".config")
		editions = []string{"Code", "Code - Insiders", "Code - OSS"}
	}
	if base == "" {
		return paths
	}
	for _, e := range editions {
		paths = append(paths, filepath.Join(base, e, "User", "mcp.json"))
	}
	return paths
}
