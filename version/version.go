// Package version reports which build of mcpscan is running.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

const Name = "mcpscan"

// Version overrides the module version, e.g.
// -ldflags "-X github.com/cherrydra/mcpscan/version.Version=v1.2.0".
var Version string

// Info is the build metadata embedded in the binary.
type Info struct {
	Version   string
	Revision  string
	Time      string
	Modified  bool
	GoVersion string
}

var current = Read()

// Read collects build metadata for the running binary.
func Read() Info {
	bi, _ := debug.ReadBuildInfo()
	return fromBuildInfo(bi, Version)
}

func fromBuildInfo(bi *debug.BuildInfo, override string) Info {
	info := Info{Version: override}
	if bi == nil {
		if info.Version == "" {
			info.Version = "dev"
		}
		return info
	}
	info.GoVersion = bi.GoVersion
	if info.Version == "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
		case "vcs.time":
			info.Time = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// Short identifies the build in a single token. Development builds carry
// the abbreviated revision.
func (i Info) Short() string {
	if i.Version != "dev" || i.Revision == "" {
		return i.Version
	}
	s := i.Version + "-" + i.Revision[:min(7, len(i.Revision))]
	if i.Modified {
		s += "+dirty"
	}
	return s
}

func (i Info) Long() string {
	var details []string
	if i.Revision != "" {
		details = append(details, "rev "+i.Revision)
	}
	if i.Time != "" {
		details = append(details, "built "+i.Time)
	}
	if i.GoVersion != "" {
		details = append(details, i.GoVersion)
	}
	if len(details) == 0 {
		return fmt.Sprintf("%s %s", Name, i.Short())
	}
	return fmt.Sprintf("%s %s (%s)", Name, i.Short(), strings.Join(details, ", "))
}

// Short is the version advertised as clientInfo.version during initialize.
func Short() string { return current.Short() }

func Long() string { return current.Long() }
