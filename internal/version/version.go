// Package version reports which build of the jukebox is running.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Overridable with -ldflags "-X github.com/edumarques81/stellar-jukebox/internal/version.Version=1.2.3".
var (
	Name      = "Stellar Jukebox"
	Version   = "0.1.0"
	BuildTime = ""
	GitCommit = ""
)

// Info describes the running build.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuiltAt   string `json:"builtAt,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"goVersion"`
}

// GetInfo returns the build description. Commit and build time fall back to
// the VCS stamp the go tool embeds when ldflags did not set them.
func GetInfo() Info {
	info := Info{
		Name:      Name,
		Version:   Version,
		Commit:    GitCommit,
		BuiltAt:   BuildTime,
		GoVersion: runtime.Version(),
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuiltAt == "" {
				info.BuiltAt = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// ShortCommit is the first seven characters of the commit hash.
func (i Info) ShortCommit() string {
	return i.Commit[:min(7, len(i.Commit))]
}

// String renders the banner line, e.g. "Stellar Jukebox v1.2.3 (0123456+dirty)".
func (i Info) String() string {
	s := fmt.Sprintf("%s v%s", i.Name, i.Version)
	if c := i.ShortCommit(); c != "" {
		if i.Modified {
			c += "+dirty"
		}
		s += " (" + c + ")"
	}
	if i.BuiltAt != "" {
		s += " built " + i.BuiltAt
	}
	return s
}

// UserAgent is sent with every outbound HTTP request.
func UserAgent() string {
	return fmt.Sprintf("StellarJukebox/%s (+https://github.com/edumarques81/stellar-jukebox)", Version)
}
