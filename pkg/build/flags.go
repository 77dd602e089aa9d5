// SPDX-License-Identifier: MIT

// Package build holds the binary's name, version, commit and build time.
// Release builds set them with linker flags:
//
//	go build -ldflags "-X readcheck/pkg/build.buildVersion=v0.3.0 -X readcheck/pkg/build.buildCommit=$(git rev-parse HEAD)"
//
// Values not set that way fall back to the VCS stamp Go embeds, then to
// "unknown".
package build

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String formats Info for --version output.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}

const unknown = "unknown"

// Set by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var (
	readBuildInfo = debug.ReadBuildInfo
	buildInfo     = Info{
		Name:        "readcheck",
		Description: "Real-time read-aloud word verification",
		Time:        unknown,
		Commit:      unknown,
		Version:     unknown,
	}
)

// Initialize resolves the build information. It fails only when a build
// time given by linker flag is not RFC 3339 or a plain date.
func Initialize() error {
	var vcsTime, vcsRevision, modVersion string
	if bi, ok := readBuildInfo(); ok {
		modVersion = bi.Main.Version
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.time":
				vcsTime = s.Value
			case "vcs.revision":
				vcsRevision = s.Value
			}
		}
	}
	if modVersion == "(devel)" {
		modVersion = ""
	}

	if buildTime != "" && !validTime(buildTime) {
		return fmt.Errorf("build time %q is not RFC 3339", buildTime)
	}

	buildInfo.Name = first(buildName, buildInfo.Name)
	buildInfo.Time = first(buildTime, vcsTime, unknown)
	buildInfo.Commit = first(buildCommit, vcsRevision, unknown)
	buildInfo.Version = first(buildVersion, modVersion, unknown)
	return nil
}

func validTime(s string) bool {
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return true
	}
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Get returns the resolved build information.
func Get() Info {
	return buildInfo
}
