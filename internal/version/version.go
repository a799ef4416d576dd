// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version provides build-time version information.
package version

import "fmt"

// Values used when ldflags were not set.
const (
	DevVersion = "dev"
	Unknown    = "unknown"
)

// Info contains build-time version information injected via ldflags.
type Info struct {
	Version   string `json:"version"`   // Semantic version from git tags (e.g., "v1.2.3")
	GitCommit string `json:"gitCommit"` // Short git commit hash (e.g., "abc1234")
	BuildTime string `json:"buildTime"` // Build timestamp in RFC3339 format
}

// New builds an Info, filling empty values with placeholders.
func New(version, commit, buildTime string) Info {
	if version == "" {
		version = DevVersion
	}
	if commit == "" {
		commit = Unknown
	}
	if buildTime == "" {
		buildTime = Unknown
	}
	return Info{Version: version, GitCommit: commit, BuildTime: buildTime}
}

// IsDev reports whether this is an untagged development build.
func (i Info) IsDev() bool {
	return i.Version == "" || i.Version == DevVersion
}

// String formats the info for logs and --version output.
func (i Info) String() string {
	return fmt.Sprintf("blockpress %s (commit %s, built %s)", i.Version, i.GitCommit, i.BuildTime)
}
