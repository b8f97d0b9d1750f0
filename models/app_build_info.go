// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "strings"

const unknownBuildValue = "N/A"

// AppBuildInfo is the version stamp linked into the client binary. The
// version doubles as the application version sent to the server when the
// configuration leaves it empty.
type AppBuildInfo struct {
	version string
	date    string
	commit  string
}

// NewAppBuildInfo stamps a build. Blank values mean the linker did not set them.
func NewAppBuildInfo(version, date, commit string) AppBuildInfo {
	return AppBuildInfo{
		version: strings.TrimSpace(version),
		date:    strings.TrimSpace(date),
		commit:  strings.TrimSpace(commit),
	}
}

// BuildVersion is empty for development builds.
func (a AppBuildInfo) BuildVersion() string {
	return a.version
}

func (a AppBuildInfo) BuildDate() string {
	return a.date
}

func (a AppBuildInfo) BuildCommit() string {
	return a.commit
}

// String renders "go-cache-sync <version> (<commit>, <date>)" with N/A in
// place of missing values.
func (a AppBuildInfo) String() string {
	return "go-cache-sync " + orUnknown(a.version) + " (" + orUnknown(a.commit) + ", " + orUnknown(a.date) + ")"
}

func orUnknown(v string) string {
	if v == "" {
		return unknownBuildValue
	}
	return v
}
