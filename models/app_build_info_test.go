// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppBuildInfo_String(t *testing.T) {
	tests := []struct {
		name string
		info AppBuildInfo
		want string
	}{
		{name: "stamped", info: NewAppBuildInfo("1.2.0", "2026-10-01", "abc123"), want: "go-cache-sync 1.2.0 (abc123, 2026-10-01)"},
		{name: "development build", info: NewAppBuildInfo("", " ", ""), want: "go-cache-sync N/A (N/A, N/A)"},
		{name: "zero value", info: AppBuildInfo{}, want: "go-cache-sync N/A (N/A, N/A)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.String())
		})
	}
}

func TestNewAppBuildInfo_TrimsValues(t *testing.T) {
	info := NewAppBuildInfo(" 1.2.0\n", "2026-10-01", " abc123")

	assert.Equal(t, "1.2.0", info.BuildVersion())
	assert.Equal(t, "2026-10-01", info.BuildDate())
	assert.Equal(t, "abc123", info.BuildCommit())
}
