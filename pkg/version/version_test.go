package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GitCommit)
	assert.NotEmpty(t, info.BuildDate)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}

func TestGetBuildInfo_ParsesValidDate(t *testing.T) {
	originalBuildDate := BuildDate
	defer func() { BuildDate = originalBuildDate }()

	BuildDate = "2026-01-13T20:00:00Z"
	info := GetBuildInfo()

	expected, _ := time.Parse(time.RFC3339, BuildDate)
	assert.True(t, info.BuildTime.Equal(expected), "BuildTime = %v", info.BuildTime)
}

func TestFillFromModule(t *testing.T) {
	info := BuildInfo{Version: "dev", GitCommit: "unknown", BuildDate: "unknown"}
	fillFromModule(&info, &debug.BuildInfo{
		Main: debug.Module{Version: "v0.4.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-02-01T10:00:00Z"},
		},
	})
	assert.Equal(t, "v0.4.1", info.Version)
	assert.Equal(t, "abc123", info.GitCommit)
	assert.Equal(t, "2026-02-01T10:00:00Z", info.BuildDate)
}

func TestFillFromModuleKeepsInjectedValues(t *testing.T) {
	info := BuildInfo{Version: "v1.0.0", GitCommit: "deadbeef", BuildDate: "2026-01-01T00:00:00Z"}
	fillFromModule(&info, &debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "other"}},
	})
	assert.Equal(t, "v1.0.0", info.Version)
	assert.Equal(t, "deadbeef", info.GitCommit)
}

func TestUserAgent(t *testing.T) {
	assert.True(t, strings.HasPrefix(UserAgent(), "unisrv-cli/"))
}
