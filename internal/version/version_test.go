package version

import (
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetUsesLinkerValues(t *testing.T) {
	oldVersion, oldCommit, oldTime := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldVersion, oldCommit, oldTime })

	Version = "v1.2.3"
	GitCommit = "0123456789abcdef"
	BuildTime = "2024-05-01T10:00:00Z"

	info := Get()

	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, "0123456789abcdef", info.GitCommit)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), info.BuildTime.UTC())
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.True(t, info.IsRelease())
	assert.Equal(t, "v1.2.3 (0123456)", info.Short())
}

func TestString(t *testing.T) {
	info := BuildInfo{
		Version:   "dev",
		GitCommit: "unknown",
		GoVersion: "go1.24.0",
		Platform:  "linux/amd64",
	}

	s := info.String()

	assert.True(t, strings.HasPrefix(s, "Version: dev\n"))
	assert.NotContains(t, s, "Commit:")
	assert.NotContains(t, s, "Built:")
	assert.Contains(t, s, "Platform: linux/amd64")
	assert.False(t, info.IsRelease())
	assert.Equal(t, "dev", info.Short())
}

func TestDirtyCommit(t *testing.T) {
	info := BuildInfo{Version: "dev-abcdef1", GitCommit: "abcdef1234", Dirty: true}

	assert.Contains(t, info.String(), "Commit: abcdef1234 (dirty)")
	assert.Equal(t, "dev-abcdef1", info.Short())
	assert.False(t, info.IsRelease())
}
