package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date

	t.Cleanup(func() { Version, Commit, Date = origVersion, origCommit, origDate })

	Version, Commit, Date = "dev", unknown, "2026-01-01"

	apply(&debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-02-02T00:00:00Z"},
		},
	})

	assert.Equal(t, "v0.3.0", Version)
	assert.Equal(t, "abc123", Commit)
	assert.Equal(t, "2026-01-01", Date)
}

func TestApply_DevelBuild(t *testing.T) {
	origVersion := Version

	t.Cleanup(func() { Version = origVersion })

	Version = "dev"

	apply(&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})

	assert.Equal(t, "dev", Version)
}
