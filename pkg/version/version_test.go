package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_FollowsSemverOrDev(t *testing.T) {
	// Given: the version package is imported

	// Then: Version is either "dev" or a semver string injected by ldflags
	if Version == "dev" {
		return
	}
	semver := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	require.True(t, semver.MatchString(Version), "got %s", Version)
}

func TestString_NamesBinary(t *testing.T) {
	// When: calling String()
	str := String()

	// Then: it names the binary and carries every build field
	assert.Contains(t, str, "semidx "+Version)
	assert.Contains(t, str, "commit: ")
	assert.Contains(t, str, "go: "+runtime.Version())
}

func TestCommit_PrefersLdflags(t *testing.T) {
	// Given: Commit injected at link time
	old := Commit
	Commit = "abc1234"
	t.Cleanup(func() { Commit = old })

	// Then: it is reported as-is
	assert.Equal(t, "abc1234", GetInfo().Commit)
	assert.Contains(t, String(), "commit: abc1234")
}

func TestGetInfo(t *testing.T) {
	// When: calling GetInfo()
	info := GetInfo()

	// Then: fields mirror the package variables and runtime
	assert.Equal(t, Short(), info.Version)
	assert.Equal(t, Date, info.Date)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
	assert.NotEmpty(t, info.Commit)
}

func TestGetInfo_JSONFields(t *testing.T) {
	// When: serializing GetInfo() to JSON
	data, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	var parsed map[string]string
	require.NoError(t, json.Unmarshal(data, &parsed))

	// Then: the snake_case keys are present
	for _, key := range []string{"version", "commit", "date", "go_version", "os", "arch"} {
		assert.Contains(t, parsed, key)
	}
}
