package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	oldV, oldSHA, oldTime := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldTime })

	assert.Equal(t, "overlap dev (commit unknown, built unknown)", String())

	Version, GitSHA, BuildTime = "0.3.1", "abc1234", "2025-03-01T12:00:00Z"
	assert.Equal(t, "overlap 0.3.1 (commit abc1234, built 2025-03-01T12:00:00Z)", String())
}
