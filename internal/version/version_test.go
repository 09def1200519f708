package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringCarriesBuildIdentity(t *testing.T) {
	got := String()
	require.Contains(t, got, "anbu ")
	require.Contains(t, got, Version)
	require.Contains(t, got, "go=")
}

func TestCommitPrefersLdflagsValue(t *testing.T) {
	oldCommit := Commit
	t.Cleanup(func() { Commit = oldCommit })

	Commit = "abc1234"
	require.Equal(t, "abc1234", commit())
}
