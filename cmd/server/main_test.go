package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "sweep", "seed"} {
		assert.True(t, names[want], want)
	}
}

func TestSeedThenSweep(t *testing.T) {
	t.Setenv("LEAVE_DATABASE_PATH", filepath.Join(t.TempDir(), "leave.db"))
	t.Setenv("LEAVE_LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"seed", "--scenario", "auto-approval"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), `loaded scenario "auto-approval"`)
	assert.Contains(t, out.String(), "Jane Manager")

	out.Reset()
	rootCmd.SetArgs([]string{"sweep"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "auto-approved 2 request(s)")

	out.Reset()
	rootCmd.SetArgs([]string{"sweep"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "auto-approved 0 request(s)")
}
