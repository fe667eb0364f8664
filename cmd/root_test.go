package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"sync", "collect", "export", "board", "runs"} {
		assert.True(t, names[want], "command %q not registered", want)
	}
}

func TestExportSubcommands(t *testing.T) {
	sub := make(map[string]bool)
	for _, c := range exportCmd.Commands() {
		sub[c.Name()] = true
	}
	assert.True(t, sub["contacts"])
	assert.True(t, sub["messages"])
}

func TestMissingCredentialFailsFast(t *testing.T) {
	t.Setenv("OPSYNC_MONDAY_API_KEY", "")

	rootCmd.SetArgs([]string{"board"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPSYNC_MONDAY_API_KEY")
}
