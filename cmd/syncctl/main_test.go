package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	var names []string
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Subset(t, names, []string{"sweep-outbox", "reap-queue", "resync"})
}

func TestResync_Args(t *testing.T) {
	t.Run("requires an order id", func(t *testing.T) {
		require.Error(t, resyncCmd.Args(resyncCmd, nil))
	})

	t.Run("rejects a malformed id before loading config", func(t *testing.T) {
		err := resyncCmd.RunE(resyncCmd, []string{"not-a-uuid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid order id")
	})
}

func TestPrintJSON(t *testing.T) {
	var out bytes.Buffer
	sweepOutboxCmd.SetOut(&out)
	t.Cleanup(func() { sweepOutboxCmd.SetOut(nil) })

	require.NoError(t, printJSON(sweepOutboxCmd, map[string]int{"sent": 2}))
	assert.JSONEq(t, `{"sent":2}`, out.String())
}
