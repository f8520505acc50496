package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chinmay1088/meridian/config"
)

const testPhrase = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func newTestCommand(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvConfigPath, "")

	var logs bytes.Buffer
	prev := logOutput
	logOutput = &logs
	t.Cleanup(func() { logOutput = prev })

	c := &cobra.Command{Use: "demo"}
	c.Flags().BoolP("verbose", "v", false, "")
	c.Flags().String("config", "", "")
	c.Flags().BoolP("yes", "y", false, "")
	c.SetContext(context.Background())
	return c, &logs
}

func TestActionLogsFailureOnce(t *testing.T) {
	c, logs := newTestCommand(t)
	boom := errors.New("boom")

	run := action(func(context.Context, *app, *cobra.Command, []string) error {
		return boom
	})
	err := run(c, nil)

	assert.ErrorIs(t, err, boom)
	assert.True(t, Reported(err))
	assert.Contains(t, logs.String(), "command failed")
	assert.Contains(t, logs.String(), "boom")
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("command failed")))
}

func TestActionSuccessIsQuiet(t *testing.T) {
	c, logs := newTestCommand(t)

	run := action(func(context.Context, *app, *cobra.Command, []string) error {
		return nil
	})
	require.NoError(t, run(c, nil))
	assert.Empty(t, logs.String())
}

func TestReported(t *testing.T) {
	assert.False(t, Reported(errors.New("plain")))
	assert.False(t, Reported(nil))
}

func TestAccountRemove(t *testing.T) {
	c, _ := newTestCommand(t)
	require.NoError(t, c.Flags().Set("yes", "true"))

	a, err := newApp(c)
	require.NoError(t, err)
	imported, err := a.accounts.Import(testPhrase, "")
	require.NoError(t, err)

	require.NoError(t, runAccountRemove(context.Background(), a, c, []string{imported.AccountID}))
	assert.False(t, a.accounts.Store().HasAccount(imported.AccountID))

	err = runAccountRemove(context.Background(), a, c, []string{imported.AccountID})
	assert.Error(t, err)
}
