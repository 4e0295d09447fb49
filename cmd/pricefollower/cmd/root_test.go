package cmd

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/pchome-price-follower/internal/config"
	"github.com/donaldgifford/pchome-price-follower/internal/store"
)

// The root command holds flag state in package variables, so these tests
// cannot run in parallel with each other.

func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		dbPath = ""
		outputFormat = "table"
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
}

func TestExecute_RejectsUnknownOutputFormat(t *testing.T) {
	resetFlags(t)

	rootCmd.SetArgs([]string{"version", "--output", "jsno"})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jsno")
}

func TestExecute_AcceptsJSONOutputFormat(t *testing.T) {
	resetFlags(t)

	rootCmd.SetArgs([]string{"version", "--output", "json"})

	require.NoError(t, rootCmd.Execute())
}

func TestOpenExistingStore_MissingPath(t *testing.T) {
	resetFlags(t)
	dbPath = filepath.Join(t.TempDir(), "missing.db")

	_, err := openExistingStore(&config.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestOpenExistingStore_ExistingPath(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "prices.db")

	// Create the database file the way a prior run would.
	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())

	dbPath = path
	s2, err := openExistingStore(&config.Config{})
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}
