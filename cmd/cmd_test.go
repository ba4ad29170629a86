package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs a fresh command tree end to end, including config
// loading in PersistentPreRunE.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// executeCommandNoPreRun disables config loading, for tests that only
// exercise argument and flag validation.
func executeCommandNoPreRun(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	root.PersistentPreRunE = nil
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// createTempConfig writes a throwaway config file and returns its path.
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stagehand.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// memoryCacheConfig keeps cache commands off the filesystem and the logger
// quiet.
const memoryCacheConfig = `
logger:
  level: error
  colors: false
cache:
  enabled: true
  backend: memory
`

func TestObserveCmd_RequiresURL(t *testing.T) {
	_, err := executeCommandNoPreRun(t, "observe", "the login button")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "url" not set`)
}

func TestActCmd_RequiresInstruction(t *testing.T) {
	_, err := executeCommandNoPreRun(t, "act", "--url", "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestExtractCmd_RequiresURL(t *testing.T) {
	_, err := executeCommandNoPreRun(t, "extract", "the cart total")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "url" not set`)
}

func TestServeCmd_RejectsArgs(t *testing.T) {
	_, err := executeCommandNoPreRun(t, "serve", "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestInvalidConfigFileFailsEarly(t *testing.T) {
	configFile := createTempConfig(t, `
cache:
  backend: etcd
`)
	_, err := executeCommand(t, "--config", configFile, "cache", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load configuration")
	assert.Contains(t, err.Error(), "unknown cache.backend")
}

func TestCacheStats(t *testing.T) {
	t.Run("ReportsEmptyNamespaces", func(t *testing.T) {
		configFile := createTempConfig(t, memoryCacheConfig)

		out, err := executeCommand(t, "--config", configFile, "cache", "stats")

		require.NoError(t, err)
		assert.Contains(t, out, "observations: 0")
		assert.Contains(t, out, "actions: 0")
	})

	t.Run("ReportsDisabledCache", func(t *testing.T) {
		configFile := createTempConfig(t, `
logger:
  level: error
cache:
  enabled: false
`)
		out, err := executeCommand(t, "--config", configFile, "cache", "stats")

		require.NoError(t, err)
		assert.Contains(t, out, "cache is disabled")
	})
}

func TestCacheClear(t *testing.T) {
	t.Run("ClearsOneNamespace", func(t *testing.T) {
		configFile := createTempConfig(t, memoryCacheConfig)

		out, err := executeCommand(t, "--config", configFile, "cache", "clear", "actions")

		require.NoError(t, err)
		assert.Contains(t, out, "cleared actions")
		assert.NotContains(t, out, "cleared observations")
	})

	t.Run("ClearsBothNamespacesByDefault", func(t *testing.T) {
		configFile := createTempConfig(t, memoryCacheConfig)

		out, err := executeCommand(t, "--config", configFile, "cache", "clear")

		require.NoError(t, err)
		assert.Contains(t, out, "cleared observations")
		assert.Contains(t, out, "cleared actions")
	})

	t.Run("RejectsUnknownNamespace", func(t *testing.T) {
		configFile := createTempConfig(t, memoryCacheConfig)

		_, err := executeCommand(t, "--config", configFile, "cache", "clear", "sessions")

		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown namespace "sessions"`)
	})
}
