package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8199, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.NATS.URL)
	assert.False(t, cfg.Permissions.Permissive)
	assert.True(t, cfg.Notifications.Enabled)
	assert.Empty(t, cfg.ToolServers)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codedesk.yaml")
	content := `server:
  port: 9001
workspace:
  initialPath: /work/repo
  shell: /bin/zsh
permissions:
  permissive: true
toolServers:
  - name: search
    url: http://localhost:7300/mcp
issues:
  token: tok-123
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host) // default survives partial files
	assert.Equal(t, "/work/repo", cfg.Workspace.InitialPath)
	assert.Equal(t, "/bin/zsh", cfg.Workspace.Shell)
	assert.True(t, cfg.Permissions.Permissive)
	require.Len(t, cfg.ToolServers, 1)
	assert.Equal(t, "search", cfg.ToolServers[0].Name)
	assert.Equal(t, "http://localhost:7300/mcp", cfg.ToolServers[0].URL)
	assert.Equal(t, "tok-123", cfg.Issues.Token)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CODEDESK_SERVER_PORT", "9002")
	t.Setenv("CODEDESK_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9002, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestTimeoutDurations(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, float64(30), cfg.Server.ReadTimeoutDuration().Seconds())
	assert.Equal(t, float64(30), cfg.Server.WriteTimeoutDuration().Seconds())
}
