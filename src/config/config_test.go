package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestGetDefaultConfig(t *testing.T) {
	config := GetDefaultConfig()

	assert.Equal(t, "clangd", config.Server.Command)
	assert.Equal(t, "cpp", config.Server.Language)
	assert.False(t, config.Remote.Enabled)
	assert.Equal(t, 5*time.Second, config.Indexing.StepTimeout)
	assert.Equal(t, 8, config.Indexing.MaxRemoteDepth)
	assert.True(t, config.Indexing.RespectGitignore)
	assert.Equal(t, 30*time.Second, config.Timeouts.Request)
	assert.Contains(t, config.Servers, "go")
	assert.NoError(t, config.Validate())
}

func TestLoadConfigKeepsDefaultsForOmittedFields(t *testing.T) {
	path := writeConfig(t, `
server:
  command: gopls
  args: [serve]
  language: go
indexing:
  step_timeout: 2s
  extensions: [".go"]
timeouts:
  request: 1m30s
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "gopls", config.Server.Command)
	assert.Equal(t, []string{"serve"}, config.Server.Args)
	assert.Equal(t, 2*time.Second, config.Indexing.StepTimeout)
	assert.Equal(t, []string{".go"}, config.Indexing.Extensions)
	assert.Equal(t, 90*time.Second, config.Timeouts.Request)

	assert.Equal(t, 15*time.Second, config.Timeouts.Initialize)
	assert.Equal(t, 50*time.Millisecond, config.Indexing.PollInterval)
	assert.Equal(t, "info", config.LogLevel)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed yaml", "server: [", "failed to parse config file"},
		{"missing command", "server:\n  command: \"\"\n", "server.command is required"},
		{"remote without host", "remote:\n  enabled: true\n", "remote.host is required"},
		{"bad port", "remote:\n  port: 70000\n", "out of range"},
		{"negative duration", "indexing:\n  step_timeout: -1s\n", "indexing.step_timeout must not be negative"},
		{"extension without dot", "indexing:\n  extensions: [go]\n", "must start with a dot"},
		{"unknown log level", "log_level: loud\n", "unknown log_level"},
		{"server entry without command", "servers:\n  zig:\n    args: []\n", "command is required for language zig"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	config := GetDefaultConfig()
	config.Remote = RemoteConfig{
		Enabled:               true,
		Host:                  "build-box",
		User:                  "dev",
		Port:                  2222,
		ConnectTimeoutSeconds: 4,
		CommandTimeout:        20 * time.Second,
	}

	require.NoError(t, SaveConfig(config, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "step_timeout: 5s")

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.Remote, loaded.Remote)
	assert.Equal(t, config.Indexing, loaded.Indexing)
}

func TestGenerateDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, GenerateDefaultConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig().Server.Command, loaded.Server.Command)
}

func TestTargetAndClientConfig(t *testing.T) {
	config := GetDefaultConfig()
	assert.False(t, config.Target().IsRemote())

	config.Remote.Enabled = true
	config.Remote.Host = "box"
	config.Remote.User = "me"
	config.Remote.ExtraOptions = []string{"-o", "ForwardAgent=no"}

	target := config.Target()
	require.True(t, target.IsRemote())
	assert.Equal(t, "me@box", target.Remote.Destination())

	cc := config.ClientConfig()
	assert.Equal(t, "clangd", cc.Command)
	assert.True(t, cc.Target.IsRemote())

	// the client config must not alias the config's slices
	cc.Args[0] = "changed"
	assert.Equal(t, "--background-index", config.Server.Args[0])
}

func TestUseLanguage(t *testing.T) {
	config := GetDefaultConfig()

	require.NoError(t, config.UseLanguage("go"))
	assert.Equal(t, "gopls", config.Server.Command)
	assert.Equal(t, "go", config.Server.Language)

	err := config.UseLanguage("cobol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no server configured for cobol")
}

func TestGetDefaultConfigPath(t *testing.T) {
	assert.Equal(t, "config.yaml", filepath.Base(GetDefaultConfigPath()))
	assert.Equal(t, ".lsp-indexer", filepath.Base(filepath.Dir(GetDefaultConfigPath())))
}
