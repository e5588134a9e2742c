package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lsp-indexer/src/internal/common"
	"lsp-indexer/src/internal/constants"
	"lsp-indexer/src/internal/types"
)

// Config is the lsp-indexer configuration file
type Config struct {
	LogLevel string                   `yaml:"log_level,omitempty"`
	Server   ServerConfig             `yaml:"server"`
	Servers  map[string]*ServerConfig `yaml:"servers,omitempty"`
	Remote   RemoteConfig             `yaml:"remote"`
	Indexing IndexingConfig           `yaml:"indexing"`
	Timeouts TimeoutConfig            `yaml:"timeouts"`
}

// ServerConfig contains configuration for a single LSP server
type ServerConfig struct {
	Command               string      `yaml:"command"`
	Args                  []string    `yaml:"args"`
	Language              string      `yaml:"language,omitempty"`
	WorkingDir            string      `yaml:"working_dir,omitempty"`
	InitializationOptions interface{} `yaml:"initialization_options,omitempty"`
}

// RemoteConfig describes the ssh target used when enabled
type RemoteConfig struct {
	Enabled               bool          `yaml:"enabled"`
	Host                  string        `yaml:"host,omitempty"`
	Port                  int           `yaml:"port,omitempty"`
	User                  string        `yaml:"user,omitempty"`
	IdentityFile          string        `yaml:"identity_file,omitempty"`
	ExtraOptions          []string      `yaml:"extra_options,omitempty"`
	ConnectTimeoutSeconds int           `yaml:"connect_timeout_seconds"`
	CommandTimeout        time.Duration `yaml:"command_timeout"`
}

// IndexingConfig tunes the workspace indexer
type IndexingConfig struct {
	StepTimeout      time.Duration `yaml:"step_timeout"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	Extensions       []string      `yaml:"extensions,omitempty"`
	SkipDirs         []string      `yaml:"skip_dirs,omitempty"`
	MaxRemoteDepth   int           `yaml:"max_remote_depth"`
	RespectGitignore bool          `yaml:"respect_gitignore"`
	WatchDebounce    time.Duration `yaml:"watch_debounce"`
}

// TimeoutConfig bounds session lifecycle and query calls
type TimeoutConfig struct {
	Initialize time.Duration `yaml:"initialize"`
	Request    time.Duration `yaml:"request"`
}

// LoadConfig loads configuration from a YAML file. Fields the file omits
// keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateDefaultConfig writes the default configuration to path
func GenerateDefaultConfig(path string) error {
	return SaveConfig(GetDefaultConfig(), path)
}

// Validate checks the configuration for values the client cannot run with
func (c *Config) Validate() error {
	if c.Server.Command == "" {
		return fmt.Errorf("server.command is required")
	}
	for language, server := range c.Servers {
		if server == nil || server.Command == "" {
			return fmt.Errorf("command is required for language %s", language)
		}
	}

	if c.Remote.Enabled && strings.TrimSpace(c.Remote.Host) == "" {
		return fmt.Errorf("remote.host is required when remote is enabled")
	}
	if c.Remote.Port < 0 || c.Remote.Port > 65535 {
		return fmt.Errorf("remote.port %d out of range", c.Remote.Port)
	}
	if c.Remote.ConnectTimeoutSeconds < 0 {
		return fmt.Errorf("remote.connect_timeout_seconds must not be negative")
	}

	durations := map[string]time.Duration{
		"remote.command_timeout":  c.Remote.CommandTimeout,
		"indexing.step_timeout":   c.Indexing.StepTimeout,
		"indexing.poll_interval":  c.Indexing.PollInterval,
		"indexing.watch_debounce": c.Indexing.WatchDebounce,
		"timeouts.initialize":     c.Timeouts.Initialize,
		"timeouts.request":        c.Timeouts.Request,
	}
	names := make([]string, 0, len(durations))
	for name := range durations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if durations[name] < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	if c.Indexing.MaxRemoteDepth < 0 {
		return fmt.Errorf("indexing.max_remote_depth must not be negative")
	}
	for _, ext := range c.Indexing.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("indexing extension %q must start with a dot", ext)
		}
	}

	if c.LogLevel != "" {
		if _, ok := validLogLevels[strings.ToLower(c.LogLevel)]; !ok {
			return fmt.Errorf("unknown log_level %q", c.LogLevel)
		}
	}
	return nil
}

var validLogLevels = map[string]struct{}{
	"debug": {}, "info": {}, "warn": {}, "warning": {}, "error": {}, "fatal": {},
}

// Target returns the execution target described by the remote section
func (c *Config) Target() types.ExecutionTarget {
	if !c.Remote.Enabled {
		return types.LocalTarget()
	}
	return types.NewRemoteTarget(types.RemoteTarget{
		Enabled:               true,
		Host:                  c.Remote.Host,
		Port:                  c.Remote.Port,
		User:                  c.Remote.User,
		IdentityFile:          c.Remote.IdentityFile,
		ExtraOptions:          append([]string(nil), c.Remote.ExtraOptions...),
		ConnectTimeoutSeconds: c.Remote.ConnectTimeoutSeconds,
	})
}

// ClientConfig returns the launch description of the configured server
func (c *Config) ClientConfig() types.ClientConfig {
	return types.ClientConfig{
		Command:               c.Server.Command,
		Args:                  append([]string(nil), c.Server.Args...),
		WorkingDir:            c.Server.WorkingDir,
		Language:              c.Server.Language,
		Target:                c.Target(),
		InitializationOptions: c.Server.InitializationOptions,
	}
}

// UseLanguage makes the servers entry for language the active server
func (c *Config) UseLanguage(language string) error {
	server, ok := c.Servers[language]
	if !ok || server == nil {
		known := make([]string, 0, len(c.Servers))
		for l := range c.Servers {
			known = append(known, l)
		}
		sort.Strings(known)
		return fmt.Errorf("no server configured for %s (configured: %s)", language, strings.Join(known, ", "))
	}
	c.Server = *server
	if c.Server.Language == "" {
		c.Server.Language = language
	}
	return nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	return filepath.Join(common.GetAppDir(), "config.yaml")
}

// GetDefaultConfig returns the built-in configuration: clangd as the active
// server and a table of common servers per language.
func GetDefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Command:  "clangd",
			Args:     []string{"--background-index"},
			Language: "cpp",
		},
		Servers: map[string]*ServerConfig{
			"cpp": {
				Command: "clangd",
				Args:    []string{"--background-index"},
			},
			"go": {
				Command: "gopls",
				Args:    []string{"serve"},
			},
			"python": {
				Command: "pylsp",
				Args:    []string{},
			},
			"javascript": {
				Command: "typescript-language-server",
				Args:    []string{"--stdio"},
			},
			"typescript": {
				Command: "typescript-language-server",
				Args:    []string{"--stdio"},
			},
			"java": {
				Command: "jdtls",
				Args:    []string{},
			},
			"rust": {
				Command: "rust-analyzer",
				Args:    []string{},
			},
		},
		Remote: RemoteConfig{
			ConnectTimeoutSeconds: types.DefaultConnectTimeoutSeconds,
			CommandTimeout:        constants.DefaultRemoteCommandTimeout,
		},
		Indexing: IndexingConfig{
			StepTimeout:      constants.DefaultStepTimeout,
			PollInterval:     constants.DefaultPollInterval,
			MaxRemoteDepth:   constants.DefaultMaxRemoteDepth,
			RespectGitignore: true,
			WatchDebounce:    constants.FileWatchDebounceDelay,
		},
		Timeouts: TimeoutConfig{
			Initialize: constants.DefaultInitializeTimeout,
			Request:    constants.DefaultRequestTimeout,
		},
	}
}
