package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"lsp-indexer/src/config"
	"lsp-indexer/src/internal/common"
	"lsp-indexer/src/internal/project"
)

// LoadConfigWithFallback loads the explicit path, then the default path,
// then the built-in defaults. A file that fails to load is reported and
// skipped.
func LoadConfigWithFallback(configPath string) *config.Config {
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			common.CLILogger.Warn("Failed to load config from %s, using defaults: %v", configPath, err)
			return config.GetDefaultConfig()
		}
		return cfg
	}

	defaultConfigPath := config.GetDefaultConfigPath()
	if _, err := os.Stat(defaultConfigPath); err != nil {
		return config.GetDefaultConfig()
	}
	cfg, err := config.LoadConfig(defaultConfigPath)
	if err != nil {
		common.CLILogger.Warn("Failed to load default config from %s, using defaults: %v", defaultConfigPath, err)
		return config.GetDefaultConfig()
	}
	return cfg
}

// loadCommandConfig loads the configuration and applies the global flags
func loadCommandConfig() (*config.Config, error) {
	return loadCommandConfigFor(rootDir)
}

// loadCommandConfigFor is loadCommandConfig with the workspace root used
// by --language auto
func loadCommandConfigFor(root string) (*config.Config, error) {
	cfg := LoadConfigWithFallback(configPath)
	if err := applyGlobalOverrides(cfg, root); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyGlobalOverrides(cfg *config.Config, root string) error {
	if remoteHost != "" {
		cfg.Remote.Enabled = true
		if user, host, ok := strings.Cut(remoteHost, "@"); ok {
			cfg.Remote.User = user
			cfg.Remote.Host = host
		} else {
			cfg.Remote.Host = remoteHost
		}
	}
	switch language {
	case "":
	case LanguageAuto:
		if err := detectLanguage(cfg, root); err != nil {
			return err
		}
	default:
		if err := cfg.UseLanguage(language); err != nil {
			return err
		}
	}

	if verbose {
		common.SetGlobalLevel(common.LogDebug)
	} else if cfg.LogLevel != "" {
		common.SetGlobalLevel(common.ParseLogLevel(cfg.LogLevel))
	}
	return nil
}

// detectLanguage picks the servers entry for the dominant language of a
// local root
func detectLanguage(cfg *config.Config, root string) error {
	if cfg.Remote.Enabled {
		return fmt.Errorf("--language %s is only supported for local roots", LanguageAuto)
	}
	if root == "" {
		root = "."
	}
	lang, err := project.DetectPrimaryLanguage(root, func(l string) bool {
		return cfg.Servers[l] != nil
	})
	if err != nil {
		return err
	}
	common.CLILogger.Debug("Detected %s project in %s", lang, root)
	return cfg.UseLanguage(lang)
}

// InitConfig writes the default configuration. An existing file is kept
// unless force is set.
func InitConfig(w io.Writer, path string, force bool) error {
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}
	if err := config.GenerateDefaultConfig(path); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote default configuration to %s\n", path)
	return nil
}

// ShowConfig prints the effective configuration as YAML
func ShowConfig(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = w.Write(data)
	return err
}
