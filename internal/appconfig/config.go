package appconfig

import (
	"os"
	"path/filepath"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int               `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string            `mapstructure:"state_dir" yaml:"state_dir"`
	Persistence   PersistenceConfig `mapstructure:"persistence" yaml:"persistence"`
	HTTP          HTTPConfig        `mapstructure:"http" yaml:"http"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// PersistenceConfig controls at-rest storage of workspace and run state.
type PersistenceConfig struct {
	Encrypt      bool   `mapstructure:"encrypt" yaml:"encrypt"`
	KeyStorePath string `mapstructure:"key_store_path" yaml:"key_store_path"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	BasePath string `mapstructure:"base_path" yaml:"base_path"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".promptdeck", "state"),
		Persistence: PersistenceConfig{
			Encrypt:      false,
			KeyStorePath: filepath.Join(home, ".promptdeck", "state", "keys.bundle"),
		},
		HTTP: HTTPConfig{
			Addr:     ":27490",
			BasePath: "",
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".promptdeck", "config.yaml"), nil
}
