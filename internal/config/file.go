package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/muurk/softap/internal/netcfg"
)

// DefaultPath is where the daemon looks for its configuration file.
const DefaultPath = "/etc/softap/config.yaml"

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// Load reads the configuration file at path and overlays it on Default().
// A missing file yields the defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported config version: %d (expected 1)", cfg.Version)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Marshal renders the configuration as YAML with a header comment.
func (c *Config) Marshal(path string) ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# softap daemon configuration
#
# The access point passphrase below is the setup network key. Station
# credentials received over HTTP are never written to this file.
#
# Location: ` + path + `

`)
	return append(header, data...), nil
}

// Save writes the configuration to path atomically with 0600 permissions.
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := c.Validate(); err != nil {
		return err
	}

	data, err := c.Marshal(path)
	if err != nil {
		return err
	}

	if err := netcfg.WriteFileAtomic(path, data, 0600); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}
