package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".rdpscan"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .rdpscan configuration file.
// Zero values mean "not set" and leave the corresponding Config field alone.
type File struct {
	// Rate is the maximum number of concurrent probes.
	Rate int `yaml:"rate,omitempty"`

	// Timeout is the per-operation timeout in seconds.
	Timeout int `yaml:"timeout,omitempty"`

	// Proxy is a socks5:// proxy URL.
	Proxy string `yaml:"proxy,omitempty"`

	// Exclude lists CIDR prefixes or addresses that are never probed.
	Exclude []string `yaml:"exclude,omitempty"`

	// DBDir overrides the history database directory.
	DBDir string `yaml:"dbDir,omitempty"`
}

// LoadConfigFile loads settings from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .rdpscan in the current directory
// 3. Look for .rdpscan in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}

	return ""
}

// Apply copies the values set in f onto c. Fields for which isSet returns
// true were given explicitly on the command line and are left unchanged.
// isSet receives the flag name of the field.
func (c *Config) Apply(f *File, isSet func(flag string) bool) {
	if f == nil {
		return
	}
	if isSet == nil {
		isSet = func(string) bool { return false }
	}

	if f.Rate != 0 && !isSet("rate") {
		c.Rate = f.Rate
	}
	if f.Timeout != 0 && !isSet("timeout") {
		c.Timeout = secondsToDuration(f.Timeout)
	}
	if f.Proxy != "" && !isSet("proxy") {
		c.Proxy = f.Proxy
	}
	if len(f.Exclude) > 0 && !isSet("exclude") {
		c.Exclude = append([]string(nil), f.Exclude...)
	}
	if f.DBDir != "" && !isSet("db-dir") {
		c.DBDir = f.DBDir
	}
}

// secondsToDuration converts whole seconds from the config file.
func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
