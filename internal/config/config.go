// Package config loads rulebook settings with viper.
//
// Precedence, highest first: values set with Set (cobra flags), RB_*
// environment variables, the project's .rulebook/config.yaml (found by
// walking up from the working directory), the user's
// ~/.config/rulebook/config.yaml, then built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProjectDir is the per-project directory holding config.yaml and the
// default SQLite database.
const ProjectDir = ".rulebook"

// EnvPrefix prefixes every environment override (RB_STORAGE_BACKEND, ...).
const EnvPrefix = "RB"

var v *viper.Viper

// Initialize sets up the viper configuration singleton.
// Should be called once at application startup.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	// Env: RB_PAGE_SIZE -> page-size, RB_STORAGE_MYSQL_HOST -> storage.mysql.host
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	registerDefaults(v)

	path := findConfigFile()
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return nil
}

// ResetForTesting drops all loaded configuration.
func ResetForTesting() {
	v = nil
}

// findConfigFile returns the project config if one exists above the working
// directory, else the user config, else "".
func findConfigFile() string {
	if path, err := FindConfigYAMLPath(); err == nil {
		return path
	}
	if dir, err := os.UserConfigDir(); err == nil {
		path := filepath.Join(dir, "rulebook", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FindConfigYAMLPath finds config.yaml in the .rulebook directory.
// Walks up from CWD to find .rulebook/config.yaml
func FindConfigYAMLPath() (string, error) {
	dir, err := FindProjectDir()
	if err != nil {
		return "", err
	}
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err != nil {
		return "", fmt.Errorf("no %s/config.yaml found in current directory or parents", ProjectDir)
	}
	return configPath, nil
}

// FindProjectDir walks up from CWD to the nearest .rulebook directory.
func FindProjectDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, ProjectDir)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}
	return "", fmt.Errorf("no %s directory found in current directory or parents", ProjectDir)
}

// ConfigFileUsed returns the loaded config file, or "" when running on
// defaults and environment only.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// GetStringSlice retrieves a string slice configuration value.
// A comma-separated string (as environment variables carry) is split.
func GetStringSlice(key string) []string {
	if v == nil {
		return []string{}
	}
	if s, ok := v.Get(key).(string); ok {
		if s == "" {
			return []string{}
		}
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return v.GetStringSlice(key)
}

// IsSet reports whether key has a value from any source other than defaults.
func IsSet(key string) bool {
	if v == nil {
		return false
	}
	return v.IsSet(key)
}

// Set sets a configuration value
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns all configuration settings as a map
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}
