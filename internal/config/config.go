// Package config manages foreman configuration via a viper singleton.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// WorkspaceDirName is the per-project directory holding the database,
// config, schemas, and lock file.
const WorkspaceDirName = ".foreman"

var v *viper.Viper

// Initialize sets up the viper configuration singleton.
// Should be called once at application startup.
//
// Precedence for config.yaml: project .foreman/config.yaml (walking up
// from the working directory) > ~/.config/foreman/config.yaml. Environment
// variables prefixed FM_ override the file; flags override everything.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	if dir := FindWorkspaceDir(); dir != "" {
		configPath := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			configFileSet = true
		}
	}

	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "foreman", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	// FM_DB, FM_LOG_FILE, FM_SCHEMA_FILE, ...
	v.SetEnvPrefix("FM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("db", "")
	v.SetDefault("schema-file", "")
	v.SetDefault("log.file", "")
	v.SetDefault("log.verbose", false)
	v.SetDefault("log.max-size-mb", 10)
	v.SetDefault("log.max-backups", 3)
	v.SetDefault("log.max-age-days", 28)
	v.SetDefault("lock-timeout", "30s")

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// FindWorkspaceDir walks up from the working directory looking for a
// .foreman directory. Returns "" when none exists.
func FindWorkspaceDir() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, WorkspaceDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		if dir == filepath.Dir(dir) {
			return ""
		}
	}
}

// DBPath resolves the database path: explicit config first, then the
// discovered workspace, then a workspace in the current directory.
func DBPath() string {
	if path := GetString("db"); path != "" {
		return path
	}
	if dir := FindWorkspaceDir(); dir != "" {
		return filepath.Join(dir, "foreman.db")
	}
	return filepath.Join(WorkspaceDirName, "foreman.db")
}

// SchemaPath resolves the note-schema file path, or "" for schema-free mode
func SchemaPath() string {
	if path := GetString("schema-file"); path != "" {
		return path
	}
	if dir := FindWorkspaceDir(); dir != "" {
		candidate := filepath.Join(dir, "schemas.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// LogPath resolves the log file path, or "" to log to stderr
func LogPath() string {
	if path := GetString("log.file"); path != "" {
		return path
	}
	if dir := FindWorkspaceDir(); dir != "" {
		return filepath.Join(dir, "foreman.log")
	}
	return ""
}

// GetString returns a string config value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool returns a boolean config value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt returns an integer config value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// Set overrides a config value programmatically (flag binding)
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}
