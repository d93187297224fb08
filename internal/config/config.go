// Package config contains everything related to configuration
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by LoadOptions.
const EnvPrefix = "GLM_TRAY"

// SettingsFileName is the name of the settings file inside the config directory.
const SettingsFileName = "settings.json"

// Options holds process-level options. Slot settings live in the settings file.
type Options struct {
	ConfigDir    string
	SettingsPath string
	DatabasePath string
	LogDir       string
	LogLevel     string
	Debug        bool
}

// LoadOptions reads process options from .env files and GLM_TRAY_* environment variables.
func LoadOptions() (*Options, error) {
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	v := newViper()

	configDir := v.GetString("config_dir")
	opts := &Options{
		ConfigDir:    configDir,
		SettingsPath: v.GetString("settings_path"),
		DatabasePath: v.GetString("database_path"),
		LogDir:       v.GetString("log_dir"),
		LogLevel:     v.GetString("log_level"),
		Debug:        v.GetBool("debug"),
	}
	if opts.SettingsPath == "" {
		opts.SettingsPath = filepath.Join(configDir, SettingsFileName)
	}
	if opts.DatabasePath == "" {
		opts.DatabasePath = filepath.Join(configDir, "history.db")
	}

	if err := ensureDir(configDir); err != nil {
		return nil, err
	}
	if err := ensureDir(filepath.Dir(opts.SettingsPath)); err != nil {
		return nil, err
	}
	if err := ensureDir(filepath.Dir(opts.DatabasePath)); err != nil {
		return nil, err
	}

	return opts, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("config_dir", getDefaultConfigDir())
	v.SetDefault("settings_path", "")
	v.SetDefault("database_path", "")
	v.SetDefault("log_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("debug", false)
	return v
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "glm-tray", ".env"),
			filepath.Join(home, ".glm-tray", ".env"),
		)
	}

	return paths
}

// getDefaultConfigDir returns the per-user directory holding settings and history.
func getDefaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "glm-tray")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".glm-tray")
	}
	return "glm-tray"
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
