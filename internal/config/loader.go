package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".creatorcrawl"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile reads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	return &f, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .creatorcrawl in the current directory
// 3. Look for .creatorcrawl in the user's home directory
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

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}

// Environment variables read by ApplyEnv.
const (
	EnvInfluxURL    = "INFLUX_URL"
	EnvInfluxToken  = "INFLUX_TOKEN"
	EnvInfluxOrg    = "INFLUX_ORG"
	EnvInfluxBucket = "INFLUX_BUCKET"
	EnvRunAsAPI     = "RUN_CRAWLER_AS_API"
	EnvBaseURL      = "CREATORCRAWL_BASE_URL"
)

// ApplyEnv overlays environment variables on cfg.
// getenv is usually os.Getenv; tests pass a map lookup.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvInfluxURL); v != "" {
		cfg.Influx.URL = v
	}
	if v := getenv(EnvInfluxToken); v != "" {
		cfg.Influx.Token = v
	}
	if v := getenv(EnvInfluxOrg); v != "" {
		cfg.Influx.Org = v
	}
	if v := getenv(EnvInfluxBucket); v != "" {
		cfg.Influx.Bucket = v
	}
	if v := getenv(EnvBaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(getenv(EnvRunAsAPI)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RunAsAPI = b
		}
	}
}
