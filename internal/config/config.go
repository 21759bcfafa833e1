// Package config provides configuration loading for the Foxground
// ground-station service. Settings come from an optional YAML file and
// are overridden by environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Foxground configuration.
type Config struct {
	TelemetryDBPath string `yaml:"telemetry_db_path"`
	ServerPort      int    `yaml:"server_port"`
	CORSOrigin      string `yaml:"cors_origin"`
	LogLevel        string `yaml:"log_level"`

	ProfilesPath    string `yaml:"profiles_path"`
	ActiveDronePath string `yaml:"active_drone_path"`
	ELRSStatusPath  string `yaml:"elrs_status_path"`
	OTPPath         string `yaml:"otp_path"`

	ToolsDir string `yaml:"tools_dir"`

	MediaMTX MediaMTXConfig `yaml:"mediamtx"`
	Upgrade  UpgradeConfig  `yaml:"upgrade"`

	// WatchdogSchedule is a 5-field cron expression for the media daemon
	// watchdog. Empty disables the watchdog.
	WatchdogSchedule string `yaml:"watchdog_schedule"`
}

// MediaMTXConfig holds paths for the streaming media daemon.
type MediaMTXConfig struct {
	Binary     string `yaml:"binary"`
	ConfigPath string `yaml:"config_path"`
	PathsPath  string `yaml:"paths_path"`
	LogPath    string `yaml:"log_path"`
}

// UpgradeConfig holds the systemd unit and log file used for managed upgrades.
type UpgradeConfig struct {
	Unit    string `yaml:"unit"`
	LogPath string `yaml:"log_path"`
}

// Load reads an optional YAML config file, applies environment overrides
// and defaults, and returns a validated Config. A missing file is not an
// error: the service is fully configurable from the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("TELEMETRY_DB_PATH"); v != "" {
		c.TelemetryDBPath = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.ServerPort = p
		}
	}
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		c.CORSOrigin = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// applyDefaults fills in default values for anything still unset.
func (c *Config) applyDefaults() {
	if c.TelemetryDBPath == "" {
		c.TelemetryDBPath = "/var/lib/foxground/telemetry.db"
	}
	if c.ServerPort == 0 {
		c.ServerPort = 3001
	}
	if c.CORSOrigin == "" {
		c.CORSOrigin = "http://localhost:5173"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ProfilesPath == "" {
		c.ProfilesPath = "/var/lib/foxground/profiles.json"
	}
	if c.ActiveDronePath == "" {
		c.ActiveDronePath = "/run/foxground/active_drone"
	}
	if c.ELRSStatusPath == "" {
		c.ELRSStatusPath = "/run/foxground/elrs_alive"
	}
	if c.OTPPath == "" {
		c.OTPPath = "/run/foxground/otp"
	}
	if c.ToolsDir == "" {
		c.ToolsDir = "/opt/foxground/tools"
	}
	if c.MediaMTX.Binary == "" {
		c.MediaMTX.Binary = "/opt/mediamtx/mediamtx"
	}
	if c.MediaMTX.ConfigPath == "" {
		c.MediaMTX.ConfigPath = "/opt/mediamtx/mediamtx.yml"
	}
	if c.MediaMTX.PathsPath == "" {
		c.MediaMTX.PathsPath = "/opt/mediamtx/paths.yml"
	}
	if c.MediaMTX.LogPath == "" {
		c.MediaMTX.LogPath = "/var/log/foxground/mediamtx.log"
	}
	if c.Upgrade.Unit == "" {
		c.Upgrade.Unit = "foxground-upgrade.service"
	}
	if c.Upgrade.LogPath == "" {
		c.Upgrade.LogPath = "/var/log/foxground/upgrade.log"
	}
	if c.WatchdogSchedule == "" {
		c.WatchdogSchedule = "* * * * *"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Sprintf("server_port %d out of range", c.ServerPort))
	}
	if c.TelemetryDBPath == "" {
		errs = append(errs, "telemetry_db_path is required")
	}
	if c.ProfilesPath == "" {
		errs = append(errs, "profiles_path is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
