package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Transport kinds.
const (
	TransportSocket = "socket"
	TransportUSB    = "usb"
)

// Config holds runtime parameters for the agent.
// Zero values mean "unspecified" and are replaced by Default() values in Merge.
type Config struct {
	Transport   string `json:"transport" yaml:"transport" toml:"transport"`
	Addr        string `json:"addr" yaml:"addr" toml:"addr"`
	USBDevice   string `json:"usb_device" yaml:"usb_device" toml:"usb_device"`
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr" toml:"metrics_addr"`
	Platform    string `json:"platform" yaml:"platform" toml:"platform"`

	LogFile      string `json:"log_file" yaml:"log_file" toml:"log_file"`
	LogMaxSizeMB int    `json:"log_max_size_mb" yaml:"log_max_size_mb" toml:"log_max_size_mb"`
	LogBackups   int    `json:"log_backups" yaml:"log_backups" toml:"log_backups"`
	LogLevel     string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogConsole   bool   `json:"log_console" yaml:"log_console" toml:"log_console"`
	EnableLogs   bool   `json:"enable_logs" yaml:"enable_logs" toml:"enable_logs"`

	QueueCapacity   int   `json:"queue_capacity" yaml:"queue_capacity" toml:"queue_capacity"`
	MaxLineBytes    int   `json:"max_line_bytes" yaml:"max_line_bytes" toml:"max_line_bytes"`
	BackwardsCompat *bool `json:"backwards_compat" yaml:"backwards_compat" toml:"backwards_compat"`

	ButtonClickSleepMS int `json:"button_click_sleep_ms" yaml:"button_click_sleep_ms" toml:"button_click_sleep_ms"`
	KeySleepMS         int `json:"key_sleep_ms" yaml:"key_sleep_ms" toml:"key_sleep_ms"`
	PollRateMS         int `json:"poll_rate_ms" yaml:"poll_rate_ms" toml:"poll_rate_ms"`
	FingerDiameter     int `json:"finger_diameter" yaml:"finger_diameter" toml:"finger_diameter"`
	EarlyWakeUS        int `json:"early_wake_us" yaml:"early_wake_us" toml:"early_wake_us"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Default returns the built-in configuration.
func Default() Config {
	compat := true
	return Config{
		Transport:          TransportSocket,
		Addr:               ":6000",
		USBDevice:          "/dev/ttyGS0",
		Platform:           "sim",
		LogMaxSizeMB:       8,
		LogBackups:         1,
		LogLevel:           "debug",
		QueueCapacity:      128,
		MaxLineBytes:       1 << 20,
		BackwardsCompat:    &compat,
		ButtonClickSleepMS: 50,
		KeySleepMS:         25,
		PollRateMS:         17,
		FingerDiameter:     50,
		EarlyWakeUS:        1000,
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Merge fills every unspecified field of c from def.
func (c Config) Merge(def Config) Config {
	if c.Transport == "" {
		c.Transport = def.Transport
	}
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.USBDevice == "" {
		c.USBDevice = def.USBDevice
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = def.MetricsAddr
	}
	if c.Platform == "" {
		c.Platform = def.Platform
	}
	if c.LogFile == "" {
		c.LogFile = def.LogFile
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = def.LogMaxSizeMB
	}
	if c.LogBackups == 0 {
		c.LogBackups = def.LogBackups
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	c.LogConsole = c.LogConsole || def.LogConsole
	c.EnableLogs = c.EnableLogs || def.EnableLogs
	if c.QueueCapacity == 0 {
		c.QueueCapacity = def.QueueCapacity
	}
	if c.MaxLineBytes == 0 {
		c.MaxLineBytes = def.MaxLineBytes
	}
	if c.BackwardsCompat == nil {
		c.BackwardsCompat = def.BackwardsCompat
	}
	if c.ButtonClickSleepMS == 0 {
		c.ButtonClickSleepMS = def.ButtonClickSleepMS
	}
	if c.KeySleepMS == 0 {
		c.KeySleepMS = def.KeySleepMS
	}
	if c.PollRateMS == 0 {
		c.PollRateMS = def.PollRateMS
	}
	if c.FingerDiameter == 0 {
		c.FingerDiameter = def.FingerDiameter
	}
	if c.EarlyWakeUS == 0 {
		c.EarlyWakeUS = def.EarlyWakeUS
	}
	c.CORSEnabled = c.CORSEnabled || def.CORSEnabled
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = def.CORSOrigins
	}
	return c
}

// Compat reports the effective legacy-compatibility setting.
func (c Config) Compat() bool {
	return c.BackwardsCompat == nil || *c.BackwardsCompat
}

// ApplyEnv overrides fields from BOTD_* environment variables.
func (c Config) ApplyEnv(getenv func(string) string) Config {
	if getenv == nil {
		getenv = os.Getenv
	}
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	str("BOTD_TRANSPORT", &c.Transport)
	str("BOTD_ADDR", &c.Addr)
	str("BOTD_USB_DEVICE", &c.USBDevice)
	str("BOTD_METRICS_ADDR", &c.MetricsAddr)
	str("BOTD_PLATFORM", &c.Platform)
	str("BOTD_LOG_FILE", &c.LogFile)
	str("BOTD_LOG_LEVEL", &c.LogLevel)
	flag("BOTD_ENABLE_LOGS", &c.EnableLogs)
	num("BOTD_QUEUE_CAPACITY", &c.QueueCapacity)
	if v := getenv("BOTD_BACKWARDS_COMPAT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.BackwardsCompat = &b
		}
	}
	return c
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportSocket:
		if c.Addr == "" {
			return fmt.Errorf("addr is required for the socket transport")
		}
	case TransportUSB:
		if c.USBDevice == "" {
			return fmt.Errorf("usb_device is required for the usb transport")
		}
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", c.Transport, TransportSocket, TransportUSB)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue_capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.MaxLineBytes < 4096 {
		return fmt.Errorf("max_line_bytes must be at least 4096, got %d", c.MaxLineBytes)
	}
	for name, v := range map[string]int{
		"button_click_sleep_ms": c.ButtonClickSleepMS,
		"key_sleep_ms":          c.KeySleepMS,
		"poll_rate_ms":          c.PollRateMS,
		"finger_diameter":       c.FingerDiameter,
		"early_wake_us":         c.EarlyWakeUS,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, v)
		}
	}
	return nil
}
