// Package config loads netctl's YAML configuration.
//
// Everything has a sensible default; the config file is optional. Durations
// are Go duration strings ("500ms", "2s", "30m").
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	yaml "go.yaml.in/yaml/v3"
)

type Config struct {
	Logging LoggingConfig `yaml:"logging"`

	Ping      PingConfig      `yaml:"ping"`
	Bandwidth BandwidthConfig `yaml:"bandwidth"`
	Speed     SpeedConfig     `yaml:"speed"`
	Block     BlockConfig     `yaml:"block"`
	Notify    NotifyConfig    `yaml:"notify"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
	File    string `yaml:"file"` // empty disables the file sink
}

type PingConfig struct {
	Count    int    `yaml:"count"`
	Interval string `yaml:"interval"`
	Timeout  string `yaml:"timeout"`
}

type BandwidthConfig struct {
	Interval string `yaml:"interval"`
	Top      int    `yaml:"top"`
	Alert    string `yaml:"alert"` // e.g. "10MB"; empty disables
}

type SpeedConfig struct {
	Server      string `yaml:"server"`
	Rounds      int    `yaml:"rounds"`
	HistoryPath string `yaml:"history_path"`
	Schedule    string `yaml:"schedule"` // cron spec for daemon mode
}

type BlockConfig struct {
	HostsPath      string `yaml:"hosts_path"`
	BackupPath     string `yaml:"backup_path"`
	StatePath      string `yaml:"state_path"`
	ReconcileEvery string `yaml:"reconcile_every"`
}

type NotifyConfig struct {
	TelegramToken string `yaml:"telegram_token"`
	ChatID        int64  `yaml:"chat_id"`
	RatePerMin    int    `yaml:"rate_per_min"`
}

// DefaultPath is where Load looks when no --config flag is given.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "netctl", "config.yaml")
	}
	return ""
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Ping: PingConfig{
			Count:    10,
			Interval: "200ms",
			Timeout:  "2s",
		},
		Bandwidth: BandwidthConfig{Interval: "1s"},
		Speed: SpeedConfig{
			Server:      "cloudflare",
			HistoryPath: defaultStatePath("speed_history.db"),
		},
		Block: BlockConfig{
			HostsPath:      "/etc/hosts",
			BackupPath:     "/etc/hosts.netctl.bak",
			StatePath:      defaultStatePath("blocks.json"),
			ReconcileEvery: "1m",
		},
	}
}

func defaultStatePath(name string) string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "netctl", name)
	}
	return filepath.Join(os.TempDir(), "netctl", name)
}

// Load reads the file when it exists and overlays it onto the defaults.
// Unknown keys are rejected so typos surface instead of silently doing
// nothing. A missing file is not an error unless the path was explicit.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
