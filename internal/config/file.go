package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileOverlay mirrors Config but expresses ReportPeriod in whole seconds,
// since yaml.v3 has no native time.Duration support.
type fileOverlay struct {
	MAVLinkSerial     *string   `yaml:"mavlink_serial"`
	MAVLinkBaud       *int      `yaml:"mavlink_baud"`
	ISBDSerial        *string   `yaml:"isbd_serial"`
	ISBDBaud          *int      `yaml:"isbd_baud"`
	AutoDetectSerials *bool     `yaml:"auto_detect_serials"`
	CandidateSerials  *[]string `yaml:"candidate_serials"`
	ReportPeriodSecs  *int64    `yaml:"report_period_seconds"`
	LogLevel          *string   `yaml:"log_level"`
}

// LoadFile reads a YAML configuration file and overlays it onto a base
// Config (normally config.Default()). A missing file is not an error: the
// base configuration is returned unchanged, matching spec.md's statement
// that configuration is read-only on disk and runtime state is
// memory-only — an absent file just means "use the defaults."
func LoadFile(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return base, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}

	cfg := *base

	if overlay.MAVLinkSerial != nil {
		cfg.MAVLinkSerial = *overlay.MAVLinkSerial
	}
	if overlay.MAVLinkBaud != nil {
		cfg.MAVLinkBaud = BaudRate(*overlay.MAVLinkBaud)
	}
	if overlay.ISBDSerial != nil {
		cfg.ISBDSerial = *overlay.ISBDSerial
	}
	if overlay.ISBDBaud != nil {
		cfg.ISBDBaud = BaudRate(*overlay.ISBDBaud)
	}
	if overlay.AutoDetectSerials != nil {
		cfg.AutoDetectSerials = *overlay.AutoDetectSerials
	}
	if overlay.CandidateSerials != nil {
		cfg.CandidateSerials = *overlay.CandidateSerials
	}
	if overlay.ReportPeriodSecs != nil {
		cfg.ReportPeriod = time.Duration(*overlay.ReportPeriodSecs) * time.Second
	}
	if overlay.LogLevel != nil {
		cfg.LogLevel = *overlay.LogLevel
	}

	return &cfg, nil
}
