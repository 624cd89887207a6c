// Package config holds the radioroom configuration record and its
// loading/validation logic.
package config

import (
	"fmt"
	"time"
)

// BaudRate is one of the serial speeds the spec allows for either link.
type BaudRate int

// Supported baud rates (spec.md §6).
const (
	Baud9600   BaudRate = 9600
	Baud19200  BaudRate = 19200
	Baud38400  BaudRate = 38400
	Baud57600  BaudRate = 57600
	Baud115200 BaudRate = 115200
)

func (b BaudRate) valid() bool {
	switch b {
	case Baud9600, Baud19200, Baud38400, Baud57600, Baud115200:
		return true
	default:
		return false
	}
}

// Config is the process-wide configuration record (spec.md §6). It is
// immutable after init with one exception: ReportPeriod, which the ISBD
// dispatcher may update in response to a PARAM_SET from the ground. That
// mutation only ever happens on the main goroutine, so no lock guards it.
type Config struct {
	MAVLinkSerial string   `yaml:"mavlink_serial"`
	MAVLinkBaud   BaudRate `yaml:"mavlink_baud"`

	ISBDSerial string   `yaml:"isbd_serial"`
	ISBDBaud   BaudRate `yaml:"isbd_baud"`

	AutoDetectSerials bool     `yaml:"auto_detect_serials"`
	CandidateSerials  []string `yaml:"candidate_serials"`

	ReportPeriod time.Duration `yaml:"report_period"`

	LogLevel string `yaml:"log_level"`
}

// Default returns a Config with the defaults named in spec.md §6.
func Default() *Config {
	return &Config{
		MAVLinkSerial: "/dev/ttyUSB0",
		MAVLinkBaud:   Baud57600,
		ISBDSerial:    "/dev/ttyUSB1",
		ISBDBaud:      Baud19200,
		CandidateSerials: []string{
			"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyUSB2",
			"/dev/ttyS0", "/dev/ttyAMA0",
		},
		ReportPeriod: 300 * time.Second,
		LogLevel:     "info",
	}
}

// Validate checks the configuration for the errors spec.md §7 calls fatal.
func (c *Config) Validate() error {
	if c.MAVLinkSerial == "" {
		return fmt.Errorf("mavlink serial device must not be empty")
	}
	if c.ISBDSerial == "" {
		return fmt.Errorf("isbd serial device must not be empty")
	}
	if !c.MAVLinkBaud.valid() {
		return fmt.Errorf("invalid mavlink baud rate: %d", c.MAVLinkBaud)
	}
	if !c.ISBDBaud.valid() {
		return fmt.Errorf("invalid isbd baud rate: %d", c.ISBDBaud)
	}
	if c.ReportPeriod <= 0 {
		return fmt.Errorf("report period must be positive, got %s", c.ReportPeriod)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "notice": true, "warning": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}
