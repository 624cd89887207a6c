package config

import (
	"os"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() config should validate, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid default", func(c *Config) {}, false},
		{"empty mavlink serial", func(c *Config) { c.MAVLinkSerial = "" }, true},
		{"empty isbd serial", func(c *Config) { c.ISBDSerial = "" }, true},
		{"bad mavlink baud", func(c *Config) { c.MAVLinkBaud = 1200 }, true},
		{"bad isbd baud", func(c *Config) { c.ISBDBaud = 1200 }, true},
		{"zero report period", func(c *Config) { c.ReportPeriod = 0 }, true},
		{"negative report period", func(c *Config) { c.ReportPeriod = -time.Second }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Errorf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestLoadFileMissingIsNotError(t *testing.T) {
	cfg, err := LoadFile("/nonexistent/path/radioroom.yaml", Default())
	if err != nil {
		t.Fatalf("missing file should not error, got: %v", err)
	}
	if cfg.ReportPeriod != Default().ReportPeriod {
		t.Errorf("expected defaults to pass through unchanged")
	}
}

func TestLoadFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/radioroom.yaml"
	contents := "mavlink_serial: /dev/ttyACM0\nreport_period_seconds: 60\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write test fixture: %v", err)
	}

	cfg, err := LoadFile(path, Default())
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.MAVLinkSerial != "/dev/ttyACM0" {
		t.Errorf("expected mavlink_serial override, got %s", cfg.MAVLinkSerial)
	}
	if cfg.ReportPeriod != 60*time.Second {
		t.Errorf("expected report period 60s, got %s", cfg.ReportPeriod)
	}
	if cfg.ISBDSerial != Default().ISBDSerial {
		t.Errorf("expected isbd_serial to remain at default, got %s", cfg.ISBDSerial)
	}
}

func TestParseFlagsAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/radioroom.yaml"

	flags, err := ParseFlags("radioroom", []string{
		"-config", path,
		"-mavlink-serial", "/dev/ttyUSB5",
		"-serials", "/dev/ttyUSB5, /dev/ttyUSB6",
		"-report-period", "60",
		"-auto-detect",
	})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.MAVLinkSerial != "/dev/ttyUSB5" {
		t.Errorf("expected flag override, got %s", cfg.MAVLinkSerial)
	}
	if cfg.ReportPeriod != 60*time.Second {
		t.Errorf("expected report period 60s, got %s", cfg.ReportPeriod)
	}
	if !cfg.AutoDetectSerials {
		t.Errorf("expected auto-detect to be enabled")
	}
	if len(cfg.CandidateSerials) != 2 || cfg.CandidateSerials[0] != "/dev/ttyUSB5" {
		t.Errorf("expected parsed candidate serials, got %v", cfg.CandidateSerials)
	}
}
