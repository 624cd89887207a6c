package config

import (
	"flag"
	"fmt"
	"strings"
	"time"
)

// Flags holds the parsed command-line overrides named in spec.md §6. Every
// field is a pointer so that "not set" can be told apart from "set to the
// zero value."
type Flags struct {
	ConfigPath    string
	MAVLinkSerial *string
	ISBDSerial    *string
	AutoDetect    *bool
	Serials       *string
	ReportPeriod  *int
}

// ParseFlags parses args (normally os.Args[1:]) the way ipmiserial's main
// parses its -config flag: a dedicated FlagSet so repeated calls (e.g. from
// tests) don't collide with the package-level flag.CommandLine.
func ParseFlags(name string, args []string) (*Flags, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	configPath := fs.String("config", "./radioroom.yaml", "path to YAML configuration file")
	mavlinkSerial := fs.String("mavlink-serial", "", "device for the autopilot link")
	isbdSerial := fs.String("isbd-serial", "", "device for the ISBD modem link")
	autoDetect := fs.Bool("auto-detect", false, "probe the candidate device list")
	serials := fs.String("serials", "", "comma-separated candidate devices")
	reportPeriod := fs.Int("report-period", 0, "default summary interval, in seconds")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	flags := &Flags{ConfigPath: *configPath}

	if *mavlinkSerial != "" {
		flags.MAVLinkSerial = mavlinkSerial
	}
	if *isbdSerial != "" {
		flags.ISBDSerial = isbdSerial
	}
	if *autoDetect {
		flags.AutoDetect = autoDetect
	}
	if *serials != "" {
		flags.Serials = serials
	}
	if *reportPeriod > 0 {
		flags.ReportPeriod = reportPeriod
	}

	return flags, nil
}

// Load builds the final Config: defaults, overlaid by the YAML file named
// by flags.ConfigPath, overlaid by any command-line flags, then validated.
// Every override in this chain takes precedence over the previous one, per
// spec.md §6 ("all options override configuration-file defaults").
func Load(flags *Flags) (*Config, error) {
	cfg, err := LoadFile(flags.ConfigPath, Default())
	if err != nil {
		return nil, err
	}

	if flags.MAVLinkSerial != nil {
		cfg.MAVLinkSerial = *flags.MAVLinkSerial
	}
	if flags.ISBDSerial != nil {
		cfg.ISBDSerial = *flags.ISBDSerial
	}
	if flags.AutoDetect != nil {
		cfg.AutoDetectSerials = *flags.AutoDetect
	}
	if flags.Serials != nil {
		parts := strings.Split(*flags.Serials, ",")
		candidates := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				candidates = append(candidates, p)
			}
		}
		cfg.CandidateSerials = candidates
	}
	if flags.ReportPeriod != nil {
		cfg.ReportPeriod = time.Duration(*flags.ReportPeriod) * time.Second
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
