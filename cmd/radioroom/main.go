// Command radioroom bridges a MAVLink autopilot to a ground station over an
// Iridium SBD satellite link (spec.md §1). It never exits once its two
// serial links are open: the main loop retries failures in place rather
// than terminating, the way original_source's radioroom.cpp main() never
// returns short of a fatal init error.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"radioroom/internal/config"
	"radioroom/internal/highlatency"
	"radioroom/internal/isbd"
	"radioroom/internal/mavlink"
	"radioroom/internal/radioroom"
	"radioroom/internal/serial"
)

// Exit codes (spec.md §6).
const (
	exitOK            = 0
	exitInvalidConfig = 1
	exitInitFailure   = 2
)

// tickInterval paces the main loop between drains of the autopilot link
// when no ISBD session is due.
const tickInterval = 50 * time.Millisecond

func main() {
	os.Exit(run())
}

func run() int {
	flags, err := config.ParseFlags("radioroom", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInvalidConfig
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInvalidConfig
	}

	logger := newLogger(cfg.LogLevel)

	if cfg.AutoDetectSerials {
		resolveSerials(cfg, logger)
	}

	link, err := mavlink.Open(cfg.MAVLinkSerial, int(cfg.MAVLinkBaud), mavlink.BridgeSystemID, logger)
	if err != nil {
		logger.WithError(err).Error("radioroom: failed to open autopilot link")
		return exitInitFailure
	}
	defer link.Close()

	isbdPort, err := serial.Open(cfg.ISBDSerial, int(cfg.ISBDBaud))
	if err != nil {
		logger.WithError(err).Error("radioroom: failed to open isbd modem link")
		return exitInitFailure
	}
	defer isbdPort.Close()
	modem := isbd.New(isbdPort)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	identity, err := link.RequestIdentity(ctx)
	cancel()
	if err != nil {
		logger.WithError(err).Warn("radioroom: failed to determine autopilot identity, continuing with an unidentified autopilot")
	} else {
		logger.WithFields(logrus.Fields{
			"sysid": identity.SysID, "vendor": identity.Vendor, "vehicle": identity.VehicleType,
		}).Info("radioroom: autopilot identified")
	}

	orch := radioroom.New(link, modem, highlatency.New(), cfg, identity, logger)

	for {
		recoverLoop(logger, orch.Tick)
		time.Sleep(tickInterval)
	}
}

// newLogger builds the structured logger every package in this bridge logs
// through, mapped from spec.md §6's debug/info/notice/warning/error
// taxonomy onto logrus's levels (logrus has no "notice" level; a configured
// "notice" level is treated as info).
func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	switch level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warning":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// resolveSerials probes the candidate device list and assigns whichever
// device answers first to the autopilot link, excluding it from the ISBD
// candidate set (original_source's init(): "a serial port claimed by the
// autopilot link is never also offered to the modem").
func resolveSerials(cfg *config.Config, logger *logrus.Logger) {
	found := serial.Enumerate(cfg.CandidateSerials, int(cfg.MAVLinkBaud))
	if len(found) == 0 {
		logger.Warn("radioroom: auto-detect found no responsive serial devices, keeping configured defaults")
		return
	}

	cfg.MAVLinkSerial = found[0]
	for _, path := range found {
		if path != cfg.MAVLinkSerial {
			cfg.ISBDSerial = path
			break
		}
	}
	logger.WithFields(logrus.Fields{"mavlink": cfg.MAVLinkSerial, "isbd": cfg.ISBDSerial}).
		Info("radioroom: auto-detected serial devices")
}

// recoverLoop guards one Tick against a panic taking the whole process
// down, logging the stack and letting the loop continue on the next
// iteration instead (adapted from the teacher's HTTP recovery middleware).
func recoverLoop(logger *logrus.Logger, tick func() error) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("radioroom: recovered panic in main loop\n" + string(debug.Stack()))
		}
	}()

	if err := tick(); err != nil {
		logger.WithError(err).Warn("radioroom: tick returned an error")
	}
}
