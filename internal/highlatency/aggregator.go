// Package highlatency maintains the rolling HIGH_LATENCY snapshot the
// bridge reports to the ground station over ISBD (spec.md §4.3). Every
// frame received from the autopilot over the serial link updates whichever
// fields it carries; nothing is ever cleared between updates, since the
// satellite link is too infrequent to tolerate dropping a field just
// because its source message hasn't repeated recently.
package highlatency

import (
	"sync"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
)

// State is the latest known value of every field HIGH_LATENCY reports,
// built up incrementally from whatever telemetry the autopilot happens to
// send (spec.md §4.3: "a continuously updated reducer, not a snapshot of
// one message type").
type State struct {
	mu sync.RWMutex

	baseMode   common.MAV_MODE_FLAG
	customMode uint32
	landed     common.MAV_LANDED_STATE

	roll, pitch   int16
	heading       uint16
	headingSp     int16
	throttle      int8

	lat, lon           int32
	altAMSL, altSp      int16

	airspeed, airspeedSp, groundspeed uint8
	climbRate                         int8

	gpsNsat    uint8
	gpsFixType common.GPS_FIX_TYPE

	batteryRemaining int8

	temperature, temperatureAir int8

	failsafe   uint8
	wpNum      uint8
	wpDistance uint16
}

// New returns a State with every field at its "unknown" sentinel, mirroring
// the all-invalid defaults HIGH_LATENCY's own field documentation defines
// (e.g. -1 for battery percentage, UINT16_MAX for distance).
func New() *State {
	return &State{
		batteryRemaining: -1,
		wpDistance:       0xffff,
		gpsFixType:       common.GPS_FIX_TYPE_NO_GPS,
		landed:           common.MAV_LANDED_STATE_UNDEFINED,
	}
}

// Update folds one autopilot message into the running snapshot. Message
// kinds the aggregator doesn't track are ignored.
func (s *State) Update(msg interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m := msg.(type) {
	case *common.MessageHeartbeat:
		s.baseMode = m.BaseMode
		s.customMode = m.CustomMode
	case *common.MessageGlobalPositionInt:
		s.lat = m.Lat
		s.lon = m.Lon
		s.altAMSL = clampToInt16(float32(m.Alt) / 1000)
		s.heading = headingFromCdeg(m.Hdg)
	case *common.MessageAttitude:
		s.roll = radToDegI16(m.Roll)
		s.pitch = radToDegI16(m.Pitch)
	case *common.MessageVfrHud:
		s.airspeed = clampToUint8(m.Airspeed)
		s.groundspeed = clampToUint8(m.Groundspeed)
		s.climbRate = clampToInt8(m.Climb)
		s.throttle = int8(clampToUint8(float32(m.Throttle)))
	case *common.MessageSysStatus:
		s.batteryRemaining = clampToInt8(float32(m.BatteryRemaining))
		unhealthy := m.OnboardControlSensorsEnabled &^ m.OnboardControlSensorsHealth
		s.failsafe = uint8(unhealthy & 0xff)
	case *common.MessageScaledPressure:
		s.temperature = clampToInt8(float32(m.Temperature) / 100)
	case *common.MessageScaledPressure2:
		s.temperatureAir = clampToInt8(float32(m.Temperature) / 100)
	case *common.MessageGpsRawInt:
		s.gpsNsat = m.SatellitesVisible
		s.gpsFixType = m.FixType
	case *common.MessageMissionCurrent:
		s.wpNum = clampToUint8(float32(m.Seq))
	case *common.MessageNavControllerOutput:
		s.wpDistance = uint16(m.WpDist)
		s.altSp = clampToInt16(m.AltError)
		s.headingSp = int16(m.NavBearing)
	}
}

// Encode builds the HIGH_LATENCY message the bridge sends over ISBD from
// the current snapshot. It carries no origin identity of its own; the
// orchestrator stamps the autopilot's ids when it wraps the message in an
// ISBD envelope.
func (s *State) Encode() *common.MessageHighLatency {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &common.MessageHighLatency{
		BaseMode:         s.baseMode,
		CustomMode:       s.customMode,
		LandedState:      s.landed,
		Roll:             s.roll,
		Pitch:            s.pitch,
		Heading:          s.heading,
		Throttle:         s.throttle,
		HeadingSp:        s.headingSp,
		Latitude:         s.lat,
		Longitude:        s.lon,
		AltitudeAmsl:     s.altAMSL,
		AltitudeSp:       s.altSp,
		Airspeed:         s.airspeed,
		AirspeedSp:       s.airspeedSp,
		Groundspeed:      s.groundspeed,
		ClimbRate:        s.climbRate,
		GpsNsat:          s.gpsNsat,
		GpsFixType:       s.gpsFixType,
		BatteryRemaining: s.batteryRemaining,
		Temperature:      s.temperature,
		TemperatureAir:   s.temperatureAir,
		Failsafe:         s.failsafe,
		WpNum:            s.wpNum,
		WpDistance:       s.wpDistance,
	}
}

func clampToInt16(v float32) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}

func clampToInt8(v float32) int8 {
	switch {
	case v > 127:
		return 127
	case v < -128:
		return -128
	default:
		return int8(v)
	}
}

func clampToUint8(v float32) uint8 {
	switch {
	case v > 255:
		return 255
	case v < 0:
		return 0
	default:
		return uint8(v)
	}
}

func headingFromCdeg(hdg uint16) uint16 {
	if hdg == 65535 {
		return 0
	}
	return hdg / 100
}

func radToDegI16(rad float32) int16 {
	const radToDeg = 180 / 3.14159265
	return clampToInt16(rad * radToDeg)
}
