package highlatency

import (
	"testing"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
)

func TestNewHasSentinelDefaults(t *testing.T) {
	s := New()
	out := s.Encode()
	if out.BatteryRemaining != -1 {
		t.Errorf("expected battery sentinel -1, got %d", out.BatteryRemaining)
	}
	if out.WpDistance != 0xffff {
		t.Errorf("expected wp distance sentinel 0xffff, got %d", out.WpDistance)
	}
}

func TestUpdateFoldsHeartbeat(t *testing.T) {
	s := New()
	s.Update(&common.MessageHeartbeat{
		BaseMode:   common.MAV_MODE_FLAG_SAFETY_ARMED,
		CustomMode: 4,
	})
	out := s.Encode()
	if out.BaseMode != common.MAV_MODE_FLAG_SAFETY_ARMED || out.CustomMode != 4 {
		t.Errorf("heartbeat fields not folded in: %+v", out)
	}
}

func TestUpdateFoldsGlobalPosition(t *testing.T) {
	s := New()
	s.Update(&common.MessageGlobalPositionInt{
		Lat: 473977400, Lon: 85455900, Alt: 50000, Hdg: 9000,
	})
	out := s.Encode()
	if out.Latitude != 473977400 || out.Longitude != 85455900 {
		t.Errorf("position not folded in: %+v", out)
	}
	if out.AltitudeAmsl != 50 {
		t.Errorf("expected altitude in meters, got %d", out.AltitudeAmsl)
	}
	if out.Heading != 90 {
		t.Errorf("expected heading in degrees, got %d", out.Heading)
	}
}

func TestUpdateIsCumulativeAcrossMessageKinds(t *testing.T) {
	s := New()
	s.Update(&common.MessageHeartbeat{CustomMode: 1})
	s.Update(&common.MessageGpsRawInt{SatellitesVisible: 11, FixType: common.GPS_FIX_TYPE_3D_FIX})
	out := s.Encode()
	if out.CustomMode != 1 {
		t.Errorf("expected earlier heartbeat update to persist, got %+v", out)
	}
	if out.GpsNsat != 11 || out.GpsFixType != common.GPS_FIX_TYPE_3D_FIX {
		t.Errorf("gps fields not folded in: %+v", out)
	}
}

func TestUpdateFoldsSysStatusFailsafe(t *testing.T) {
	s := New()
	s.Update(&common.MessageSysStatus{
		OnboardControlSensorsEnabled: 0b111,
		OnboardControlSensorsHealth:  0b101,
	})
	out := s.Encode()
	if out.Failsafe != 0b010 {
		t.Errorf("expected failsafe bit for the unhealthy-but-enabled sensor, got %08b", out.Failsafe)
	}
}

func TestUpdateFoldsTemperatures(t *testing.T) {
	s := New()
	s.Update(&common.MessageScaledPressure{Temperature: 2350})
	s.Update(&common.MessageScaledPressure2{Temperature: 1800})
	out := s.Encode()
	if out.Temperature != 23 {
		t.Errorf("expected board temperature 23C, got %d", out.Temperature)
	}
	if out.TemperatureAir != 18 {
		t.Errorf("expected air temperature 18C, got %d", out.TemperatureAir)
	}
}

func TestUpdateIgnoresUntrackedMessages(t *testing.T) {
	s := New()
	s.Update(&common.MessageStatustext{Text: "hello"})
	out := s.Encode()
	if out.BatteryRemaining != -1 {
		t.Errorf("untracked message should not change state: %+v", out)
	}
}
