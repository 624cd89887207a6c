package mavlink

import (
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
)

// Bridge-side identity used for every frame this process originates toward
// the physical autopilot link. ArduPilotComponentID is the autopilot's
// component id: it is the target component of frames sent to the real
// autopilot and the origin component stamped on ISBD envelopes (see
// EncodeEnvelope in envelope.go). ArduPilotSystemID is the conventional
// autopilot system id; the orchestrator uses the system id captured at init
// instead.
const (
	BridgeSystemID    uint8 = 255 // matches the GCS system id convention
	BridgeComponentID uint8 = 190 // MAV_COMP_ID_MISSIONPLANNER-range id

	ArduPilotSystemID    uint8 = 1
	ArduPilotComponentID uint8 = 1
)

// FirmwareVersion is the decoded AUTOPILOT_VERSION flight_sw_version field.
type FirmwareVersion struct {
	Major   uint8
	Minor   uint8
	Patch   uint8
	Variant common.FIRMWARE_VERSION_TYPE
}

// DecodeFirmwareVersion splits a packed flight_sw_version field the way
// AP_FLAKE's version encoding does: major/minor/patch/variant each occupy
// one byte, most significant first.
func DecodeFirmwareVersion(flightSWVersion uint32) FirmwareVersion {
	return FirmwareVersion{
		Major:   uint8(flightSWVersion >> 24),
		Minor:   uint8(flightSWVersion >> 16),
		Patch:   uint8(flightSWVersion >> 8),
		Variant: common.FIRMWARE_VERSION_TYPE(uint8(flightSWVersion)),
	}
}

// Identity is the autopilot's identity as captured once at init (spec.md
// §3, §9 "Autopilot identity re-query" — captured once, never refreshed).
type Identity struct {
	Vendor          common.MAV_AUTOPILOT
	VehicleType     common.MAV_TYPE
	SysID           uint8
	FirmwareVersion FirmwareVersion
}
