package mavlink

import (
	"testing"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
)

func TestEnvelopeRoundTripCommandAck(t *testing.T) {
	want := &common.MessageCommandAck{Command: common.MAV_CMD_COMPONENT_ARM_DISARM, Result: common.MAV_RESULT_ACCEPTED}

	buf, err := EncodeEnvelope(1, 1, 42, want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(buf) > ISBDMaxMOSize {
		t.Fatalf("envelope too large: %d bytes", len(buf))
	}

	got, sysID, compID, seq, err := DecodeEnvelope(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sysID != 1 || compID != 1 || seq != 42 {
		t.Errorf("identity mismatch: sys=%d comp=%d seq=%d", sysID, compID, seq)
	}
	ack, ok := got.(*common.MessageCommandAck)
	if !ok {
		t.Fatalf("wrong type: %T", got)
	}
	if ack.Command != want.Command || ack.Result != want.Result {
		t.Errorf("got %+v, want %+v", ack, want)
	}
}

func TestEnvelopeRoundTripMissionItem(t *testing.T) {
	want := &common.MessageMissionItem{
		TargetSystem: 1, TargetComponent: 1, Seq: 7,
		Frame: common.MAV_FRAME_GLOBAL_RELATIVE_ALT, Command: common.MAV_CMD_NAV_WAYPOINT,
		Current: 0, Autocontinue: 1,
		Param1: 0, Param2: 5, Param3: 0, Param4: 0,
		X: 47.123, Y: 8.456, Z: 50,
	}

	buf, err := EncodeEnvelope(1, 1, 3, want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, _, _, _, err := DecodeEnvelope(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	item, ok := got.(*common.MessageMissionItem)
	if !ok {
		t.Fatalf("wrong type: %T", got)
	}
	if item.Seq != want.Seq || item.X != want.X || item.Y != want.Y || item.Command != want.Command {
		t.Errorf("got %+v, want %+v", item, want)
	}
}

func TestEnvelopeRoundTripParamSet(t *testing.T) {
	want := &common.MessageParamSet{
		TargetSystem: 1, TargetComponent: 1,
		ParamId: "HL_REPORT_PERIOD", ParamValue: 120, ParamType: common.MAV_PARAM_TYPE_REAL32,
	}

	buf, err := EncodeEnvelope(0, 0, 1, want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, _, _, _, err := DecodeEnvelope(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	set, ok := got.(*common.MessageParamSet)
	if !ok {
		t.Fatalf("wrong type: %T", got)
	}
	// ParamId is truncated to 16 bytes like the wire format it replaces.
	if set.ParamId != "HL_REPORT_PERIOD"[:16] || set.ParamValue != want.ParamValue {
		t.Errorf("got %+v, want %+v", set, want)
	}
}

func TestEnvelopeDetectsCorruption(t *testing.T) {
	msg := &common.MessageMissionAck{Type: common.MAV_MISSION_ACCEPTED}
	buf, err := EncodeEnvelope(1, 1, 9, msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	buf[len(buf)/2] ^= 0xff

	if _, _, _, _, err := DecodeEnvelope(buf); err != ErrCorruptEnvelope {
		t.Errorf("expected ErrCorruptEnvelope, got %v", err)
	}
}

func TestEnvelopeRejectsUnsupportedMessage(t *testing.T) {
	if _, err := EncodeEnvelope(1, 1, 0, &common.MessageHeartbeat{}); err == nil {
		t.Errorf("expected error encoding an unsupported message kind")
	}
}
