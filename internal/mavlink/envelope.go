package mavlink

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
)

// The ISBD leg never carries standard MAVLink wire frames. A satellite
// session gives us one short, already-reliable buffer in each direction
// (the modem's own checksum and resend already cover line noise — see
// internal/isbd), and we still need to relay frames whose origin identity
// doesn't match whatever system id this process binds its own Node to.
// gomavlib's public surface only encodes frames through a live Node bound
// to a transport with a fixed OutSystemID, so it has no call for stamping
// one arbitrary frame with a spoofed origin. Rather than guess at gomavlib's
// unexported frame-encoding internals, the bridge defines its own compact,
// fixed-width envelope for the handful of message kinds that cross the
// satellite boundary and carries gomavlib's common.Message* values as the
// in-memory representation on both sides of it.
const (
	kindCommandAck uint8 = iota + 1
	kindMissionAck
	kindParamValue
	kindHighLatency
	kindCommandLong
	kindCommandInt
	kindMissionItem
	kindMissionCount
	kindParamSet
	kindMissionRequest
)

// ISBDMaxMOSize and ISBDMaxMTSize are the Iridium SBD payload caps (spec.md
// §2 GLOSSARY).
const (
	ISBDMaxMOSize = 340
	ISBDMaxMTSize = 270
)

const paramIDLen = 16

// ErrCorruptEnvelope is returned by DecodeEnvelope when the trailing CRC16
// does not match the payload.
var ErrCorruptEnvelope = fmt.Errorf("mavlink: corrupt isbd envelope")

// EncodeEnvelope packs msg, its origin identity and a bridge sequence
// number into a compact buffer bound for the ISBD MO or MT payload. Only
// the message kinds that actually cross the satellite link are supported;
// anything else is a programmer error, not a runtime condition.
func EncodeEnvelope(originSysID, originCompID, seq uint8, msg message.Message) ([]byte, error) {
	buf := make([]byte, 4, 64)
	buf[0] = 0 // kind, filled below
	buf[1] = originSysID
	buf[2] = originCompID
	buf[3] = seq

	var kind uint8
	switch m := msg.(type) {
	case *common.MessageCommandAck:
		kind = kindCommandAck
		buf = appendU16(buf, uint16(m.Command))
		buf = append(buf, uint8(m.Result))
	case *common.MessageMissionAck:
		kind = kindMissionAck
		buf = append(buf, uint8(m.Type))
	case *common.MessageParamValue:
		kind = kindParamValue
		buf = appendParamID(buf, m.ParamId)
		buf = appendF32(buf, m.ParamValue)
		buf = append(buf, uint8(m.ParamType))
		buf = appendU16(buf, m.ParamCount)
		buf = appendU16(buf, m.ParamIndex)
	case *common.MessageHighLatency:
		kind = kindHighLatency
		buf = appendHighLatency(buf, m)
	case *common.MessageCommandLong:
		kind = kindCommandLong
		buf = append(buf, m.TargetSystem, m.TargetComponent)
		buf = appendU16(buf, uint16(m.Command))
		buf = append(buf, m.Confirmation)
		for _, p := range []float32{m.Param1, m.Param2, m.Param3, m.Param4, m.Param5, m.Param6, m.Param7} {
			buf = appendF32(buf, p)
		}
	case *common.MessageCommandInt:
		kind = kindCommandInt
		buf = append(buf, m.TargetSystem, m.TargetComponent, uint8(m.Frame))
		buf = appendU16(buf, uint16(m.Command))
		buf = append(buf, m.Current, m.Autocontinue)
		buf = appendF32(buf, m.Param1)
		buf = appendF32(buf, m.Param2)
		buf = appendF32(buf, m.Param3)
		buf = appendF32(buf, m.Param4)
		buf = appendI32(buf, m.X)
		buf = appendI32(buf, m.Y)
		buf = appendF32(buf, m.Z)
	case *common.MessageMissionItem:
		kind = kindMissionItem
		buf = append(buf, m.TargetSystem, m.TargetComponent)
		buf = appendU16(buf, m.Seq)
		buf = append(buf, uint8(m.Frame))
		buf = appendU16(buf, uint16(m.Command))
		buf = append(buf, m.Current, m.Autocontinue)
		for _, p := range []float32{m.Param1, m.Param2, m.Param3, m.Param4, m.X, m.Y, m.Z} {
			buf = appendF32(buf, p)
		}
	case *common.MessageMissionCount:
		kind = kindMissionCount
		buf = append(buf, m.TargetSystem, m.TargetComponent)
		buf = appendU16(buf, m.Count)
	case *common.MessageParamSet:
		kind = kindParamSet
		buf = append(buf, m.TargetSystem, m.TargetComponent)
		buf = appendParamID(buf, m.ParamId)
		buf = appendF32(buf, m.ParamValue)
		buf = append(buf, uint8(m.ParamType))
	case *common.MessageMissionRequest:
		kind = kindMissionRequest
		buf = append(buf, m.TargetSystem, m.TargetComponent)
		buf = appendU16(buf, m.Seq)
	default:
		return nil, fmt.Errorf("mavlink: %T cannot cross the isbd link", msg)
	}
	buf[0] = kind

	buf = appendU16(buf, crc16(buf))
	return buf, nil
}

// DecodeEnvelope is EncodeEnvelope's inverse.
func DecodeEnvelope(buf []byte) (msg message.Message, originSysID, originCompID, seq uint8, err error) {
	if len(buf) < 6 {
		return nil, 0, 0, 0, fmt.Errorf("mavlink: envelope too short: %d bytes", len(buf))
	}
	payload, trailer := buf[:len(buf)-2], buf[len(buf)-2:]
	if crc16(payload) != binary.BigEndian.Uint16(trailer) {
		return nil, 0, 0, 0, ErrCorruptEnvelope
	}

	kind, originSysID, originCompID, seq := payload[0], payload[1], payload[2], payload[3]
	r := &reader{buf: payload[4:]}

	switch kind {
	case kindCommandAck:
		msg = &common.MessageCommandAck{Command: common.MAV_CMD(r.u16()), Result: common.MAV_RESULT(r.u8())}
	case kindMissionAck:
		msg = &common.MessageMissionAck{Type: common.MAV_MISSION_RESULT(r.u8())}
	case kindParamValue:
		id := r.paramID()
		val := r.f32()
		typ := common.MAV_PARAM_TYPE(r.u8())
		cnt := r.u16()
		idx := r.u16()
		msg = &common.MessageParamValue{ParamId: id, ParamValue: val, ParamType: typ, ParamCount: cnt, ParamIndex: idx}
	case kindHighLatency:
		msg = r.highLatency()
	case kindCommandLong:
		ts, tc := r.u8(), r.u8()
		cmd := common.MAV_CMD(r.u16())
		conf := r.u8()
		params := [7]float32{r.f32(), r.f32(), r.f32(), r.f32(), r.f32(), r.f32(), r.f32()}
		msg = &common.MessageCommandLong{
			TargetSystem: ts, TargetComponent: tc, Command: cmd, Confirmation: conf,
			Param1: params[0], Param2: params[1], Param3: params[2], Param4: params[3],
			Param5: params[4], Param6: params[5], Param7: params[6],
		}
	case kindCommandInt:
		ts, tc, frame := r.u8(), r.u8(), common.MAV_FRAME(r.u8())
		cmd := common.MAV_CMD(r.u16())
		current, autocontinue := r.u8(), r.u8()
		p1, p2, p3, p4 := r.f32(), r.f32(), r.f32(), r.f32()
		x, y, z := r.i32(), r.i32(), r.f32()
		msg = &common.MessageCommandInt{
			TargetSystem: ts, TargetComponent: tc, Frame: frame, Command: cmd,
			Current: current, Autocontinue: autocontinue,
			Param1: p1, Param2: p2, Param3: p3, Param4: p4, X: x, Y: y, Z: z,
		}
	case kindMissionItem:
		ts, tc := r.u8(), r.u8()
		seqNo := r.u16()
		frame := common.MAV_FRAME(r.u8())
		cmd := common.MAV_CMD(r.u16())
		current, autocontinue := r.u8(), r.u8()
		p1, p2, p3, p4, x, y, z := r.f32(), r.f32(), r.f32(), r.f32(), r.f32(), r.f32(), r.f32()
		msg = &common.MessageMissionItem{
			TargetSystem: ts, TargetComponent: tc, Seq: seqNo, Frame: frame, Command: cmd,
			Current: current, Autocontinue: autocontinue,
			Param1: p1, Param2: p2, Param3: p3, Param4: p4, X: x, Y: y, Z: z,
		}
	case kindMissionCount:
		ts, tc := r.u8(), r.u8()
		msg = &common.MessageMissionCount{TargetSystem: ts, TargetComponent: tc, Count: r.u16()}
	case kindParamSet:
		ts, tc := r.u8(), r.u8()
		id := r.paramID()
		val := r.f32()
		typ := common.MAV_PARAM_TYPE(r.u8())
		msg = &common.MessageParamSet{TargetSystem: ts, TargetComponent: tc, ParamId: id, ParamValue: val, ParamType: typ}
	case kindMissionRequest:
		ts, tc := r.u8(), r.u8()
		msg = &common.MessageMissionRequest{TargetSystem: ts, TargetComponent: tc, Seq: r.u16()}
	default:
		return nil, 0, 0, 0, fmt.Errorf("mavlink: unknown envelope kind %d", kind)
	}

	if r.err != nil {
		return nil, 0, 0, 0, r.err
	}
	return msg, originSysID, originCompID, seq, nil
}

func appendHighLatency(buf []byte, m *common.MessageHighLatency) []byte {
	buf = append(buf, uint8(m.BaseMode))
	buf = appendU32(buf, uint32(m.CustomMode))
	buf = append(buf, uint8(m.LandedState))
	buf = appendI16(buf, m.Roll)
	buf = appendI16(buf, m.Pitch)
	buf = appendU16(buf, m.Heading)
	buf = append(buf, uint8(m.Throttle))
	buf = appendI16(buf, m.HeadingSp)
	buf = appendI32(buf, m.Latitude)
	buf = appendI32(buf, m.Longitude)
	buf = appendI16(buf, m.AltitudeAmsl)
	buf = appendI16(buf, m.AltitudeSp)
	buf = append(buf, m.Airspeed, m.AirspeedSp, m.Groundspeed, uint8(m.ClimbRate))
	buf = append(buf, m.GpsNsat, uint8(m.GpsFixType), uint8(m.BatteryRemaining), uint8(m.Temperature), uint8(m.TemperatureAir))
	buf = append(buf, m.Failsafe, m.WpNum)
	buf = appendU16(buf, m.WpDistance)
	return buf
}

func (r *reader) highLatency() *common.MessageHighLatency {
	m := &common.MessageHighLatency{}
	m.BaseMode = common.MAV_MODE_FLAG(r.u8())
	m.CustomMode = uint32(r.u32())
	m.LandedState = common.MAV_LANDED_STATE(r.u8())
	m.Roll = r.i16()
	m.Pitch = r.i16()
	m.Heading = r.u16()
	m.Throttle = int8(r.u8())
	m.HeadingSp = r.i16()
	m.Latitude = r.i32()
	m.Longitude = r.i32()
	m.AltitudeAmsl = r.i16()
	m.AltitudeSp = r.i16()
	m.Airspeed = r.u8()
	m.AirspeedSp = r.u8()
	m.Groundspeed = r.u8()
	m.ClimbRate = int8(r.u8())
	m.GpsNsat = r.u8()
	m.GpsFixType = common.GPS_FIX_TYPE(r.u8())
	m.BatteryRemaining = int8(r.u8())
	m.Temperature = int8(r.u8())
	m.TemperatureAir = int8(r.u8())
	m.Failsafe = r.u8()
	m.WpNum = r.u8()
	m.WpDistance = r.u16()
	return m
}

// reader unpacks fixed-width fields from a byte slice left to right,
// latching the first error so call sites can ignore individual checks.
type reader struct {
	buf []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil || len(r.buf) < n {
		if r.err == nil {
			r.err = fmt.Errorf("mavlink: envelope truncated")
		}
		return make([]byte, n)
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *reader) u8() uint8   { return r.take(1)[0] }
func (r *reader) u16() uint16 { return binary.BigEndian.Uint16(r.take(2)) }
func (r *reader) u32() uint32 { return binary.BigEndian.Uint32(r.take(4)) }
func (r *reader) i16() int16  { return int16(r.u16()) }
func (r *reader) i32() int32  { return int32(r.u32()) }
func (r *reader) f32() float32 {
	bits := binary.BigEndian.Uint32(r.take(4))
	return math.Float32frombits(bits)
}
func (r *reader) paramID() string {
	raw := r.take(paramIDLen)
	n := 0
	for n < len(raw) && raw[n] != 0 {
		n++
	}
	return string(raw[:n])
}

func appendU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendI16(buf []byte, v int16) []byte { return appendU16(buf, uint16(v)) }
func appendI32(buf []byte, v int32) []byte { return appendU32(buf, uint32(v)) }

func appendF32(buf []byte, v float32) []byte {
	return appendU32(buf, math.Float32bits(v))
}

func appendParamID(buf []byte, id string) []byte {
	var tmp [paramIDLen]byte
	copy(tmp[:], id)
	return append(buf, tmp[:]...)
}
