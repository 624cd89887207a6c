package mavlink

import (
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
)

// expectsAck reports whether req has a defined reply in the rebuild table of
// spec.md §4.2. false means SendAndAck should fire req and not block on one.
func expectsAck(req message.Message) bool {
	switch req.(type) {
	case *common.MessageCommandLong, *common.MessageCommandInt,
		*common.MessageMissionItem, *common.MessageMissionItemInt, *common.MessageMissionCount,
		*common.MessageParamSet:
		return true
	default:
		return false
	}
}

// matchesAck reports whether reply is the specific reply req is waiting on.
// Some replies carry an identifying field (the command id on a COMMAND_ACK,
// the param id on a PARAM_VALUE) that must match the request; a mission
// operation accepts either a MISSION_ACK (the upload is done, or rejected)
// or a MISSION_REQUEST (the autopilot wants the next item) — spec.md §4.2's
// rebuild table lists both as MISSION_ITEM's expected reply, and
// `_examples/original_source/RadioRoom/src/MAVLinkSerial.cpp:177`
// (`receive_ack`) accepts both for exactly this reason: a real autopilot
// answers every non-final MISSION_ITEM with MISSION_REQUEST(seq+1), not a
// MISSION_ACK, so requiring a MISSION_ACK here would abort the handshake
// after the very first item.
func matchesAck(req, reply message.Message) bool {
	switch r := req.(type) {
	case *common.MessageCommandLong:
		ack, ok := reply.(*common.MessageCommandAck)
		return ok && ack.Command == r.Command
	case *common.MessageCommandInt:
		ack, ok := reply.(*common.MessageCommandAck)
		return ok && ack.Command == r.Command
	case *common.MessageMissionItem, *common.MessageMissionItemInt, *common.MessageMissionCount:
		switch reply.(type) {
		case *common.MessageMissionAck, *common.MessageMissionRequest:
			return true
		default:
			return false
		}
	case *common.MessageParamSet:
		val, ok := reply.(*common.MessageParamValue)
		return ok && val.ParamId == r.ParamId
	default:
		return false
	}
}

// composeFailedAck synthesizes the negative acknowledgement SendAndAck
// returns when the autopilot never answers (spec.md §4.2, "no reply arrives
// within the retry budget: synthesize a failure ack of the same kind rather
// than propagating a timeout", mirrored from RadioRoom's compose_failed_ack).
func composeFailedAck(req message.Message) message.Message {
	switch r := req.(type) {
	case *common.MessageCommandLong:
		return &common.MessageCommandAck{Command: r.Command, Result: common.MAV_RESULT_FAILED}
	case *common.MessageCommandInt:
		return &common.MessageCommandAck{Command: r.Command, Result: common.MAV_RESULT_FAILED}
	case *common.MessageMissionItem, *common.MessageMissionItemInt, *common.MessageMissionCount:
		return &common.MessageMissionAck{Type: common.MAV_MISSION_ERROR}
	case *common.MessageParamSet:
		return &common.MessageParamValue{ParamId: r.ParamId, ParamValue: r.ParamValue, ParamType: r.ParamType}
	default:
		return nil
	}
}
