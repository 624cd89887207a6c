package radioroom

import (
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"radioroom/internal/mavlink"
)

// MaxMissionCount bounds how large a mission the bridge will accept over
// ISBD in one upload (spec.md §4.4.3): each item and its round trip costs a
// full satellite session, so an unbounded count would let one ground
// operator monopolize the link for an unbounded time.
const MaxMissionCount = 50

// missionUpload tracks an in-progress item-by-item mission upload driven
// over the ISBD link, one MISSION_ITEM per satellite session (spec.md
// §4.4.3, grounded in original_source's handle_mission_write).
type missionUpload struct {
	expected int
	items    []*common.MessageMissionItem
}

// handleMissionCount starts a new upload and asks the ground for item 0, or
// rejects the upload outright if it declares more items than the bridge
// will buffer.
func (o *Orchestrator) handleMissionCount(m *common.MessageMissionCount) message.Message {
	if int(m.Count) > MaxMissionCount {
		return &common.MessageMissionAck{Type: common.MAV_MISSION_NO_SPACE}
	}
	o.upload = &missionUpload{expected: int(m.Count)}
	if m.Count == 0 {
		o.upload = nil
		return &common.MessageMissionAck{Type: common.MAV_MISSION_ACCEPTED}
	}
	return &common.MessageMissionRequest{
		TargetSystem: mavlink.BridgeSystemID, TargetComponent: mavlink.BridgeComponentID, Seq: 0,
	}
}

// handleMissionItem buffers one item of an in-progress upload, requests the
// next one, or commits the completed mission to the autopilot.
func (o *Orchestrator) handleMissionItem(m *common.MessageMissionItem) message.Message {
	if o.upload == nil || int(m.Seq) != len(o.upload.items) {
		return &common.MessageMissionAck{Type: common.MAV_MISSION_INVALID_SEQUENCE}
	}

	o.upload.items = append(o.upload.items, m)
	if len(o.upload.items) < o.upload.expected {
		return &common.MessageMissionRequest{
			TargetSystem: mavlink.BridgeSystemID, TargetComponent: mavlink.BridgeComponentID,
			Seq: uint16(len(o.upload.items)),
		}
	}

	items := o.upload.items
	o.upload = nil
	return o.commitMission(items)
}

// commitMission forwards a fully-buffered mission to the real autopilot
// over the direct serial link and propagates the result back to the
// ground, mirroring the ACK-rebuild rules SendAndAck applies to every
// other forwarded message.
func (o *Orchestrator) commitMission(items []*common.MessageMissionItem) message.Message {
	ack, err := o.Link.SendAndAck(&common.MessageMissionCount{
		TargetSystem: o.Identity.SysID, TargetComponent: mavlink.ArduPilotComponentID,
		Count: uint16(len(items)),
	})
	if err != nil {
		o.Logger.WithError(err).Warn("radioroom: mission count forward failed")
		return &common.MessageMissionAck{Type: common.MAV_MISSION_ERROR}
	}
	if a, ok := ack.(*common.MessageMissionAck); ok && a.Type != common.MAV_MISSION_ACCEPTED {
		return ack
	}

	var last message.Message = ack
	for _, item := range items {
		item.TargetSystem = o.Identity.SysID
		item.TargetComponent = mavlink.ArduPilotComponentID

		reply, err := o.Link.SendAndAck(item)
		if err != nil {
			o.Logger.WithError(err).Warn("radioroom: mission item forward failed")
			return &common.MessageMissionAck{Type: common.MAV_MISSION_ERROR}
		}
		last = reply
		if a, ok := reply.(*common.MessageMissionAck); ok && a.Type != common.MAV_MISSION_ACCEPTED {
			break
		}
	}
	return last
}
