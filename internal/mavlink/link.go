// Package mavlink wraps gomavlib's Node into the blocking, single-threaded
// contract spec.md §4.2 asks of the autopilot link: Receive/Send block for
// at most a caller-given timeout, and SendAndAck folds in the ACK-rebuild
// rules the radioroom autopilot bridge has always needed (see ack.go).
package mavlink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/sirupsen/logrus"
)

// Retry/backoff constants for request/reply exchanges with the autopilot
// (spec.md §4.2).
const (
	SendRetries       = 3
	ReceiveRetries    = 5
	ReceiveRetryDelay = 10 * time.Millisecond
)

// errNoReply is returned internally when a retry budget for a specific
// message id is exhausted; callers never see it directly since SendAndAck
// turns it into a synthesized failure ack.
var errNoReply = errors.New("mavlink: no reply received")

// Link is a live connection to the autopilot over a serial endpoint.
type Link struct {
	node   *gomavlib.Node
	logger *logrus.Logger
}

// Open starts a gomavlib Node bound to a single serial endpoint, speaking
// MAVLink v2 and identifying outbound frames as sysID (spec.md §4.2).
func Open(device string, baud int, sysID uint8, logger *logrus.Logger) (*Link, error) {
	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints: []gomavlib.EndpointConf{
			gomavlib.EndpointSerial{Device: device, Baud: baud},
		},
		Dialect:     common.Dialect,
		OutVersion:  gomavlib.V2,
		OutSystemID: sysID,
	})
	if err != nil {
		return nil, fmt.Errorf("open mavlink link on %s: %w", device, err)
	}
	return &Link{node: node, logger: logger}, nil
}

// Close shuts the node down and releases the serial endpoint.
func (l *Link) Close() {
	l.node.Close()
}

// Receive blocks for up to timeout waiting for the next frame from the
// autopilot, returning its message and the origin system/component id.
func (l *Link) Receive(timeout time.Duration) (message.Message, uint8, uint8, error) {
	deadline := time.After(timeout)
	for {
		select {
		case evt, ok := <-l.node.Events():
			if !ok {
				return nil, 0, 0, errors.New("mavlink: node closed")
			}
			if fr, ok := evt.(*gomavlib.EventFrame); ok {
				return fr.Message(), fr.SystemID(), fr.ComponentID(), nil
			}
		case <-deadline:
			return nil, 0, 0, errNoReply
		}
	}
}

// Send writes msg to the autopilot once, with no retry and no reply wait.
func (l *Link) Send(msg message.Message) error {
	return l.node.WriteMessageAll(msg)
}

// SendAndAck sends req, retrying up to SendRetries times, and waits for the
// matching reply defined by the rebuild table in spec.md §4.2. If no reply
// ever matches, it synthesizes a failure ack of the same kind rather than
// propagating a timeout to the caller (ack.go: composeFailedAck).
func (l *Link) SendAndAck(req message.Message) (message.Message, error) {
	if !expectsAck(req) {
		return nil, l.Send(req)
	}

	for attempt := 0; attempt < SendRetries; attempt++ {
		if err := l.Send(req); err != nil {
			return nil, fmt.Errorf("send %T: %w", req, err)
		}

		for try := 0; try < ReceiveRetries; try++ {
			reply, _, _, err := l.Receive(ReceiveRetryDelay)
			if err != nil {
				if errors.Is(err, errNoReply) {
					continue
				}
				return nil, err
			}
			if matchesAck(req, reply) {
				return reply, nil
			}
		}
	}

	failed := composeFailedAck(req)
	l.logger.WithField("request", fmt.Sprintf("%T", req)).
		Warn("mavlink: autopilot never acked request, synthesizing failure")
	return failed, nil
}

// RequestIdentity captures the autopilot's identity once at startup
// (spec.md §3, §9): wait for a HEARTBEAT that names a real autopilot, then
// request AUTOPILOT_VERSION and decode its firmware version field.
func (l *Link) RequestIdentity(ctx context.Context) (Identity, error) {
	var hb *common.MessageHeartbeat
	var sysID uint8

	for {
		select {
		case <-ctx.Done():
			return Identity{}, ctx.Err()
		default:
		}

		msg, sid, _, err := l.Receive(time.Second)
		if err != nil {
			if errors.Is(err, errNoReply) {
				continue
			}
			return Identity{}, err
		}
		h, ok := msg.(*common.MessageHeartbeat)
		if !ok || h.Autopilot == common.MAV_AUTOPILOT_INVALID {
			continue
		}
		hb, sysID = h, sid
		break
	}

	reply, err := l.SendAndAck(&common.MessageCommandLong{
		TargetSystem:    sysID,
		TargetComponent: 1,
		Command:         common.MAV_CMD_REQUEST_AUTOPILOT_CAPABILITIES,
		Param1:          1,
	})
	if err != nil {
		return Identity{}, fmt.Errorf("request autopilot capabilities: %w", err)
	}
	ack, ok := reply.(*common.MessageCommandAck)
	if !ok || ack.Result != common.MAV_RESULT_ACCEPTED {
		l.logger.Warn("mavlink: autopilot did not accept capability request, using heartbeat identity only")
		return Identity{Vendor: hb.Autopilot, VehicleType: hb.Type, SysID: sysID}, nil
	}

	for try := 0; try < ReceiveRetries; try++ {
		msg, _, _, err := l.Receive(100 * time.Millisecond)
		if err != nil {
			if errors.Is(err, errNoReply) {
				continue
			}
			return Identity{}, err
		}
		ver, ok := msg.(*common.MessageAutopilotVersion)
		if !ok {
			continue
		}
		return Identity{
			Vendor:          hb.Autopilot,
			VehicleType:     hb.Type,
			SysID:           sysID,
			FirmwareVersion: DecodeFirmwareVersion(ver.FlightSwVersion),
		}, nil
	}

	return Identity{Vendor: hb.Autopilot, VehicleType: hb.Type, SysID: sysID}, nil
}
