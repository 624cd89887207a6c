// Package radioroom wires the autopilot MAVLink link, the HIGH_LATENCY
// aggregator and the ISBD modem into the single-threaded control loop
// spec.md §4.4 describes: drain whatever the autopilot has to say, decide
// whether a satellite session is worth running, and if so run exactly one
// MO/MT exchange and dispatch whatever came back.
package radioroom

import (
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/sirupsen/logrus"

	"radioroom/internal/config"
	"radioroom/internal/highlatency"
	"radioroom/internal/isbd"
	"radioroom/internal/mavlink"
)

// maxDrainPerTick bounds how many autopilot frames a single Tick will
// consume before giving up and checking whether an ISBD session is due
// (spec.md §4.4.1: "drain the autopilot link without starving the
// satellite schedule").
const maxDrainPerTick = 100

// drainReadTimeout is how long Tick waits for each autopilot frame while
// draining; once it sees a timeout it assumes the link has gone quiet.
const drainReadTimeout = 5 * time.Millisecond

// autopilotLink is the subset of *mavlink.Link the orchestrator needs,
// narrowed to an interface so tests can drive it with a fake instead of a
// live serial-backed gomavlib Node.
type autopilotLink interface {
	Receive(timeout time.Duration) (message.Message, uint8, uint8, error)
	Send(msg message.Message) error
	SendAndAck(msg message.Message) (message.Message, error)
}

// dataStreamRequests is the REQUEST_DATA_STREAM burst spec.md §4.4.1 step 1
// asks for every loop iteration, with the same stream ids and rates
// original_source's SPLRadioRoom.cpp:334-339 sends: ArduPilot stops a data
// group as soon as nobody renews its request, so this has to be repeated on
// every tick rather than once at startup.
var dataStreamRequests = []struct {
	id   common.MAV_DATA_STREAM
	rate uint16
}{
	{common.MAV_DATA_STREAM_EXTRA1, 2},
	{common.MAV_DATA_STREAM_EXTRA2, 3},
	{common.MAV_DATA_STREAM_EXTENDED_STATUS, 2},
	{common.MAV_DATA_STREAM_POSITION, 2},
	{common.MAV_DATA_STREAM_RAW_CONTROLLER, 2},
}

// Orchestrator is the bridge's main-loop state: one tick of Tick() is one
// pass through spec.md §4.4's periodic loop.
type Orchestrator struct {
	Link   autopilotLink
	Modem  isbd.Modem
	Agg    *highlatency.State
	Cfg    *config.Config
	Logger *logrus.Logger

	Identity mavlink.Identity

	seq        uint8
	lastReport time.Time
	pending    []message.Message
	upload     *missionUpload
}

// New builds an Orchestrator ready for its first Tick. lastReport starts at
// the zero time so the very first tick always sends an initial report.
func New(link autopilotLink, modem isbd.Modem, agg *highlatency.State, cfg *config.Config, identity mavlink.Identity, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		Link: link, Modem: modem, Agg: agg, Cfg: cfg, Identity: identity, Logger: logger,
	}
}

// Tick runs one pass of the control loop: drain the autopilot link, then
// run an ISBD session if one is due.
func (o *Orchestrator) Tick() error {
	o.requestDataStreams()
	o.drainAutopilot()

	due, err := o.sessionDue()
	if err != nil {
		o.Logger.WithError(err).Warn("radioroom: could not query modem status")
	}
	if !due {
		return nil
	}
	return o.runSession()
}

// requestDataStreams re-asserts the telemetry rates the HIGH_LATENCY
// aggregator depends on; without it ArduPilot never starts streaming and
// every aggregated field stays at its startup sentinel forever (spec.md
// §4.4.1 step 1).
func (o *Orchestrator) requestDataStreams() {
	for _, req := range dataStreamRequests {
		msg := &common.MessageRequestDataStream{
			TargetSystem:    o.Identity.SysID,
			TargetComponent: mavlink.ArduPilotComponentID,
			ReqStreamId:     uint8(req.id),
			ReqMessageRate:  req.rate,
			StartStop:       1,
		}
		if err := o.Link.Send(msg); err != nil {
			o.Logger.WithError(err).Warn("radioroom: failed to request data stream")
			return
		}
	}
}

// drainAutopilot folds every frame currently available from the autopilot
// into the HIGH_LATENCY aggregator, stopping after maxDrainPerTick frames
// or the first read timeout, whichever comes first.
func (o *Orchestrator) drainAutopilot() {
	for i := 0; i < maxDrainPerTick; i++ {
		msg, _, _, err := o.Link.Receive(drainReadTimeout)
		if err != nil {
			return
		}
		o.Agg.Update(msg)
	}
}

// sessionDue decides whether this tick should spend a satellite session
// (spec.md §4.4.1): a queued reply always goes out immediately, otherwise
// the periodic report interval or the modem's own ring-alert/mailbox state
// can trigger one.
func (o *Orchestrator) sessionDue() (bool, error) {
	if len(o.pending) > 0 {
		return true, nil
	}
	if time.Since(o.lastReport) >= o.Cfg.ReportPeriod {
		return true, nil
	}

	status, err := o.Modem.StatusExtended()
	if err != nil {
		return false, err
	}
	return status.RingAlertPending || status.MessagesWaiting > 0, nil
}

// runSession performs exactly one ISBD MO/MT exchange and dispatches
// whatever the ground sent back.
func (o *Orchestrator) runSession() error {
	out, err := o.nextOutbound()
	if err != nil {
		return err
	}

	mt, err := o.Modem.SendReceive(out)
	if err != nil {
		o.Logger.WithError(err).Warn("radioroom: isbd session failed, will retry next tick")
		return nil
	}
	if len(mt) == 0 {
		return nil
	}

	msg, _, _, _, err := mavlink.DecodeEnvelope(mt)
	if err != nil {
		o.Logger.WithError(err).Warn("radioroom: dropping corrupt mt payload")
		return nil
	}

	return o.dispatch(msg)
}

// nextOutbound picks whatever should occupy this session's MO slot: a
// queued reply takes priority over the periodic HIGH_LATENCY report.
func (o *Orchestrator) nextOutbound() ([]byte, error) {
	var msg message.Message
	if len(o.pending) > 0 {
		msg, o.pending = o.pending[0], o.pending[1:]
	} else {
		msg = o.Agg.Encode()
		o.lastReport = time.Now()
	}

	o.seq++
	return mavlink.EncodeEnvelope(o.Identity.SysID, mavlink.ArduPilotComponentID, o.seq, msg)
}

// queue schedules msg to occupy the MO slot of the next ISBD session.
func (o *Orchestrator) queue(msg message.Message) {
	if msg == nil {
		return
	}
	o.pending = append(o.pending, msg)
}

// dispatch handles one decoded MT message per spec.md §4.4.2: a
// HL_REPORT_PERIOD param set is handled locally, a mission upload message
// advances the sub-protocol in mission.go, and everything else is forwarded
// to the autopilot unchanged and its ack queued for the next session.
func (o *Orchestrator) dispatch(msg message.Message) error {
	switch m := msg.(type) {
	case *common.MessageParamSet:
		if m.ParamId == "HL_REPORT_PERIOD" {
			o.Cfg.ReportPeriod = time.Duration(m.ParamValue) * time.Second
			o.queue(&common.MessageParamValue{ParamId: m.ParamId, ParamValue: m.ParamValue, ParamType: m.ParamType})
			return nil
		}
		reply, err := o.Link.SendAndAck(m)
		if err != nil {
			return err
		}
		o.queue(reply)
		return nil

	case *common.MessageMissionCount:
		o.queue(o.handleMissionCount(m))
		return nil

	case *common.MessageMissionItem:
		o.queue(o.handleMissionItem(m))
		return nil

	default:
		reply, err := o.Link.SendAndAck(msg)
		if err != nil {
			return err
		}
		o.queue(reply)
		return nil
	}
}
