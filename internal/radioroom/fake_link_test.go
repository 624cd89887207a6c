package radioroom

import (
	"errors"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/message"
)

// fakeLink is a scripted autopilotLink double: SendAndAck consults Acks
// keyed by message id, and Receive always times out since no test in this
// package exercises the autopilot-drain path directly.
type fakeLink struct {
	Acks map[uint32]message.Message
	Sent []message.Message
}

func newFakeLink() *fakeLink {
	return &fakeLink{Acks: map[uint32]message.Message{}}
}

func (f *fakeLink) Receive(timeout time.Duration) (message.Message, uint8, uint8, error) {
	return nil, 0, 0, errors.New("fakeLink: no frames available")
}

func (f *fakeLink) Send(msg message.Message) error {
	f.Sent = append(f.Sent, msg)
	return nil
}

func (f *fakeLink) SendAndAck(msg message.Message) (message.Message, error) {
	f.Sent = append(f.Sent, msg)
	if ack, ok := f.Acks[msg.GetID()]; ok {
		return ack, nil
	}
	return nil, errors.New("fakeLink: no scripted ack for message id")
}
