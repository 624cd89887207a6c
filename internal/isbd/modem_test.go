package isbd

import (
	"bytes"
	"testing"
	"time"
)

// fakePort is a byte-stream double driving ATModem's line/byte-oriented
// reads without a real serial device, mirroring how tests elsewhere in
// this corpus exercise framing code against canned byte buffers.
type fakePort struct {
	writes bytes.Buffer
	reply  *bytes.Buffer
}

func (p *fakePort) Write(b []byte) (int, error) {
	return p.writes.Write(b)
}

func (p *fakePort) ReadByte(timeout time.Duration) (byte, error) {
	b, err := p.reply.ReadByte()
	if err != nil {
		return 0, err
	}
	return b, nil
}

func TestParseSBDIXNoMessageWaiting(t *testing.T) {
	res, err := parseSBDIX("+SBDIX: 0, 12, 2, 0, 0, 0\r\nOK\r\n")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if res.moStatus != 0 || res.mtStatus != 2 || res.mtLength != 0 {
		t.Errorf("got %+v", res)
	}
}

func TestParseSBDIXMessageWaiting(t *testing.T) {
	res, err := parseSBDIX("+SBDIX: 0, 12, 1, 3, 42, 0\r\nOK\r\n")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if res.mtStatus != 1 || res.mtLength != 42 {
		t.Errorf("got %+v", res)
	}
}

func TestParseSBDIXMalformed(t *testing.T) {
	if _, err := parseSBDIX("garbage\r\nOK\r\n"); err == nil {
		t.Errorf("expected error on malformed reply")
	}
}

func TestParseSBDSX(t *testing.T) {
	status, err := parseSBDSX("+SBDSX: 1, 0, 0, 0, 3\r\nOK\r\n")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !status.RingAlertPending || status.MessagesWaiting != 3 {
		t.Errorf("got %+v", status)
	}
}

func TestSendReceiveRejectsOversizedMO(t *testing.T) {
	m := New(&fakePort{reply: bytes.NewBuffer(nil)})
	oversized := make([]byte, MaxMOSize+1)
	if _, err := m.SendReceive(oversized); err == nil {
		t.Errorf("expected oversized mo payload to be rejected")
	}
}
