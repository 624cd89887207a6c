// Package isbd drives an Iridium SBD (Short Burst Data) transceiver over a
// serial link using its AT command set (spec.md §4.5, original_source's
// sendReceiveSBDBinary/getWaitingMessageCount/getStatusExtended). The modem
// owns the only radio on this leg; every operation here is a blocking,
// half-duplex request/response exchange, matching spec.md's single-threaded
// concurrency model.
package isbd

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Iridium SBD payload limits (spec.md §2 GLOSSARY).
const (
	MaxMOSize = 340
	MaxMTSize = 270
)

// ExtendedStatus is the decoded reply to AT+SBDSX (spec.md §4.5: ring alert
// and mailbox-check state used to decide whether a session is worth the
// airtime).
type ExtendedStatus struct {
	RingAlertPending bool
	MessagesWaiting  int
}

// Port is the minimal byte-stream contract the modem driver needs; it is
// satisfied by internal/serial.Port in production and a fake in tests.
type Port interface {
	Write([]byte) (int, error)
	ReadByte(timeout time.Duration) (byte, error)
}

// Modem is the functional surface radioroom's orchestrator calls (spec.md
// §4.5): one binary MO/MT exchange per session, plus the two status queries
// that decide whether a session is worth starting.
type Modem interface {
	SendReceive(mo []byte) (mt []byte, err error)
	MailboxDepth() (int, error)
	StatusExtended() (ExtendedStatus, error)
}

// ATModem talks to a real Iridium 9602/9603-class transceiver.
type ATModem struct {
	port       Port
	lineWait   time.Duration
	sessionTTL time.Duration
}

// New wraps port with the timeouts a real satellite session needs: short
// for line-mode AT command turnaround, long for the modem's own MO/MT
// session (it may hold the line for tens of seconds hunting for signal).
func New(port Port) *ATModem {
	return &ATModem{port: port, lineWait: 2 * time.Second, sessionTTL: 60 * time.Second}
}

// SendReceive loads mo into the MO buffer and runs one SBD session,
// returning whatever MT payload the gateway had waiting (possibly none).
func (m *ATModem) SendReceive(mo []byte) ([]byte, error) {
	if len(mo) > MaxMOSize {
		return nil, fmt.Errorf("isbd: mo payload too large: %d bytes", len(mo))
	}

	if err := m.writeBinary(mo); err != nil {
		return nil, fmt.Errorf("isbd: load mo buffer: %w", err)
	}

	reply, err := m.command("AT+SBDIX", m.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("isbd: sbdix: %w", err)
	}

	result, err := parseSBDIX(reply)
	if err != nil {
		return nil, err
	}
	if result.moStatus > 4 {
		return nil, fmt.Errorf("isbd: mo session failed, status %d", result.moStatus)
	}
	if result.mtStatus != 1 || result.mtLength == 0 {
		return nil, nil
	}

	return m.readBinary()
}

// MailboxDepth reports how many MT messages the gateway is holding for this
// unit, read from the messages-waiting field of AT+SBDSX (StatusExtended)
// without loading a new MO buffer.
func (m *ATModem) MailboxDepth() (int, error) {
	status, err := m.StatusExtended()
	if err != nil {
		return 0, err
	}
	return status.MessagesWaiting, nil
}

// StatusExtended issues AT+SBDSX and decodes the ring-alert and
// messages-waiting fields radioroom polls between sessions.
func (m *ATModem) StatusExtended() (ExtendedStatus, error) {
	reply, err := m.command("AT+SBDSX", m.lineWait)
	if err != nil {
		return ExtendedStatus{}, fmt.Errorf("isbd: sbdsx: %w", err)
	}
	return parseSBDSX(reply)
}

// command sends an AT command line and collects the modem's reply lines
// until it sees the terminal "OK" or "ERROR" token.
func (m *ATModem) command(line string, timeout time.Duration) (string, error) {
	if err := m.writeLine(line); err != nil {
		return "", err
	}
	return m.readUntilTerminal(timeout)
}

func (m *ATModem) writeLine(line string) error {
	_, err := m.port.Write([]byte(line + "\r"))
	return err
}

func (m *ATModem) readUntilTerminal(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	var out bytes.Buffer
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", fmt.Errorf("isbd: modem response timed out")
		}
		b, err := m.port.ReadByte(remaining)
		if err != nil {
			return "", err
		}
		out.WriteByte(b)
		text := out.String()
		if strings.HasSuffix(text, "OK\r\n") {
			return text, nil
		}
		if strings.HasSuffix(text, "ERROR\r\n") {
			return "", fmt.Errorf("isbd: modem returned ERROR for command")
		}
	}
}

// writeBinary performs the AT+SBDWB handshake: announce the payload length,
// wait for the READY prompt, then send the raw payload bytes followed by a
// 2-byte checksum, per the SBD binary write protocol.
func (m *ATModem) writeBinary(payload []byte) error {
	if err := m.writeLine(fmt.Sprintf("AT+SBDWB=%d", len(payload))); err != nil {
		return err
	}
	if _, err := m.readLine(m.lineWait); err != nil {
		return fmt.Errorf("wait for ready prompt: %w", err)
	}

	var sum uint16
	for _, b := range payload {
		sum += uint16(b)
	}
	var checksum [2]byte
	binary.BigEndian.PutUint16(checksum[:], sum)

	if _, err := m.port.Write(payload); err != nil {
		return err
	}
	if _, err := m.port.Write(checksum[:]); err != nil {
		return err
	}

	reply, err := m.readUntilTerminal(m.lineWait)
	if err != nil {
		return err
	}
	if !strings.Contains(reply, "0") {
		return fmt.Errorf("isbd: mo buffer write rejected: %s", strings.TrimSpace(reply))
	}
	return nil
}

// readBinary issues AT+SBDRB and reads the length-prefixed MT payload back.
func (m *ATModem) readBinary() ([]byte, error) {
	if err := m.writeLine("AT+SBDRB"); err != nil {
		return nil, err
	}

	var lenBuf [2]byte
	for i := range lenBuf {
		b, err := m.port.ReadByte(m.lineWait)
		if err != nil {
			return nil, err
		}
		lenBuf[i] = b
	}
	n := int(binary.BigEndian.Uint16(lenBuf[:]))
	if n > MaxMTSize {
		return nil, fmt.Errorf("isbd: mt payload too large: %d bytes", n)
	}

	data := make([]byte, n)
	for i := range data {
		b, err := m.port.ReadByte(m.lineWait)
		if err != nil {
			return nil, err
		}
		data[i] = b
	}

	// two trailing checksum bytes; the modem's own link layer has already
	// validated them by the time SBDRB replies, so they're only drained here.
	for i := 0; i < 2; i++ {
		if _, err := m.port.ReadByte(m.lineWait); err != nil {
			return nil, err
		}
	}

	return data, nil
}

func (m *ATModem) readLine(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	var out bytes.Buffer
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", fmt.Errorf("isbd: line read timed out")
		}
		b, err := m.port.ReadByte(remaining)
		if err != nil {
			return "", err
		}
		out.WriteByte(b)
		if b == '\n' {
			return out.String(), nil
		}
	}
}

type sbdixResult struct {
	moStatus, mtStatus int
	mtLength           int
}

// parseSBDIX reads the "+SBDIX: mo_status, mo_msn, mt_status, mt_msn,
// mt_length, mt_queued" response line.
func parseSBDIX(reply string) (sbdixResult, error) {
	scanner := bufio.NewScanner(strings.NewReader(reply))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "+SBDIX:") {
			continue
		}
		fields := strings.Split(strings.TrimPrefix(line, "+SBDIX:"), ",")
		if len(fields) < 5 {
			return sbdixResult{}, fmt.Errorf("isbd: malformed SBDIX reply: %q", line)
		}
		mo, err1 := strconv.Atoi(strings.TrimSpace(fields[0]))
		mt, err2 := strconv.Atoi(strings.TrimSpace(fields[2]))
		mtLen, err3 := strconv.Atoi(strings.TrimSpace(fields[4]))
		if err1 != nil || err2 != nil || err3 != nil {
			return sbdixResult{}, fmt.Errorf("isbd: malformed SBDIX fields: %q", line)
		}
		return sbdixResult{moStatus: mo, mtStatus: mt, mtLength: mtLen}, nil
	}
	return sbdixResult{}, fmt.Errorf("isbd: no SBDIX reply line found")
}

// parseSBDSX reads the "+SBDSX: ..." response line, taking the ring-alert
// flag from the first field and the messages-waiting count from the fifth.
func parseSBDSX(reply string) (ExtendedStatus, error) {
	scanner := bufio.NewScanner(strings.NewReader(reply))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "+SBDSX:") {
			continue
		}
		fields := strings.Split(strings.TrimPrefix(line, "+SBDSX:"), ",")
		if len(fields) < 5 {
			return ExtendedStatus{}, fmt.Errorf("isbd: malformed SBDSX reply: %q", line)
		}
		ra, err1 := strconv.Atoi(strings.TrimSpace(fields[0]))
		waiting, err2 := strconv.Atoi(strings.TrimSpace(fields[4]))
		if err1 != nil || err2 != nil {
			return ExtendedStatus{}, fmt.Errorf("isbd: malformed SBDSX fields: %q", line)
		}
		return ExtendedStatus{RingAlertPending: ra != 0, MessagesWaiting: waiting}, nil
	}
	return ExtendedStatus{}, fmt.Errorf("isbd: no SBDSX reply line found")
}
