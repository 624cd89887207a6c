// Package serial wraps go.bug.st/serial with the byte-timeout and
// device-enumeration contract spec.md §4.1 asks of the serial transport
// layer. gomavlib uses the same library under its EndpointSerial; the ISBD
// modem link (internal/isbd) talks to go.bug.st/serial directly through
// this package since the modem speaks AT commands, not MAVLink.
package serial

import (
	"errors"
	"time"

	"go.bug.st/serial"
)

// ErrTimeout is returned by ReadByte when no byte arrives within the
// requested timeout.
var ErrTimeout = errors.New("serial: read timeout")

// Port is a byte-oriented serial device opened with 8N1 framing.
type Port struct {
	path string
	baud int
	port serial.Port
}

// Open opens path at the given baud rate with 8N1 framing, set once and
// never reconfigured at runtime (spec.md §4.1).
func Open(path string, baud int) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	// A short fixed read timeout lets ReadByte implement the per-call
	// timeout itself instead of blocking the underlying driver forever.
	if err := p.SetReadTimeout(50 * time.Millisecond); err != nil {
		p.Close()
		return nil, err
	}

	return &Port{path: path, baud: baud, port: p}, nil
}

// Path returns the device path the port was opened on.
func (p *Port) Path() string { return p.path }

// ReadByte reads a single byte, blocking no longer than timeout. It returns
// ErrTimeout if no byte becomes available in time.
func (p *Port) ReadByte(timeout time.Duration) (byte, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 1)

	for {
		n, err := p.port.Read(buf)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return buf[0], nil
		}
		if time.Now().After(deadline) {
			return 0, ErrTimeout
		}
	}
}

// Write writes bytes to the port, returning the number of bytes written.
func (p *Port) Write(data []byte) (int, error) {
	return p.port.Write(data)
}

// Close closes the underlying serial device.
func (p *Port) Close() error {
	return p.port.Close()
}

// Enumerate tries to open each candidate path at baud and returns the
// subset that opened successfully, closing each probe connection again
// (spec.md §4.1: "enumerate() -> [path] scans a configured set of
// candidate device paths, returns those that open").
func Enumerate(candidates []string, baud int) []string {
	var found []string
	for _, path := range candidates {
		p, err := Open(path, baud)
		if err != nil {
			continue
		}
		p.Close()
		found = append(found, path)
	}
	return found
}
