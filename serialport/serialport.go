// Package serialport opens the serial line a UHF reader module is attached to
// and adapts it to the reader.Transport read timeout contract.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Default line settings of the reader module.
const (
	DefaultBaud        = 115200
	DefaultReadTimeout = 100 * time.Millisecond
)

// ErrNameEmpty is returned by Open when no device name is given.
var ErrNameEmpty = errors.New("serialport: device name is empty")

// Config describes the serial line.
type Config struct {
	// Name is the device path, e.g. /dev/ttyUSB0 or COM3.
	Name string
	// Baud defaults to DefaultBaud.
	Baud int
	// ReadTimeout bounds each Read. The driver rounds it to tenths of a
	// second; it defaults to DefaultReadTimeout.
	ReadTimeout time.Duration
}

// port is the subset of *serial.Port used by Port.
type port interface {
	io.ReadWriteCloser
	Flush() error
}

// Port is an open serial line. Reads that time out with no data return an
// error whose Timeout method reports true.
type Port struct {
	name string
	port port
}

// Open opens the serial device described by cfg with 8N1 framing.
func Open(cfg Config) (*Port, error) {
	if cfg.Name == "" {
		return nil, ErrNameEmpty
	}
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultBaud
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Name,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", cfg.Name, err)
	}

	return newPort(cfg.Name, p), nil
}

func newPort(name string, p port) *Port {
	return &Port{name: name, port: p}
}

// Name returns the device path.
func (p *Port) Name() string { return p.name }

// Read reads up to len(b) bytes. The driver reports an expired read timeout
// as io.EOF with no data; it is returned as a timeout error instead.
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, &TimeoutError{Name: p.name}
	}

	return n, err
}

// Write writes b to the line.
func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Flush discards data received but not yet read.
func (p *Port) Flush() error {
	return p.port.Flush()
}

// Close closes the line.
func (p *Port) Close() error {
	return p.port.Close()
}

// TimeoutError is returned by Read when no data arrived within the read
// timeout.
type TimeoutError struct {
	Name string
}

func (e *TimeoutError) Error() string {
	return "serialport: read timeout on " + e.Name
}

// Timeout reports true.
func (e *TimeoutError) Timeout() bool { return true }
