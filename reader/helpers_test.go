package reader

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-uhf/epc"
	"github.com/arloliu/go-uhf/logger"
	"github.com/arloliu/go-uhf/uhf"
	"github.com/stretchr/testify/require"
)

var timeFixture = time.Date(2025, time.June, 15, 8, 30, 0, 0, time.UTC)

// fakeDevice emulates a reader module on the far end of a net.Pipe. Every
// complete frame it receives is recorded and passed to respond; the returned
// byte chunks are written back one write per chunk.
type fakeDevice struct {
	conn    net.Conn
	respond func(frame []byte) [][]byte

	mu       sync.Mutex
	received [][]byte

	out  chan []byte
	done chan struct{}
}

func newFakeDevice(t *testing.T, respond func(frame []byte) [][]byte) (*fakeDevice, net.Conn) {
	t.Helper()

	host, dev := net.Pipe()
	d := &fakeDevice{
		conn:    dev,
		respond: respond,
		out:     make(chan []byte, 64),
		done:    make(chan struct{}),
	}

	writerDone := make(chan struct{})
	go d.readLoop()
	go func() {
		defer close(writerDone)
		d.writeLoop()
	}()

	t.Cleanup(func() {
		_ = dev.Close()
		_ = host.Close()
		<-d.done
		close(d.out)
		<-writerDone
	})

	return d, host
}

func (d *fakeDevice) readLoop() {
	defer close(d.done)

	buf := make([]byte, 256)
	var acc []byte
	for {
		n, err := d.conn.Read(buf)
		if err != nil {
			return
		}
		acc = append(acc, buf[:n]...)

		for {
			frameLen, ok := uhf.FrameLen(acc)
			if !ok || len(acc) < frameLen {
				break
			}
			frame := append([]byte(nil), acc[:frameLen]...)
			acc = acc[frameLen:]

			d.mu.Lock()
			d.received = append(d.received, frame)
			d.mu.Unlock()

			if d.respond == nil {
				continue
			}
			for _, chunk := range d.respond(frame) {
				d.out <- chunk
			}
		}
	}
}

func (d *fakeDevice) writeLoop() {
	for chunk := range d.out {
		_ = d.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_, _ = d.conn.Write(chunk)
	}
}

// push queues unsolicited bytes, such as tag notifications during an
// inventory.
func (d *fakeDevice) push(chunks ...[]byte) {
	for _, c := range chunks {
		d.out <- c
	}
}

// frames returns the frames received so far.
func (d *fakeDevice) frames() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([][]byte, len(d.received))
	copy(out, d.received)

	return out
}

// hasFrame reports whether a frame with the given command code was received.
func (d *fakeDevice) hasFrame(cmd byte) bool {
	for _, f := range d.frames() {
		if f[2] == cmd {
			return true
		}
	}

	return false
}

// newTestReader returns a Reader wired to dev with short timeouts.
func newTestReader(t *testing.T, conn net.Conn, opts ...Option) *Reader {
	t.Helper()

	base := []Option{
		WithResponseTimeout(200 * time.Millisecond),
		WithReadTimeout(10 * time.Millisecond),
		WithPollInterval(time.Millisecond),
		WithJoinTimeout(time.Second),
		WithLogger(logger.NewPermissiveMockLogger()),
	}
	cfg, err := NewConfig(append(base, opts...)...)
	require.NoError(t, err)

	r, err := New(context.Background(), conn, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	return r
}

// buildTagNotice returns a 26-byte tag notification carrying epcBytes.
func buildTagNotice(t *testing.T, rssi int8, epcBytes []byte) []byte {
	t.Helper()

	require.Len(t, epcBytes, 12)

	pcEPC := make([]byte, 2+len(epcBytes))
	binary.BigEndian.PutUint16(pcEPC, uint16(len(epcBytes)/2)<<11)
	copy(pcEPC[2:], epcBytes)

	payload := make([]byte, 0, 19)
	payload = append(payload, byte(rssi))
	payload = append(payload, pcEPC...)
	payload = binary.BigEndian.AppendUint16(payload, uhf.TagCRC(pcEPC))
	payload = append(payload, 0x01, 0x00)

	return uhf.Build(uhf.TypeNotice, uhf.CmdSinglePoll, payload)
}

// recordFor returns a record with the given tag id for layout l.
func recordFor(l epc.Layout, tagID string) epc.Record {
	rec := epc.NewRecord(l, "0123456789ABC"[:l.ProductIDLen()], timeFixture)
	rec.TagID = tagID

	return rec
}

// noticeFor returns a tag notification whose EPC encodes rec.
func noticeFor(t *testing.T, l epc.Layout, rec epc.Record) []byte {
	t.Helper()

	b, err := epc.FormatBytes(l, rec)
	require.NoError(t, err)

	return buildTagNotice(t, -60, b)
}

func ackFrame(cmd byte, payload ...byte) []byte {
	if len(payload) == 0 {
		payload = []byte{0x00}
	}

	return uhf.Build(uhf.TypeResponse, cmd, payload)
}

// errorFrame returns an error response; the code follows one status byte.
func errorFrame(code byte) []byte {
	return uhf.Build(uhf.TypeResponse, uhf.CmdError, []byte{0x00, code})
}

// errTransport fails every read once armed.
type errTransport struct {
	mu     sync.Mutex
	err    error
	writes [][]byte
}

func (e *errTransport) Read(p []byte) (int, error) {
	e.mu.Lock()
	err := e.err
	e.mu.Unlock()

	if err != nil {
		return 0, err
	}
	time.Sleep(time.Millisecond)

	return 0, timeoutError{}
}

func (e *errTransport) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.writes = append(e.writes, append([]byte(nil), p...))

	return len(p), nil
}

func (e *errTransport) lastWrite() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.writes) == 0 {
		return nil
	}

	return e.writes[len(e.writes)-1]
}

func (e *errTransport) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.err = err
}

// stallTransport times out every read. The first stop command written to it
// is held for holdWrite, and the read that follows it stalls for stall.
type stallTransport struct {
	holdWrite time.Duration
	stall     time.Duration
	stalled   atomic.Int32

	mu      sync.Mutex
	stopped bool
	armed   bool
}

func (s *stallTransport) Read(p []byte) (int, error) {
	s.mu.Lock()
	armed := s.armed
	s.armed = false
	s.mu.Unlock()

	if armed {
		s.stalled.Add(1)
		time.Sleep(s.stall)
	} else {
		time.Sleep(time.Millisecond)
	}

	return 0, timeoutError{}
}

func (s *stallTransport) Write(p []byte) (int, error) {
	if !bytes.Equal(p, uhf.StopInventory()) {
		return len(p), nil
	}

	s.mu.Lock()
	first := !s.stopped
	s.stopped = true
	s.mu.Unlock()

	if first {
		time.Sleep(s.holdWrite)
		s.mu.Lock()
		s.armed = true
		s.mu.Unlock()
	}

	return len(p), nil
}

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o timeout" }
func (timeoutError) Timeout() bool { return true }

var errLinkDown = errors.New("link down")
