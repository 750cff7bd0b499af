package reader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/arloliu/go-uhf/uhf"
)

// Transport is the byte stream connected to the reader module, usually a
// serial port. See the package documentation for the read timeout contract.
type Transport interface {
	io.Reader
	io.Writer
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// flusher discards unread input, as serial ports do.
type flusher interface {
	Flush() error
}

// flushReadTimeout bounds each read used to discard stale input.
const flushReadTimeout = time.Millisecond

// maxFlushReads bounds how many stale chunks are discarded before a command.
const maxFlushReads = 8

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// readChunk performs one bounded read into buf. A read that times out is
// reported as (0, nil). The caller must hold r.mu.
func (r *Reader) readChunk(buf []byte, timeout time.Duration) (int, error) {
	if d, ok := r.transport.(readDeadliner); ok {
		if err := d.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return 0, err
		}
	}

	n, err := r.transport.Read(buf)
	if err != nil {
		if isTimeout(err) {
			return n, nil
		}
		r.metrics.incTransportErrCount()

		return n, err
	}
	if n > 0 {
		r.metrics.incReadCount()
	}

	return n, nil
}

// writeFrame writes one frame. The caller must hold r.mu.
func (r *Reader) writeFrame(frame []byte) error {
	if d, ok := r.transport.(writeDeadliner); ok {
		if err := d.SetWriteDeadline(time.Now().Add(r.cfg.responseTimeout)); err != nil {
			return err
		}
	}

	if _, err := r.transport.Write(frame); err != nil {
		r.metrics.incTransportErrCount()
		return err
	}
	r.metrics.incFrameSendCount()
	r.logger.Debug("reader: frame sent", "frame", hexString(frame))

	return nil
}

// flushInput discards bytes left over from earlier exchanges, such as tag
// notifications that arrived after an inventory was stopped. Transports that
// can flush are flushed; otherwise it only reads from transports with read
// deadlines, where it cannot block. The caller must hold r.mu.
func (r *Reader) flushInput() {
	if f, ok := r.transport.(flusher); ok {
		if err := f.Flush(); err != nil {
			r.logger.Debug("reader: flush input", "error", err)
		}

		return
	}
	if _, ok := r.transport.(readDeadliner); !ok {
		return
	}

	for range maxFlushReads {
		n, err := r.readChunk(r.readBuf, flushReadTimeout)
		if err != nil || n == 0 {
			return
		}
		r.logger.Debug("reader: discard stale input", "bytes", n)
	}
}

// collectResponse reads until one complete frame is buffered or the response
// timeout elapses, and returns that frame. Bytes before the first frame
// header are dropped. The caller must hold r.mu.
func (r *Reader) collectResponse(ctx context.Context) ([]byte, error) {
	deadline := time.Now().Add(r.cfg.responseTimeout)
	var acc []byte

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		n, err := r.readChunk(r.readBuf, min(remaining, r.cfg.readTimeout))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}

		acc = append(acc, r.readBuf[:n]...)
		i := bytes.IndexByte(acc, uhf.Header)
		if i < 0 {
			acc = acc[:0]
			continue
		}
		acc = acc[i:]

		if frameLen, ok := uhf.FrameLen(acc); ok && len(acc) >= frameLen {
			return acc[:frameLen], nil
		}
	}

	if len(acc) == 0 {
		return nil, ErrNoResponse
	}

	return acc, nil
}
