package reader

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-uhf/epc"
	"github.com/arloliu/go-uhf/internal/queue"
	"github.com/arloliu/go-uhf/internal/task"
	"github.com/arloliu/go-uhf/logger"
	"github.com/arloliu/go-uhf/uhf"
	"github.com/puzpuzpuz/xsync/v3"
)

// Reader is a UHF RFID reader attached to a transport.
//
// It is safe for concurrent use. Create one Reader per physical reader and
// share it among its callers.
type Reader struct {
	ctx       context.Context
	cfg       *Config
	transport Transport
	logger    logger.Logger
	metrics   Metrics
	state     *stateMgr
	taskMgr   *task.Manager

	// mu serialises transport I/O and scan start/stop.
	mu      sync.Mutex
	readBuf []byte

	scanning  atomic.Bool
	scanStop  chan struct{}
	writeTmpl *epc.Record

	seen       *xsync.MapOf[string, time.Time]
	discovered queue.Queue[*Discovery]

	lastErr atomic.Pointer[scanError]
	closed  atomic.Bool
}

type scanError struct{ err error }

// New creates a Reader that talks over t. ctx bounds the lifetime of the
// inventory loop.
func New(ctx context.Context, t Transport, cfg *Config) (*Reader, error) {
	if t == nil {
		return nil, ErrTransportNil
	}
	if cfg == nil {
		var err error
		if cfg, err = NewConfig(); err != nil {
			return nil, err
		}
	}

	l := cfg.logger.With("layout", cfg.layout.Name())
	r := &Reader{
		ctx:        ctx,
		cfg:        cfg,
		transport:  t,
		logger:     l,
		state:      newStateMgr(),
		taskMgr:    task.NewManager(ctx, l),
		readBuf:    make([]byte, cfg.readBufferSize),
		seen:       xsync.NewMapOf[string, time.Time](),
		discovered: queue.NewLockFreeQueue[*Discovery](),
	}

	return r, nil
}

// Config returns the reader configuration.
func (r *Reader) Config() *Config { return r.cfg }

// Layout returns the EPC layout of the reader firmware.
func (r *Reader) Layout() epc.Layout { return r.cfg.layout }

// Metrics returns the reader counters.
func (r *Reader) Metrics() *Metrics { return &r.metrics }

// State returns the current inventory state.
func (r *Reader) State() ScanState { return r.state.State() }

// AddStateChangeHandler registers handlers for inventory state changes.
func (r *Reader) AddStateChangeHandler(handlers ...StateChangeHandler) {
	r.state.AddHandler(handlers...)
}

// LastError returns the error that ended the most recent inventory without a
// Stop, such as a transport failure or the cancellation of the context given
// to New. It is nil otherwise.
func (r *Reader) LastError() error {
	if e := r.lastErr.Load(); e != nil {
		return e.err
	}

	return nil
}

// Close stops a running inventory and closes the transport when it
// implements io.Closer.
func (r *Reader) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	if r.scanning.Load() {
		if err := r.Stop(context.Background()); err != nil && !errors.Is(err, ErrNotScanning) {
			r.logger.Warn("reader: stop inventory on close", "error", err)
		}
	}
	r.taskMgr.Stop()

	if c, ok := r.transport.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

// ReadOnce polls for a single tag and decodes its EPC.
//
// When the EPC does not decode with the reader's layout, the returned
// Discovery still carries the raw EPC and the *epc.ParseError is returned
// alongside it.
func (r *Reader) ReadOnce(ctx context.Context) (*Discovery, error) {
	resps, err := r.exchange(ctx, "read tag", uhf.ReadTag())
	if err != nil {
		return nil, err
	}

	for _, resp := range resps {
		switch v := resp.(type) {
		case *uhf.TagData:
			r.metrics.incTagReadCount()
			d := r.newDiscovery(v, time.Now())
			if d.ParseErr != nil {
				return d, fmt.Errorf("reader: read tag: %w", d.ParseErr)
			}

			return d, nil
		case *uhf.Ack:
			if err := v.Err(); err != nil {
				r.metrics.incAckErrCount()
				return nil, fmt.Errorf("reader: read tag: %w", err)
			}
		}
	}

	return nil, ErrNoTag
}

// WriteResult is the outcome of a successful WriteOnce.
type WriteResult struct {
	Record epc.Record `json:"record"`
	// EPC is the hex written to the tag.
	EPC string `json:"epc"`
}

// WriteOnce writes rec to the EPC of the tag in the field.
func (r *Reader) WriteOnce(ctx context.Context, rec epc.Record) (*WriteResult, error) {
	epcHex, err := epc.Format(r.cfg.layout, rec)
	if err != nil {
		return nil, err
	}
	frame, err := uhf.WriteTag(r.cfg.layout, rec)
	if err != nil {
		return nil, err
	}

	resps, err := r.exchange(ctx, "write tag", frame)
	if err != nil {
		return nil, err
	}
	if _, err := r.expectAck(resps, uhf.CmdWriteData); err != nil {
		return nil, fmt.Errorf("reader: write tag: %w", err)
	}
	r.metrics.incTagWriteCount()
	r.logger.Info("reader: tag written", "epc", epcHex)

	rec.TagID = strings.ToUpper(rec.TagID)
	rec.ProductID = strings.ToUpper(rec.ProductID)

	return &WriteResult{Record: rec, EPC: epcHex}, nil
}

// GetSelectParam queries the select parameters and returns the raw response
// payload.
func (r *Reader) GetSelectParam(ctx context.Context) ([]byte, error) {
	resps, err := r.exchange(ctx, "get select", uhf.GetSelectParam())
	if err != nil {
		return nil, err
	}

	ack, err := r.expectAck(resps, uhf.CmdGetSelect)
	if err != nil {
		return nil, fmt.Errorf("reader: get select: %w", err)
	}

	return ack.Payload, nil
}

// SetSelectParam configures tag selection.
func (r *Reader) SetSelectParam(ctx context.Context, p uhf.SelectParam) error {
	frame, err := uhf.SetSelectParam(p)
	if err != nil {
		return err
	}

	return r.command(ctx, "set select", frame, uhf.CmdSetSelect)
}

// SetSelectMode sets when the select parameters apply.
func (r *Reader) SetSelectMode(ctx context.Context, mode uhf.SelectMode) error {
	frame, err := uhf.SetSelectMode(mode)
	if err != nil {
		return err
	}

	return r.command(ctx, "set select mode", frame, uhf.CmdSetSelectMode)
}

// WriteMemory writes words to a tag memory bank.
func (r *Reader) WriteMemory(ctx context.Context, req uhf.WriteMemoryRequest) error {
	frame, err := uhf.WriteMemory(req)
	if err != nil {
		return err
	}

	return r.command(ctx, "write memory", frame, uhf.CmdWriteData)
}

// LockMemory applies a lock payload to the tag in the field.
func (r *Reader) LockMemory(ctx context.Context, req uhf.LockRequest) error {
	return r.command(ctx, "lock memory", uhf.LockMemory(req), uhf.CmdLock)
}

func (r *Reader) command(ctx context.Context, op string, frame []byte, cmd byte) error {
	resps, err := r.exchange(ctx, op, frame)
	if err != nil {
		return err
	}
	if _, err := r.expectAck(resps, cmd); err != nil {
		return fmt.Errorf("reader: %s: %w", op, err)
	}

	return nil
}

// exchange sends one command frame and decodes the reply.
func (r *Reader) exchange(ctx context.Context, op string, frame []byte) ([]uhf.Response, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scanning.Load() {
		return nil, ErrScanning
	}

	r.flushInput()

	if err := r.writeFrame(frame); err != nil {
		return nil, fmt.Errorf("reader: %s: send: %w", op, err)
	}

	raw, err := r.collectResponse(ctx)
	if err != nil {
		return nil, fmt.Errorf("reader: %s: %w", op, err)
	}
	r.logger.Debug("reader: response received", "op", op, "frame", hexString(raw))

	resps, err := uhf.DecodeBatch(raw)
	if err != nil {
		r.metrics.incFramingErrCount()
		if len(resps) == 0 {
			return nil, fmt.Errorf("reader: %s: %w", op, err)
		}
		r.logger.Debug("reader: partially malformed response", "op", op, "error", err)
	}

	return resps, nil
}

// expectAck returns the first acknowledgement in resps. An error response is
// returned as its *uhf.AckError.
func (r *Reader) expectAck(resps []uhf.Response, cmd byte) (*uhf.Ack, error) {
	for _, resp := range resps {
		ack, ok := resp.(*uhf.Ack)
		if !ok {
			continue
		}
		if err := ack.Err(); err != nil {
			r.metrics.incAckErrCount()
			return nil, err
		}
		if ack.Command != cmd {
			return nil, fmt.Errorf("%w: command 0x%02X, want 0x%02X", ErrUnexpected, ack.Command, cmd)
		}

		return ack, nil
	}

	return nil, fmt.Errorf("%w: no acknowledgement", ErrUnexpected)
}

func hexString(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}
