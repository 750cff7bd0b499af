package reader

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-uhf/epc"
	"github.com/arloliu/go-uhf/internal/pool"
	"github.com/arloliu/go-uhf/uhf"
)

// Discovery is one distinct tag seen by an inventory or a single read.
type Discovery struct {
	// Key is the uppercase hex EPC that identifies the tag.
	Key string `json:"key"`
	// Raw is the uppercase hex of the layout window the record was decoded from.
	Raw  string `json:"raw"`
	RSSI int8   `json:"rssi"`
	// Record is valid when ParseErr is nil.
	Record   epc.Record `json:"record"`
	ParseErr error      `json:"-"`
	// Written is the record sent to the tag by a write inventory.
	Written  *epc.Record `json:"written,omitempty"`
	WriteErr error       `json:"-"`
	SeenAt   time.Time   `json:"seen_at"`
}

// Stats summarises the current inventory.
type Stats struct {
	State  ScanState `json:"-"`
	Unique int       `json:"unique"`
	Queued int       `json:"queued"`
}

// Start begins a continuous or counted inventory, depending on the
// configured scan mode. It returns ErrAlreadyScanning when one is running.
//
// The set of seen EPCs and the discovery queue are reset on every start.
func (r *Reader) Start() error {
	return r.startScan(nil)
}

// StartWriting begins an inventory that writes tmpl to every new tag it
// discovers. Each tag gets a fresh random tag id unless tmpl sets one.
func (r *Reader) StartWriting(tmpl epc.Record) error {
	probe := tmpl
	if probe.TagID == "" {
		probe.TagID = epc.NewTagID(r.cfg.layout)
	}
	if _, err := epc.Format(r.cfg.layout, probe); err != nil {
		return err
	}

	return r.startScan(&tmpl)
}

func (r *Reader) startScan(tmpl *epc.Record) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := r.ctx.Err(); err != nil {
		return fmt.Errorf("reader: start inventory: %w", err)
	}

	r.mu.Lock()
	if r.scanning.Load() {
		r.mu.Unlock()
		return ErrAlreadyScanning
	}

	r.seen.Clear()
	r.discovered.Drain()
	r.lastErr.Store(nil)

	frame := uhf.StartInventory()
	if r.cfg.scanMode == CountedScan {
		frame = uhf.StartInventoryCount(r.cfg.scanCount)
	}
	if err := r.writeFrame(frame); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("reader: start inventory: %w", err)
	}

	stopCh := make(chan struct{})
	r.scanStop = stopCh
	r.writeTmpl = tmpl
	r.scanning.Store(true)
	r.metrics.incScanCount()
	r.state.set(ScanningState)
	r.mu.Unlock()

	r.logger.Info("reader: inventory started", "mode", r.cfg.scanMode, "write", tmpl != nil)

	err := r.taskMgr.Start("inventoryLoop", func() bool {
		return r.inventoryStep(stopCh)
	}, func() {
		r.loopExited(stopCh)
	})
	if err != nil {
		r.mu.Lock()
		if r.scanStop == stopCh && r.scanning.Load() {
			r.scanning.Store(false)
			r.writeTmpl = nil
			_ = r.writeFrame(uhf.StopInventory())
			r.state.set(IdleState)
		}
		r.mu.Unlock()

		return fmt.Errorf("reader: start inventory: %w", err)
	}

	return nil
}

// Stop ends the running inventory. It sends the stop command and waits for
// the loop to exit, up to the join timeout or the deadline of ctx, whichever
// is sooner. A loop that does not exit in time is left to finish on its own.
func (r *Reader) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.scanning.Load() {
		r.mu.Unlock()
		return ErrNotScanning
	}

	r.scanning.Store(false)
	r.writeTmpl = nil
	err := r.writeFrame(uhf.StopInventory())
	close(r.scanStop)
	r.state.set(IdleState)
	r.mu.Unlock()

	wait := r.cfg.joinTimeout
	if deadline, ok := ctx.Deadline(); ok {
		wait = min(wait, time.Until(deadline))
	}
	if !r.taskMgr.WaitTimeout(wait) {
		r.logger.Warn("reader: inventory loop did not exit in time", "timeout", wait)
	}

	if err != nil {
		return fmt.Errorf("reader: stop inventory: %w", err)
	}
	r.logger.Info("reader: inventory stopped", "unique", r.seen.Size())

	return nil
}

// Drain removes and returns every discovery queued since the last Drain, in
// discovery order. It never waits for the inventory loop.
func (r *Reader) Drain() []*Discovery {
	return r.discovered.Drain()
}

// Stats returns a snapshot of the current inventory.
func (r *Reader) Stats() Stats {
	return Stats{
		State:  r.State(),
		Unique: r.seen.Size(),
		Queued: r.discovered.Length(),
	}
}

// inventoryStep runs one iteration of the inventory loop: one bounded read,
// then a pause. It returns false to end the loop.
func (r *Reader) inventoryStep(stopCh chan struct{}) bool {
	select {
	case <-stopCh:
		return false
	default:
	}

	if !r.readStep(stopCh) {
		return false
	}

	if r.cfg.pollInterval <= 0 {
		return true
	}

	t := pool.GetTimer(r.cfg.pollInterval)
	defer pool.PutTimer(t)
	select {
	case <-stopCh:
		return false
	case <-t.C:
		return true
	}
}

func (r *Reader) readStep(stopCh chan struct{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.readChunk(r.readBuf, r.cfg.readTimeout)
	if err != nil {
		r.failScan(stopCh, err)
		return false
	}
	// bytes read while Stop was pending are still processed, unless a newer
	// inventory has already taken over
	if n > 0 && r.scanStop == stopCh {
		r.handleChunk(r.readBuf[:n])
	}

	return true
}

// failScan ends the inventory after a transport error. The caller must hold
// r.mu.
func (r *Reader) failScan(stopCh chan struct{}, err error) {
	if r.scanStop != stopCh || !r.scanning.Load() {
		return
	}
	r.scanning.Store(false)
	r.writeTmpl = nil
	r.lastErr.Store(&scanError{err: err})
	r.state.set(IdleState)
	r.logger.Error("reader: inventory aborted", "error", err)
}

// loopExited runs when the loop started with stopCh ends. A loop that ends
// while it still owns the inventory was cut short by the reader context or
// a panic; the inventory is marked idle and the reader told to stop polling.
func (r *Reader) loopExited(stopCh chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scanStop != stopCh || !r.scanning.Load() {
		return
	}

	cause := context.Cause(r.ctx)
	if cause == nil {
		cause = ErrScanAborted
	}
	r.scanning.Store(false)
	r.writeTmpl = nil
	r.lastErr.Store(&scanError{err: cause})
	if err := r.writeFrame(uhf.StopInventory()); err != nil {
		r.logger.Debug("reader: stop inventory after loop exit", "error", err)
	}
	r.state.set(IdleState)
	r.logger.Warn("reader: inventory loop ended", "error", cause)
}

// handleChunk decodes one read buffer and records the tags in it. The caller
// must hold r.mu.
func (r *Reader) handleChunk(chunk []byte) {
	resps, err := uhf.DecodeBatch(chunk)
	if err != nil {
		r.metrics.incFramingErrCount()
		r.logger.Debug("reader: discard malformed frame", "error", err, "raw", hexString(chunk))
	}

	now := time.Now()
	for _, resp := range resps {
		switch v := resp.(type) {
		case *uhf.TagData:
			r.metrics.incTagReadCount()
			r.recordTag(v, now)
		case *uhf.Ack:
			r.handleAck(v)
		}
	}
}

func (r *Reader) handleAck(ack *uhf.Ack) {
	if err := ack.Err(); err != nil {
		r.metrics.incAckErrCount()
		r.logger.Debug("reader: error response during inventory", "error", err)

		return
	}

	if ack.Command == uhf.CmdWriteData {
		r.metrics.incTagWriteCount()
		r.logger.Info("reader: tag written during inventory")
	}
}

// recordTag queues a Discovery for the first sighting of an EPC. The caller
// must hold r.mu.
func (r *Reader) recordTag(tag *uhf.TagData, now time.Time) {
	key := tag.Key()
	if _, loaded := r.seen.LoadOrStore(key, now); loaded {
		return
	}
	r.metrics.incUniqueTagCount()

	d := r.newDiscovery(tag, now)
	if tmpl := r.writeTmpl; tmpl != nil {
		r.writeDiscovered(d, *tmpl)
	}

	r.logger.Debug("reader: tag discovered", "epc", key, "rssi", tag.RSSI)
	r.discovered.Enqueue(d)
}

// writeDiscovered sends tmpl to the tag just discovered. The reader's reply
// arrives later in the inventory stream. The caller must hold r.mu.
func (r *Reader) writeDiscovered(d *Discovery, tmpl epc.Record) {
	rec := tmpl
	if rec.TagID == "" {
		rec.TagID = epc.NewTagID(r.cfg.layout)
	}

	frame, err := uhf.WriteTag(r.cfg.layout, rec)
	if err != nil {
		d.WriteErr = err
		return
	}
	if err := r.writeFrame(frame); err != nil {
		d.WriteErr = err
		return
	}
	d.Written = &rec

	// the rewritten tag reports its new EPC; keep it from being written again
	if written, err := epc.FormatBytes(r.cfg.layout, rec); err == nil {
		r.seen.Store(hexString(written), d.SeenAt)
	}
}

func (r *Reader) newDiscovery(tag *uhf.TagData, now time.Time) *Discovery {
	d := &Discovery{
		Key:    tag.Key(),
		Raw:    hexString(tag.Window(r.cfg.layout)),
		RSSI:   tag.RSSI,
		SeenAt: now,
	}

	d.Record, d.ParseErr = tag.Record(r.cfg.layout)
	if d.ParseErr != nil {
		r.metrics.incParseErrCount()
		r.logger.Warn("reader: undecodable epc", "epc", d.Key, "raw", d.Raw, "error", d.ParseErr)
	}

	return d
}
