package reader

import (
	"sync/atomic"
)

// Metrics contains atomic counters for a Reader.
// Each field can back a prometheus CounterFunc.
type Metrics struct {
	// FrameSendCount is the number of frames written to the transport.
	FrameSendCount atomic.Uint64
	// ReadCount is the number of transport reads that returned data.
	ReadCount atomic.Uint64
	// FramingErrCount is the number of discarded malformed frames.
	FramingErrCount atomic.Uint64
	// AckErrCount is the number of error responses from the reader.
	AckErrCount atomic.Uint64
	// TagReadCount is the number of tag notifications, duplicates included.
	TagReadCount atomic.Uint64
	// UniqueTagCount is the number of distinct EPCs discovered by inventories.
	UniqueTagCount atomic.Uint64
	// ParseErrCount is the number of EPCs that did not decode with the layout.
	ParseErrCount atomic.Uint64
	// TagWriteCount is the number of EPC writes confirmed by the reader.
	TagWriteCount atomic.Uint64
	// ScanCount is the number of inventories started.
	ScanCount atomic.Uint64
	// TransportErrCount is the number of failed transport reads or writes.
	TransportErrCount atomic.Uint64
}

func (m *Metrics) incFrameSendCount()    { m.FrameSendCount.Add(1) }
func (m *Metrics) incReadCount()         { m.ReadCount.Add(1) }
func (m *Metrics) incFramingErrCount()   { m.FramingErrCount.Add(1) }
func (m *Metrics) incAckErrCount()       { m.AckErrCount.Add(1) }
func (m *Metrics) incTagReadCount()      { m.TagReadCount.Add(1) }
func (m *Metrics) incUniqueTagCount()    { m.UniqueTagCount.Add(1) }
func (m *Metrics) incParseErrCount()     { m.ParseErrCount.Add(1) }
func (m *Metrics) incTagWriteCount()     { m.TagWriteCount.Add(1) }
func (m *Metrics) incScanCount()         { m.ScanCount.Add(1) }
func (m *Metrics) incTransportErrCount() { m.TransportErrCount.Add(1) }
