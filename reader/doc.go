// Package reader drives a UHF RFID reader module over a byte-stream transport.
//
// A Reader owns the transport. It offers one-shot commands (ReadOnce,
// WriteOnce, select and memory operations) and a continuous inventory: Start
// launches a background loop that reads tag notifications, keeps one entry per
// distinct EPC and queues it for Drain. Stop ends the inventory.
//
// All transport I/O is serialised by a single lock, so the inventory loop and
// command callers never interleave bytes on the wire. One-shot commands are
// refused with ErrScanning while an inventory runs.
//
// # Transport contract
//
// Reads must return within a bounded time when no data is pending. Transports
// that implement SetReadDeadline (net.Conn, os.File) get a deadline before each
// read; others must time out on their own and report it as (0, nil) or an error
// whose Timeout method returns true.
package reader
