package reader

import "errors"

var (
	ErrAlreadyScanning = errors.New("reader: inventory already running")
	ErrNotScanning     = errors.New("reader: inventory not running")
	ErrScanning        = errors.New("reader: command refused while inventory is running")
	ErrNoResponse      = errors.New("reader: no response from reader")
	ErrNoTag           = errors.New("reader: no tag in response")
	ErrUnexpected      = errors.New("reader: unexpected response")
	ErrClosed          = errors.New("reader: reader closed")
	ErrTransportNil    = errors.New("reader: transport is nil")
	ErrScanAborted     = errors.New("reader: inventory loop ended unexpectedly")
)
