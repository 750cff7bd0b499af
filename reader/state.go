package reader

import (
	"sync"
	"sync/atomic"
)

// ScanState is the inventory state of a Reader.
type ScanState uint32

const (
	// IdleState means no inventory is running.
	IdleState ScanState = iota
	// ScanningState means the inventory loop is running.
	ScanningState
)

// IsIdle returns if the reader is idle.
func (s ScanState) IsIdle() bool { return s == IdleState }

// IsScanning returns if an inventory is running.
func (s ScanState) IsScanning() bool { return s == ScanningState }

// String returns string representation of the state.
func (s ScanState) String() string {
	switch s {
	case IdleState:
		return "idle"
	case ScanningState:
		return "scanning"
	default:
		return "unknown"
	}
}

// StateChangeHandler is invoked when the inventory state changes.
//
// Note: the handler is invoked synchronously, with the reader's I/O lock held,
// by the goroutine that caused the change, which may be the inventory loop.
// It must not call Reader methods that start, stop or send commands.
type StateChangeHandler func(prevState ScanState, newState ScanState)

// stateMgr tracks the scan state and notifies handlers of transitions.
type stateMgr struct {
	mu       sync.Mutex
	state    atomic.Uint32
	handlers []StateChangeHandler
}

func newStateMgr() *stateMgr {
	mgr := &stateMgr{}
	mgr.state.Store(uint32(IdleState))

	return mgr
}

func (mgr *stateMgr) State() ScanState {
	return ScanState(mgr.state.Load())
}

func (mgr *stateMgr) AddHandler(handlers ...StateChangeHandler) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	mgr.handlers = append(mgr.handlers, handlers...)
}

// set stores the new state and runs the handlers when it differs from the
// previous one.
func (mgr *stateMgr) set(newState ScanState) {
	prevState := ScanState(mgr.state.Swap(uint32(newState)))
	if prevState == newState {
		return
	}

	mgr.mu.Lock()
	handlers := make([]StateChangeHandler, len(mgr.handlers))
	copy(handlers, mgr.handlers)
	mgr.mu.Unlock()

	for _, h := range handlers {
		h(prevState, newState)
	}
}
