// Package pool keeps reusable timers for the bounded waits done by the reader.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer that fires after d. Return it with PutTimer.
func GetTimer(d time.Duration) *time.Timer {
	if v := timerPool.Get(); v != nil {
		t, _ := v.(*time.Timer)
		if t.Reset(d) {
			// the timer was still armed, drop a stale tick
			select {
			case <-t.C:
			default:
			}
		}

		return t
	}

	return time.NewTimer(d)
}

// PutTimer returns t to the pool. t must not be used afterwards.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}

// WaitDone waits until done is closed or d elapses. It reports whether done
// closed in time.
func WaitDone(done <-chan struct{}, d time.Duration) bool {
	t := GetTimer(d)
	defer PutTimer(t)

	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}
