// Package task runs the reader's background loops and tracks their lifetime.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-uhf/internal/pool"
	"github.com/arloliu/go-uhf/logger"
)

// ErrStopped is returned when starting a task on a manager that was stopped
// and not yet waited for.
var ErrStopped = errors.New("task: manager already stopped")

// Func is one iteration of a looping task. Return false to end the loop.
type Func func() bool

// Manager starts goroutines that loop a Func until it returns false or the
// manager is stopped.
//
//	mgr := task.NewManager(ctx, logger)
//	_ = mgr.Start("inventoryLoop", func() bool {
//	    // ... one iteration ...
//	    return true
//	})
//	mgr.Stop()
//	mgr.WaitTimeout(time.Second)
type Manager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protects ctx and cancel
}

// NewManager creates a Manager whose tasks end when ctx is cancelled.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

func (mgr *Manager) context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start runs fn in a new goroutine, repeatedly, until it returns false or the
// manager is stopped. A panic inside fn is logged and ends the task. onExit,
// when not nil, runs after the loop ends.
func (mgr *Manager) Start(name string, fn Func, onExit func()) error {
	ctx := mgr.context()
	select {
	case <-ctx.Done():
		return ErrStopped
	default:
	}

	mgr.logger.Debug("start task", "name", name)

	mgr.wg.Add(1)
	mgr.count.Add(1)
	go func() {
		defer mgr.wg.Done()
		defer func() {
			mgr.count.Add(-1)
			mgr.logger.Debug(fmt.Sprintf("%s task terminated", name), "task_count", mgr.Count())
		}()
		if onExit != nil {
			defer onExit()
		}

		mgr.loop(ctx, name, fn)
	}()

	return nil
}

func (mgr *Manager) loop(ctx context.Context, name string, fn Func) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task loop", "name", name, "panic", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if !fn() {
				return
			}
		}
	}
}

// Stop signals every running task to end after its current iteration.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.cancel != nil {
		mgr.cancel()
	}
}

// Wait blocks until every task has ended, then re-arms the manager so new
// tasks can be started.
func (mgr *Manager) Wait() {
	mgr.wg.Wait()
	mgr.rearm()
}

// WaitTimeout is Wait bounded by d. It reports whether all tasks ended in
// time; the manager is only re-armed when they did.
func (mgr *Manager) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		mgr.wg.Wait()
		close(done)
	}()

	if !pool.WaitDone(done, d) {
		return false
	}
	mgr.rearm()

	return true
}

func (mgr *Manager) rearm() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.ctx.Err() != nil {
		mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	}
}

// Count returns the number of running tasks.
func (mgr *Manager) Count() int {
	return int(mgr.count.Load())
}
