// Package task runs and tracks the goroutines started by the driver.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-memdrv/logger"
)

// ErrStopped is returned when a task is started on a stopped Manager.
var ErrStopped = errors.New("task manager already stopped")

// Func is the body of a task. The context is cancelled when the Manager is stopped.
type Func func(ctx context.Context)

// Manager manages the lifecycle of goroutines started on behalf of a driver.
//
// Tasks are started with Go, signalled to terminate with Stop and awaited with
// Wait. A panicking task is recovered and logged so that it can't take down the
// process hosting the driver.
//
//	mgr := task.NewManager(ctx, logger)
//	_ = mgr.Go("xfer", func(ctx context.Context) {
//	    // ... run until done or ctx is cancelled ...
//	})
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protect ctx and cancel
	taskMu sync.RWMutex // protect task creation during Wait
}

// NewManager creates a Manager that uses ctx as the parent of all task contexts.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context shared by the running tasks.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Go starts fn in a new goroutine.
//
// It returns ErrStopped, without running fn, when the Manager was stopped.
func (mgr *Manager) Go(name string, fn Func) error {
	mgr.taskMu.RLock()
	defer mgr.taskMu.RUnlock()

	ctx := mgr.Context()
	select {
	case <-ctx.Done():
		return fmt.Errorf("start %s: %w", name, ErrStopped)
	default:
	}

	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer func() {
			mgr.count.Add(-1)
			mgr.wg.Done()
		}()

		mgr.callWithRecover(name, func() { fn(ctx) })
	}()

	return nil
}

// callWithRecover calls a function with panic protection.
func (mgr *Manager) callWithRecover(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
		}
	}()

	fn()
}

// Stop signals all running tasks to terminate.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.cancel != nil {
		mgr.cancel()
	}
}

// Wait waits for all tasks to terminate, then re-arms the Manager so that new
// tasks can be started.
func (mgr *Manager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

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
