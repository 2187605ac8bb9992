// Package pool holds reusable objects shared by the driver internals.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer armed for duration d, reusing a pooled timer when available.
//
// Return the timer to the pool with PutTimer once it fired or is no longer needed.
func GetTimer(d time.Duration) *time.Timer {
	if v := timerPool.Get(); v != nil {
		t, _ := v.(*time.Timer) // only *time.Timer values are put into the pool
		if t.Reset(d) {
			// the timer was still active, drop a stale expiry
			select {
			case <-t.C:
			default:
			}
		}
		return t
	}
	return time.NewTimer(d)
}

// PutTimer stops t and returns it to the pool.
//
// t cannot be accessed after returning to the pool.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		// drain t.C if the expiry was not consumed by the caller
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}
