package memdrv

import (
	"sync/atomic"

	"github.com/arloliu/go-memdrv/memdev"
)

// Status is the readiness of a driver instance.
type Status = memdev.Status

const (
	StatusUninitialized = memdev.StatusUninitialized
	StatusBusy          = memdev.StatusBusy
	StatusReady         = memdev.StatusReady
	StatusError         = memdev.StatusError
)

// atomicStatus holds an instance Status.
//
// An instance starts Busy on Initialize, moves to Ready once the device geometry
// is known and to Uninitialized on Deinitialize.
type atomicStatus struct {
	v atomic.Int32
}

func (st *atomicStatus) String() string {
	return st.Get().String()
}

// Get returns the current status.
func (st *atomicStatus) Get() Status {
	return Status(st.v.Load()) //nolint:gosec
}

// Set sets the status to s.
func (st *atomicStatus) Set(s Status) {
	st.v.Store(int32(s))
}

func (st *atomicStatus) IsReady() bool {
	return st.Get() == StatusReady
}

// ToReady moves the status from Busy to Ready.
func (st *atomicStatus) ToReady() bool {
	if st.IsReady() {
		return true
	}

	return st.v.CompareAndSwap(int32(StatusBusy), int32(StatusReady))
}

// ToError moves the status from Busy to Error.
func (st *atomicStatus) ToError() bool {
	return st.v.CompareAndSwap(int32(StatusBusy), int32(StatusError))
}
