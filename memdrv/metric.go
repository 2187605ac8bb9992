package memdrv

import "sync/atomic"

// InstanceMetrics contains atomic metrics of a driver instance.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type InstanceMetrics struct {
	// ReadCount indicates the number of device reads issued.
	ReadCount atomic.Uint64
	// PageWriteCount indicates the number of device page writes issued.
	PageWriteCount atomic.Uint64
	// SectorEraseCount indicates the number of device sector erases issued.
	SectorEraseCount atomic.Uint64
	// RMWCycleCount indicates the number of partial sectors preserved by read-modify-write.
	RMWCycleCount atomic.Uint64

	// CommandCompleteCount indicates the number of commands completed.
	CommandCompleteCount atomic.Uint64
	// CommandErrorCount indicates the number of commands finished with an error.
	CommandErrorCount atomic.Uint64
	// SequencerAbortCount indicates the number of commands abandoned because a wait failed.
	SequencerAbortCount atomic.Uint64

	// PollWaitCount indicates the number of poll interval waits.
	PollWaitCount atomic.Uint64
	// EventWaitCount indicates the number of waits for a device event.
	EventWaitCount atomic.Uint64
}

func (m *InstanceMetrics) incReadCount()            { m.ReadCount.Add(1) }
func (m *InstanceMetrics) incPageWriteCount()       { m.PageWriteCount.Add(1) }
func (m *InstanceMetrics) incSectorEraseCount()     { m.SectorEraseCount.Add(1) }
func (m *InstanceMetrics) incRMWCycleCount()        { m.RMWCycleCount.Add(1) }
func (m *InstanceMetrics) incCommandCompleteCount() { m.CommandCompleteCount.Add(1) }
func (m *InstanceMetrics) incCommandErrorCount()    { m.CommandErrorCount.Add(1) }
func (m *InstanceMetrics) incSequencerAbortCount()  { m.SequencerAbortCount.Add(1) }
func (m *InstanceMetrics) incPollWaitCount()        { m.PollWaitCount.Add(1) }
func (m *InstanceMetrics) incEventWaitCount()       { m.EventWaitCount.Add(1) }
