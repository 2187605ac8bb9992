package memdev

import (
	"github.com/stretchr/testify/mock"
)

// MockDevice is a testify mock implementing every device capability.
type MockDevice struct {
	mock.Mock
}

var (
	_ Device         = (*MockDevice)(nil)
	_ Opener         = (*MockDevice)(nil)
	_ StatusReporter = (*MockDevice)(nil)
	_ SectorEraser   = (*MockDevice)(nil)
	_ EventNotifier  = (*MockDevice)(nil)
)

func NewMockDevice() *MockDevice {
	return &MockDevice{}
}

func (m *MockDevice) Read(h Handle, buf []byte, address uint32) error {
	args := m.Called(h, buf, address)
	return args.Error(0)
}

func (m *MockDevice) PageWrite(h Handle, data []byte, address uint32) error {
	args := m.Called(h, data, address)
	return args.Error(0)
}

func (m *MockDevice) TransferStatus(h Handle) TransferStatus {
	args := m.Called(h)
	return args.Get(0).(TransferStatus)
}

func (m *MockDevice) Geometry(h Handle) (Geometry, error) {
	args := m.Called(h)
	return args.Get(0).(Geometry), args.Error(1)
}

func (m *MockDevice) Open(intent Intent) (Handle, error) {
	args := m.Called(intent)
	return args.Get(0).(Handle), args.Error(1)
}

func (m *MockDevice) Status() Status {
	args := m.Called()
	return args.Get(0).(Status)
}

func (m *MockDevice) SectorErase(h Handle, address uint32) error {
	args := m.Called(h, address)
	return args.Error(0)
}

func (m *MockDevice) SetEventHandler(h Handle, fn EventHandler) {
	m.Called(h, fn)
}
