package memdrv

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-memdrv/logger"
)

func TestInstanceOptions(t *testing.T) {
	tests := []struct {
		name    string
		opt     InstanceOption
		wantErr bool
	}{
		{"polled", WithPolled(time.Millisecond), false},
		{"polled too fast", WithPolled(time.Microsecond), true},
		{"polled too slow", WithPolled(time.Minute), true},
		{"event-driven", WithEventDriven(), false},
		{"clients max", WithClientsMax(MaxClients), false},
		{"clients max zero", WithClientsMax(0), true},
		{"clients max too big", WithClientsMax(MaxClients + 1), true},
		{"scratch", WithScratchBuffer(make([]byte, 16)), false},
		{"empty scratch", WithScratchBuffer(nil), true},
		{"nil logger", WithLogger(nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newInstanceConfig(testLogger(), tt.opt)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	cfg, err := newInstanceConfig(testLogger())
	require.NoError(t, err)
	assert.Equal(t, Polled(DefaultPollInterval), cfg.signaling)
	assert.Equal(t, DefaultClientsMax, cfg.clientsMax)
}

func TestSignaling(t *testing.T) {
	s := Polled(2 * time.Millisecond)
	assert.True(t, s.IsPolled())
	assert.Equal(t, 2*time.Millisecond, s.Interval())
	assert.Equal(t, "polled(2ms)", s.String())

	e := EventDriven()
	assert.False(t, e.IsPolled())
	assert.Zero(t, e.Interval())
	assert.Equal(t, "event-driven", e.String())
}

const testConfig = `
max_instances: 3
log_level: debug
instances:
  - index: 0
    clients_max: 2
    signaling: poll
    poll_interval: 250us
  - index: 2
    signaling: event
`

func TestParseConfig(t *testing.T) {
	require := require.New(t)

	cfg, err := ParseConfig([]byte(testConfig))
	require.NoError(err)
	require.Equal(3, cfg.MaxInstances)
	require.Equal(logger.DebugLevel, cfg.Level())
	require.Len(cfg.Instances, 2)
	require.Equal(250*time.Microsecond, cfg.Instances[0].PollInterval)

	opts, err := cfg.InstanceOptions(0)
	require.NoError(err)
	ic, err := newInstanceConfig(testLogger(), opts...)
	require.NoError(err)
	require.Equal(Polled(250*time.Microsecond), ic.signaling)
	require.Equal(2, ic.clientsMax)

	opts, err = cfg.InstanceOptions(2)
	require.NoError(err)
	ic, err = newInstanceConfig(testLogger(), opts...)
	require.NoError(err)
	require.Equal(EventDriven(), ic.signaling)
	require.Equal(DefaultClientsMax, ic.clientsMax)

	_, err = cfg.InstanceOptions(1)
	require.ErrorIs(err, ErrInvalidInstance)

	drv, err := New(append(cfg.DriverOptions(), WithDriverLogger(testLogger()))...)
	require.NoError(err)
	defer drv.Shutdown()
	require.Len(drv.instances, 3)
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("instances:\n  - index: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxInstances, cfg.MaxInstances)
	assert.Equal(t, logger.InfoLevel, cfg.Level())

	opts, err := cfg.InstanceOptions(1)
	require.NoError(t, err)
	ic, err := newInstanceConfig(testLogger(), opts...)
	require.NoError(t, err)
	assert.Equal(t, Polled(DefaultPollInterval), ic.signaling)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "max_instance: 2\n"},
		{"bad yaml", "instances: [\n"},
		{"too many instances", "max_instances: 300\n"},
		{"negative instances", "max_instances: -1\n"},
		{"bad log level", "log_level: loud\n"},
		{"index out of range", "instances:\n  - index: 2\n"},
		{"duplicated index", "instances:\n  - index: 0\n  - index: 0\n"},
		{"bad signaling", "instances:\n  - index: 0\n    signaling: irq\n"},
		{"bad interval", "instances:\n  - index: 0\n    poll_interval: 1ns\n"},
		{"interval for events", "instances:\n  - index: 0\n    signaling: event\n    poll_interval: 1ms\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memdrv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxInstances)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
