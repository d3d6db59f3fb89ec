package telemetry_test

import (
	"sync"
	"testing"

	"github.com/drims/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewProfiler_Disabled(t *testing.T) {
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         false,
		ServerAddress:   "http://localhost:4040",
		ApplicationName: "drims",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, profiler.IsEnabled())
	assert.NoError(t, profiler.Stop())
}

func TestNewProfiler_RequiresAddressAndName(t *testing.T) {
	tests := []struct {
		name    string
		cfg     telemetry.ProfilerConfig
		message string
	}{
		{"missing address", telemetry.ProfilerConfig{Enabled: true, ApplicationName: "drims"}, "server address is required"},
		{"missing name", telemetry.ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, "application name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiler, err := telemetry.NewProfiler(tt.cfg, zaptest.NewLogger(t))
			require.Error(t, err)
			assert.Nil(t, profiler)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestProfiler_StopConcurrent(t *testing.T) {
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, profiler.Stop())
		}()
	}
	wg.Wait()
}
