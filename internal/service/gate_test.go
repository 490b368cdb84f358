package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/apiwatch/apiwatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	count    int64
	err      error
	gotSince time.Time
}

func (f *fakeCounter) CountLimiterRejections(_ context.Context, _, _ string, since time.Time) (int64, error) {
	f.gotSince = since
	return f.count, f.err
}

func baseConfig() *model.RouteConfig {
	return &model.RouteConfig{
		APIKey:     "key-1",
		Path:       "/orders",
		Tracer:     true,
		ApiEnabled: false,
	}
}

func localTime(hour, min int) time.Time {
	return time.Date(2025, 6, 10, hour, min, 0, 0, time.Local)
}

func TestGatePersistsByDefault(t *testing.T) {
	gate := NewGate(&fakeCounter{})

	dec, err := gate.Evaluate(context.Background(), baseConfig(), localTime(12, 0))
	require.NoError(t, err)
	assert.Equal(t, ActionPersist, dec.Action)
}

func TestGateTracerOff(t *testing.T) {
	cfg := baseConfig()
	cfg.Tracer = false
	gate := NewGate(&fakeCounter{})

	dec, err := gate.Evaluate(context.Background(), cfg, localTime(12, 0))
	require.NoError(t, err)
	assert.Equal(t, ActionReject, dec.Action)
	assert.Equal(t, model.EventTypeTracking, dec.Kind)
	assert.Equal(t, http.StatusBadRequest, dec.Status)
	assert.Equal(t, "API tracking is turned off", dec.Message)
}

func TestGateRouteDisabled(t *testing.T) {
	cfg := baseConfig()
	cfg.ApiEnabled = true
	gate := NewGate(&fakeCounter{})

	dec, err := gate.Evaluate(context.Background(), cfg, localTime(12, 0))
	require.NoError(t, err)
	assert.Equal(t, ActionReject, dec.Action)
	assert.Equal(t, model.EventTypeAPIDisabled, dec.Kind)
	assert.Equal(t, http.StatusForbidden, dec.Status)
}

// Tracer-off must win when both flags would reject: the route-disabled check
// never runs.
func TestGateTracerOffWinsOverDisabled(t *testing.T) {
	cfg := baseConfig()
	cfg.Tracer = false
	cfg.ApiEnabled = true
	gate := NewGate(&fakeCounter{})

	dec, err := gate.Evaluate(context.Background(), cfg, localTime(12, 0))
	require.NoError(t, err)
	assert.Equal(t, model.EventTypeTracking, dec.Kind)
}

func TestGateScheduleWindow(t *testing.T) {
	cfg := baseConfig()
	cfg.Scheduling = model.Scheduling{Enabled: true, StartTime: "09:00", EndTime: "17:00"}
	gate := NewGate(&fakeCounter{})

	cases := []struct {
		name     string
		now      time.Time
		rejected bool
	}{
		{"just before open", localTime(8, 59), true},
		{"at open", localTime(9, 0), false},
		{"mid window", localTime(16, 59), false},
		{"at close", localTime(17, 0), false},
		{"after close", localTime(17, 1), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dec, err := gate.Evaluate(context.Background(), cfg, tc.now)
			require.NoError(t, err)
			if tc.rejected {
				assert.Equal(t, ActionReject, dec.Action)
				assert.Equal(t, model.EventTypeSchedule, dec.Kind)
				assert.Equal(t, http.StatusForbidden, dec.Status)
			} else {
				assert.Equal(t, ActionPersist, dec.Action)
			}
		})
	}
}

// A filled window drops the event with no rejection record, unlike the other
// three checks.
func TestGateRateLimitSkips(t *testing.T) {
	cfg := baseConfig()
	cfg.RequestLimit = model.RequestLimit{Enabled: true, MaxRequests: 3, Rate: model.RateMinute}

	counter := &fakeCounter{count: 3}
	gate := NewGate(counter)

	now := time.Date(2025, 6, 10, 12, 30, 45, 0, time.Local)
	dec, err := gate.Evaluate(context.Background(), cfg, now)
	require.NoError(t, err)
	assert.Equal(t, ActionSkip, dec.Action)
	assert.Equal(t, time.Date(2025, 6, 10, 12, 30, 0, 0, time.Local), counter.gotSince)
}

func TestGateRateLimitUnderCeiling(t *testing.T) {
	cfg := baseConfig()
	cfg.RequestLimit = model.RequestLimit{Enabled: true, MaxRequests: 3, Rate: model.RateMinute}

	gate := NewGate(&fakeCounter{count: 2})
	dec, err := gate.Evaluate(context.Background(), cfg, localTime(12, 30))
	require.NoError(t, err)
	assert.Equal(t, ActionPersist, dec.Action)
}

func TestWindowStart(t *testing.T) {
	now := time.Date(2025, 6, 10, 14, 35, 27, 123456789, time.Local)

	assert.Equal(t, time.Date(2025, 6, 10, 14, 35, 27, 0, time.Local), WindowStart(model.RateSecond, now))
	assert.Equal(t, time.Date(2025, 6, 10, 14, 35, 0, 0, time.Local), WindowStart(model.RateMinute, now))
	assert.Equal(t, time.Date(2025, 6, 10, 14, 0, 0, 0, time.Local), WindowStart(model.RateHour, now))
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.Local), WindowStart(model.RateDay, now))
}
