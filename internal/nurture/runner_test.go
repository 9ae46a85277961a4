package nurture

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTicker struct {
	calls atomic.Int32
}

func (c *countingTicker) Tick(ctx context.Context, now time.Time) (Report, error) {
	c.calls.Add(1)
	return Report{Agents: 1}, nil
}

func TestNewRunnerValidatesSchedule(t *testing.T) {
	_, err := NewRunner(&countingTicker{}, "not a schedule", nil, nil)
	assert.Error(t, err)

	_, err = NewRunner(nil, "0 8 * * *", nil, nil)
	assert.Error(t, err)
}

func TestRunnerNext(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	r, err := NewRunner(&countingTicker{}, "0 8 * * *", ny, nil)
	require.NoError(t, err)

	next := r.Next(time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC))
	assert.True(t, next.Equal(time.Date(2024, 1, 16, 13, 0, 0, 0, time.UTC)), "got %s", next)
}

func TestRunnerRunOnce(t *testing.T) {
	ticker := &countingTicker{}
	r, err := NewRunner(ticker, "*/5 * * * *", nil, nil)
	require.NoError(t, err)

	report, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Agents)
	assert.Equal(t, int32(1), ticker.calls.Load())
}

func TestRunnerStartStopsOnCancel(t *testing.T) {
	r, err := NewRunner(&countingTicker{}, "0 8 * * *", nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}
