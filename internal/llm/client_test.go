package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	resp  Response
	err   error
	calls int
}

func (s *scriptedClient) Complete(ctx context.Context, req Request) (Response, error) {
	s.calls++
	return s.resp, s.err
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	require.NoError(t, DecodeJSON("Sure!\n```json\n{\"intent\":\"log_interaction\",\"confidence\":0.9}\n```", &out))
	assert.Equal(t, "log_interaction", out.Intent)
	assert.InDelta(t, 0.9, out.Confidence, 0.0001)

	assert.ErrorIs(t, DecodeJSON("no json here", &out), ErrNoJSON)
	assert.Error(t, DecodeJSON("{not json}", &out))
}

func TestFallbackClient(t *testing.T) {
	primary := &scriptedClient{err: errors.New("primary down")}
	fallback := &scriptedClient{resp: Response{Text: "ok"}}

	resp, err := NewFallbackClient(primary, fallback, nil).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 1, fallback.calls)

	_, err = NewFallbackClient(primary, nil, nil).Complete(context.Background(), Request{})
	assert.EqualError(t, err, "primary down")

	healthy := &scriptedClient{resp: Response{Text: "primary"}}
	fallback.calls = 0
	resp, err = NewFallbackClient(healthy, fallback, nil).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Text)
	assert.Zero(t, fallback.calls)
}

func TestFallbackClientSkipsFallbackWhenContextDone(t *testing.T) {
	primary := &scriptedClient{err: context.DeadlineExceeded}
	fallback := &scriptedClient{resp: Response{Text: "late"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFallbackClient(primary, fallback, nil).Complete(ctx, Request{})
	assert.Error(t, err)
	assert.Zero(t, fallback.calls)
}

func TestRateLimitedClient(t *testing.T) {
	next := &scriptedClient{resp: Response{Text: "ok"}}
	client := NewRateLimitedClient(next, 0.001, 2)

	for i := 0; i < 2; i++ {
		_, err := client.Complete(context.Background(), Request{})
		require.NoError(t, err)
	}
	_, err := client.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 2, next.calls)

	unlimited := NewRateLimitedClient(next, 0, 0)
	for i := 0; i < 10; i++ {
		_, err := unlimited.Complete(context.Background(), Request{})
		require.NoError(t, err)
	}
}
