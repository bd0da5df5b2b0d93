package provision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		wantErr bool
	}{
		{name: "valid", policy: RetryPolicy{MaxAttempts: 3, Backoff: time.Second, Providers: []string{"a"}}},
		{name: "zero attempts", policy: RetryPolicy{MaxAttempts: 0, Providers: []string{"a"}}, wantErr: true},
		{name: "negative backoff", policy: RetryPolicy{MaxAttempts: 1, Backoff: -1, Providers: []string{"a"}}, wantErr: true},
		{name: "no providers", policy: RetryPolicy{MaxAttempts: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDriver_FirstSuccessWins(t *testing.T) {
	d := NewDriver(func(context.Context, time.Duration) error { return nil }, nil)
	policy := RetryPolicy{MaxAttempts: 3, Providers: []string{"a", "b", "c"}}

	var tried []string
	winner, err := d.Run(context.Background(), policy, func(_ context.Context, id string) error {
		tried = append(tried, id)
		if id == "b" {
			return nil
		}
		return errors.New("down")
	})

	require.NoError(t, err)
	assert.Equal(t, "b", winner)
	assert.Equal(t, []string{"a", "b"}, tried)
}

func TestDriver_ExhaustedBacksOffBetweenRounds(t *testing.T) {
	var sleeps []time.Duration
	d := NewDriver(func(_ context.Context, dur time.Duration) error {
		sleeps = append(sleeps, dur)
		return nil
	}, nil)
	policy := RetryPolicy{MaxAttempts: 3, Backoff: 1500 * time.Millisecond, Providers: []string{"a", "b"}}

	calls := 0
	winner, err := d.Run(context.Background(), policy, func(context.Context, string) error {
		calls++
		return errors.New("down")
	})

	assert.Empty(t, winner)
	assert.ErrorIs(t, err, ErrAllProvidersUnavailable)
	assert.Equal(t, 6, calls)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond}, sleeps)
}

func TestDriver_ExhaustedHidesAttemptErrors(t *testing.T) {
	taken := errors.New("taken")
	d := NewDriver(func(context.Context, time.Duration) error { return nil }, nil)
	policy := RetryPolicy{MaxAttempts: 2, Providers: []string{"a", "b"}}

	_, err := d.Run(context.Background(), policy, func(_ context.Context, id string) error {
		if id == "a" {
			return taken
		}
		return errors.New("down")
	})

	assert.ErrorIs(t, err, ErrAllProvidersUnavailable)
	assert.NotErrorIs(t, err, taken)
	assert.Contains(t, err.Error(), "a (round 2): taken")
	assert.Contains(t, err.Error(), "b (round 1): down")
}

func TestDriver_CanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := NewDriver(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}, nil)
	policy := RetryPolicy{MaxAttempts: 2, Backoff: time.Second, Providers: []string{"a"}}

	_, err := d.Run(ctx, policy, func(context.Context, string) error { return errors.New("down") })
	assert.ErrorIs(t, err, ErrAllProvidersUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDriver_InvalidPolicy(t *testing.T) {
	d := NewDriver(nil, nil)
	_, err := d.Run(context.Background(), RetryPolicy{}, func(context.Context, string) error { return nil })
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrAllProvidersUnavailable)
}
