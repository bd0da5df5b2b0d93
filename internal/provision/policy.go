package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/tempmail/internal/logging"
	"github.com/nhle/tempmail/internal/model"
)

// ErrAllProvidersUnavailable is returned when every provider failed in
// every round of a retry policy.
var ErrAllProvidersUnavailable = errors.New("all providers unavailable")

// RetryPolicy describes how random provisioning fails over: each round
// tries Providers in order, and rounds are separated by Backoff.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	Providers   []string
}

// PolicyFromConfig builds a policy over providers in registry order.
func PolicyFromConfig(cfg model.ProvisioningConfig, providers []string) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     time.Duration(cfg.BackoffMs) * time.Millisecond,
		Providers:   append([]string(nil), providers...),
	}
}

// Validate reports a policy that could never produce an attempt.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry policy: max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.Backoff < 0 {
		return fmt.Errorf("retry policy: negative backoff %s", p.Backoff)
	}
	if len(p.Providers) == 0 {
		return errors.New("retry policy: no providers")
	}
	return nil
}

// AttemptFunc tries one provider. A nil error ends the run.
type AttemptFunc func(ctx context.Context, providerID string) error

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Driver executes a RetryPolicy.
type Driver struct {
	sleep  SleepFunc
	logger *zap.Logger
}

// NewDriver creates a Driver. A nil sleep waits on a real timer.
func NewDriver(sleep SleepFunc, logger *zap.Logger) *Driver {
	if sleep == nil {
		sleep = sleepContext
	}
	return &Driver{sleep: sleep, logger: logging.OrNop(logger)}
}

// Run tries the policy's providers in order for up to MaxAttempts rounds
// and returns the id of the first provider whose attempt succeeded. No
// further provider is tried once one succeeds.
func (d *Driver) Run(ctx context.Context, policy RetryPolicy, try AttemptFunc) (string, error) {
	if err := policy.Validate(); err != nil {
		return "", err
	}

	var errs []error
	for round := 1; round <= policy.MaxAttempts; round++ {
		if round > 1 && policy.Backoff > 0 {
			if err := d.sleep(ctx, policy.Backoff); err != nil {
				return "", fmt.Errorf("%w: %w", ErrAllProvidersUnavailable, err)
			}
		}

		for _, id := range policy.Providers {
			if err := ctx.Err(); err != nil {
				return "", fmt.Errorf("%w: %w", ErrAllProvidersUnavailable, err)
			}

			err := try(ctx, id)
			if err == nil {
				return id, nil
			}

			d.logger.Warn("provisioning attempt failed",
				zap.String("provider", id),
				zap.Int("round", round),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s (round %d): %w", id, round, err))
		}
	}

	// Attempt errors stay in the message only: a collision on one provider
	// must not make the exhausted result look like ErrUsernameTaken.
	return "", fmt.Errorf("%w after %d rounds: %v",
		ErrAllProvidersUnavailable, policy.MaxAttempts, errors.Join(errs...))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
