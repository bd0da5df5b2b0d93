package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/provider"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestProvisioner(t *testing.T, attempts int, backends ...*fakeBackend) *Provisioner {
	t.Helper()

	bs := make([]provider.Backend, len(backends))
	ids := make([]string, len(backends))
	for i, b := range backends {
		bs[i] = b
		ids[i] = b.desc.ID
	}
	reg, err := provider.NewRegistry(bs...)
	require.NoError(t, err)

	return New(reg,
		RetryPolicy{MaxAttempts: attempts, Backoff: time.Millisecond, Providers: ids},
		WithGenerator(&seqGenerator{}),
		WithSleep(func(context.Context, time.Duration) error { return nil }),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func TestCreateRandom_FirstProvider(t *testing.T) {
	a := newFakeBackend("a", model.AuthBearerToken)
	b := newFakeBackend("b", model.AuthSessionToken)
	p := newTestProvisioner(t, 3, a, b)

	mb, err := p.CreateRandom(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "a", mb.ProviderID)
	assert.Equal(t, "user1@a.example", mb.Address)
	assert.Equal(t, "a-acct-1", mb.ID)
	assert.Equal(t, "tok-a", mb.Credential.Token)
	assert.Equal(t, fixedNow, mb.CreatedAt)
	assert.Empty(t, b.createCalls)
}

func TestCreateRandom_FailsOverWhenTokenTimesOut(t *testing.T) {
	a := newFakeBackend("a", model.AuthBearerToken)
	a.authErr = fmt.Errorf("requesting token: %w", provider.ErrNetworkTimeout)
	b := newFakeBackend("b", model.AuthSessionToken)
	p := newTestProvisioner(t, 3, a, b)

	mb, err := p.CreateRandom(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "b", mb.ProviderID)
	assert.Equal(t, "sid-b", mb.Credential.SessionID)
	assert.Equal(t, 1, a.authCalls, "a must not be retried once b succeeded")
	assert.Len(t, a.createCalls, 1)
}

func TestCreateRandom_AllProvidersDown(t *testing.T) {
	a := newFakeBackend("a", model.AuthBearerToken)
	a.authErr = provider.ErrNetworkTimeout
	b := newFakeBackend("b", model.AuthSessionToken)
	b.authErr = provider.ErrProvider
	p := newTestProvisioner(t, 2, a, b)

	mb, err := p.CreateRandom(context.Background())
	assert.Nil(t, mb)
	assert.ErrorIs(t, err, ErrAllProvidersUnavailable)
	assert.Equal(t, 2, a.authCalls)
	assert.Equal(t, 2, b.authCalls)
}

func TestCreateRandom_ExhaustedCollisionsAreNotUsernameTaken(t *testing.T) {
	a := newFakeBackend("a", model.AuthBearerToken)
	for range 3 * (maxNameRetries + 1) {
		a.createErrs = append(a.createErrs, provider.ErrUsernameTaken)
	}
	b := newFakeBackend("b", model.AuthSessionToken)
	b.authErr = provider.ErrProvider
	p := newTestProvisioner(t, 3, a, b)

	mb, err := p.CreateRandom(context.Background())
	assert.Nil(t, mb)
	assert.ErrorIs(t, err, ErrAllProvidersUnavailable)
	assert.NotErrorIs(t, err, provider.ErrUsernameTaken)
	assert.NotErrorIs(t, err, provider.ErrProvider)
	assert.Contains(t, err.Error(), provider.ErrUsernameTaken.Error())
}

func TestCreateRandom_RejectsEmptyCredential(t *testing.T) {
	a := newFakeBackend("a", model.AuthBearerToken)
	a.cred = &model.Credential{}
	p := newTestProvisioner(t, 1, a)

	mb, err := p.CreateRandom(context.Background())
	assert.Nil(t, mb)
	assert.ErrorIs(t, err, ErrAllProvidersUnavailable)
	assert.Contains(t, err.Error(), provider.ErrInvalidCredential.Error())
}

func TestCreateRandom_RegeneratesCollidingName(t *testing.T) {
	a := newFakeBackend("a", model.AuthBearerToken)
	a.createErrs = []error{provider.ErrUsernameTaken, provider.ErrUsernameTaken}
	p := newTestProvisioner(t, 1, a)

	mb, err := p.CreateRandom(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user3@a.example", mb.Address)
	assert.Equal(t, []string{"user1@a.example", "user2@a.example", "user3@a.example"}, a.createCalls)
}

func TestCreateRandom_UsesFallbackDomains(t *testing.T) {
	a := newFakeBackend("a", model.AuthBearerToken)
	a.domainsErr = provider.ErrNetworkTimeout
	p := newTestProvisioner(t, 1, a)

	mb, err := p.CreateRandom(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a-fallback.example", mb.Domain())
}

func TestCreateRandom_GeneratesIDWhenProviderHasNone(t *testing.T) {
	b := &idlessBackend{fakeBackend: newFakeBackend("b", model.AuthSessionToken)}
	reg, err := provider.NewRegistry(b)
	require.NoError(t, err)
	p := New(reg, RetryPolicy{MaxAttempts: 1, Providers: []string{"b"}}, WithGenerator(&seqGenerator{}))

	mb, err := p.CreateRandom(context.Background())
	require.NoError(t, err)
	assert.Len(t, mb.ID, 36)
}

type idlessBackend struct {
	*fakeBackend
}

func (b *idlessBackend) CreateAccount(ctx context.Context, localPart, domain, password string) (*provider.Account, error) {
	acct, err := b.fakeBackend.CreateAccount(ctx, localPart, domain, password)
	if err != nil {
		return nil, err
	}
	acct.ID = ""
	return acct, nil
}

func TestCreateCustom(t *testing.T) {
	tests := []struct {
		name       string
		localPart  string
		domain     string
		createErr  error
		authErr    error
		wantErr    error
		wantAddr   string
		wantCreate bool
	}{
		{
			name:       "success",
			localPart:  "Alice",
			domain:     "a.example",
			wantAddr:   "alice@a.example",
			wantCreate: true,
		},
		{
			name:       "default domain",
			localPart:  "bob",
			wantAddr:   "bob@a.example",
			wantCreate: true,
		},
		{
			name:       "taken",
			localPart:  "alice",
			domain:     "a.example",
			createErr:  fmt.Errorf("creating alice@a.example: %w", provider.ErrUsernameTaken),
			wantErr:    provider.ErrUsernameTaken,
			wantCreate: true,
		},
		{
			name:       "provider failure",
			localPart:  "alice",
			domain:     "a.example",
			createErr:  provider.ErrNetworkTimeout,
			wantErr:    provider.ErrProvider,
			wantCreate: true,
		},
		{
			name:       "token failure",
			localPart:  "alice",
			domain:     "a.example",
			authErr:    errors.New("boom"),
			wantErr:    provider.ErrProvider,
			wantCreate: true,
		},
		{
			name:      "invalid local part",
			localPart: "no spaces",
			domain:    "a.example",
			wantErr:   ErrInvalidLocalPart,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newFakeBackend("a", model.AuthBearerToken)
			if tt.createErr != nil {
				a.createErrs = []error{tt.createErr}
			}
			a.authErr = tt.authErr
			p := newTestProvisioner(t, 3, a)

			mb, err := p.CreateCustom(context.Background(), tt.localPart, tt.domain, "a")

			assert.Equal(t, tt.wantCreate, len(a.createCalls) == 1)
			if tt.wantErr != nil {
				assert.Nil(t, mb)
				assert.ErrorIs(t, err, tt.wantErr)
				if errors.Is(tt.wantErr, provider.ErrUsernameTaken) {
					assert.NotErrorIs(t, err, provider.ErrProvider)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, mb.Address)
			assert.Equal(t, "a", mb.ProviderID)
		})
	}
}

func TestCreateCustom_UnknownProvider(t *testing.T) {
	p := newTestProvisioner(t, 1, newFakeBackend("a", model.AuthBearerToken))
	_, err := p.CreateCustom(context.Background(), "alice", "", "nope")
	assert.ErrorIs(t, err, provider.ErrUnknownProvider)
}

func TestDomains(t *testing.T) {
	a := newFakeBackend("a", model.AuthBearerToken)
	p := newTestProvisioner(t, 1, a)

	domains, err := p.Domains(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.example"}, domains)

	a.domainsErr = provider.ErrNetworkTimeout
	domains, err = p.Domains(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a-fallback.example"}, domains)
}

func TestValidateLocalPart(t *testing.T) {
	for _, ok := range []string{"alice", "Bob.Smith", "  x_1-y ", "0day"} {
		assert.NoError(t, ValidateLocalPart(ok), ok)
	}
	for _, bad := range []string{"", ".alice", "a b", "ünïcode", strings.Repeat("a", 65)} {
		assert.ErrorIs(t, ValidateLocalPart(bad), ErrInvalidLocalPart, bad)
	}
}
