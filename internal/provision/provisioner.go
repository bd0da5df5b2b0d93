// Package provision creates disposable mailboxes on the configured
// providers, failing over between them for random addresses.
package provision

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/tempmail/internal/logging"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/provider"
)

// maxNameRetries bounds how often a colliding random local part is
// regenerated on one provider before moving on.
const maxNameRetries = 2

// ErrInvalidLocalPart is returned for a custom local part that no
// provider would accept.
var ErrInvalidLocalPart = errors.New("invalid local part")

var localPartPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

// Provisioner creates mailboxes and their credentials.
type Provisioner struct {
	registry *provider.Registry
	policy   RetryPolicy
	driver   *Driver
	gen      Generator
	now      func() time.Time
	logger   *zap.Logger
	sleep    SleepFunc
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithGenerator replaces the random local-part and password source.
func WithGenerator(g Generator) Option {
	return func(p *Provisioner) { p.gen = g }
}

// WithSleep replaces the backoff wait between retry rounds.
func WithSleep(s SleepFunc) Option {
	return func(p *Provisioner) { p.sleep = s }
}

// WithClock replaces time.Now for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(p *Provisioner) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provisioner) { p.logger = logging.OrNop(l) }
}

// New creates a Provisioner over registry using policy for random creation.
func New(registry *provider.Registry, policy RetryPolicy, opts ...Option) *Provisioner {
	p := &Provisioner{
		registry: registry,
		policy:   policy,
		gen:      NanoidGenerator{},
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.driver = NewDriver(p.sleep, p.logger)
	return p
}

// Policy returns the random-creation retry policy.
func (p *Provisioner) Policy() RetryPolicy {
	return p.policy
}

// CreateRandom provisions a random mailbox on the first provider, in
// policy order, that yields a usable credential. It returns
// ErrAllProvidersUnavailable once the whole policy is exhausted.
func (p *Provisioner) CreateRandom(ctx context.Context) (*model.Mailbox, error) {
	var created *model.Mailbox
	winner, err := p.driver.Run(ctx, p.policy, func(ctx context.Context, id string) error {
		b, err := p.registry.Get(id)
		if err != nil {
			return err
		}
		mb, err := p.createRandomOn(ctx, b)
		if err != nil {
			return err
		}
		created = mb
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("mailbox provisioned",
		zap.String("provider", winner),
		zap.String("address", created.Address),
	)
	return created, nil
}

// CreateCustom provisions localPart@domain on providerID without failover.
// A taken name returns ErrUsernameTaken; anything else wraps ErrProvider.
func (p *Provisioner) CreateCustom(
	ctx context.Context,
	localPart, domain, providerID string,
) (*model.Mailbox, error) {
	localPart = strings.ToLower(strings.TrimSpace(localPart))
	domain = strings.ToLower(strings.TrimSpace(domain))
	if err := ValidateLocalPart(localPart); err != nil {
		return nil, err
	}

	b, err := p.registry.Get(providerID)
	if err != nil {
		return nil, err
	}
	if domain == "" {
		domains := p.domainsOf(ctx, b)
		if len(domains) == 0 {
			return nil, fmt.Errorf("creating %s on %s: %w: no domains", localPart, providerID, provider.ErrProvider)
		}
		domain = domains[0]
	}

	password, err := p.gen.Password()
	if err != nil {
		return nil, fmt.Errorf("generating password: %w", err)
	}

	acct, err := b.CreateAccount(ctx, localPart, domain, password)
	if err != nil {
		if errors.Is(err, provider.ErrUsernameTaken) {
			return nil, err
		}
		return nil, asProviderError(err)
	}

	mb, err := p.authenticate(ctx, b, *acct, password)
	if err != nil {
		return nil, asProviderError(err)
	}
	return mb, nil
}

// ValidateLocalPart returns ErrInvalidLocalPart unless localPart, once
// trimmed and lowercased, is a name providers accept.
func ValidateLocalPart(localPart string) error {
	normalized := strings.ToLower(strings.TrimSpace(localPart))
	if !localPartPattern.MatchString(normalized) {
		return fmt.Errorf("%w: %q", ErrInvalidLocalPart, normalized)
	}
	return nil
}

// Domains lists the domains of providerID, falling back to the
// descriptor's static list when the provider cannot be reached.
func (p *Provisioner) Domains(ctx context.Context, providerID string) ([]string, error) {
	b, err := p.registry.Get(providerID)
	if err != nil {
		return nil, err
	}
	domains := p.domainsOf(ctx, b)
	if len(domains) == 0 {
		return nil, fmt.Errorf("listing domains of %s: %w", providerID, provider.ErrProvider)
	}
	return domains, nil
}

func (p *Provisioner) createRandomOn(ctx context.Context, b provider.Backend) (*model.Mailbox, error) {
	domains := p.domainsOf(ctx, b)
	if len(domains) == 0 {
		return nil, fmt.Errorf("%w: no domains", provider.ErrProvider)
	}
	domain := domains[0]

	password, err := p.gen.Password()
	if err != nil {
		return nil, fmt.Errorf("generating password: %w", err)
	}

	var acct *provider.Account
	for i := 0; i <= maxNameRetries; i++ {
		localPart, genErr := p.gen.LocalPart()
		if genErr != nil {
			return nil, fmt.Errorf("generating local part: %w", genErr)
		}
		acct, err = b.CreateAccount(ctx, localPart, domain, password)
		if err == nil || !errors.Is(err, provider.ErrUsernameTaken) {
			break
		}
		p.logger.Debug("random local part collided",
			zap.String("provider", b.Descriptor().ID),
			zap.String("local_part", localPart),
		)
	}
	if err != nil {
		return nil, err
	}

	return p.authenticate(ctx, b, *acct, password)
}

// authenticate obtains the session artifact and refuses to hand back a
// mailbox whose credential the provider would not accept.
func (p *Provisioner) authenticate(
	ctx context.Context,
	b provider.Backend,
	acct provider.Account,
	password string,
) (*model.Mailbox, error) {
	desc := b.Descriptor()

	cred, err := b.Authenticate(ctx, acct, password)
	if err != nil {
		return nil, err
	}
	if !cred.Usable(desc.AuthScheme) {
		return nil, fmt.Errorf("authenticating %s: %w: empty credential", acct.Address, provider.ErrInvalidCredential)
	}
	if acct.Address == "" || !strings.Contains(acct.Address, "@") {
		return nil, fmt.Errorf("creating account: %w: address %q", provider.ErrMalformedResponse, acct.Address)
	}

	id := acct.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &model.Mailbox{
		ID:         id,
		Address:    strings.ToLower(acct.Address),
		ProviderID: desc.ID,
		Credential: cred,
		CreatedAt:  p.now().UTC(),
	}, nil
}

func (p *Provisioner) domainsOf(ctx context.Context, b provider.Backend) []string {
	desc := b.Descriptor()
	domains, err := b.Domains(ctx)
	if err == nil && len(domains) > 0 {
		return domains
	}
	p.logger.Debug("using fallback domains",
		zap.String("provider", desc.ID),
		zap.Error(err),
	)
	return append([]string(nil), desc.FallbackDomains...)
}

func asProviderError(err error) error {
	if errors.Is(err, provider.ErrProvider) {
		return err
	}
	return fmt.Errorf("%w: %w", provider.ErrProvider, err)
}
