// Package accounts owns the user's set of mailboxes: creating them within
// the configured limits, persisting them, and choosing the active one.
package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nhle/tempmail/internal/credential"
	"github.com/nhle/tempmail/internal/logging"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/store"
)

var (
	// ErrCapacityReached is returned when MaxActiveAccounts mailboxes exist.
	ErrCapacityReached = errors.New("mailbox limit reached")

	// ErrDailyLimitReached is returned once DailyCreations mailboxes were
	// created today.
	ErrDailyLimitReached = errors.New("daily creation limit reached")

	// ErrNoActiveMailbox is returned by operations that need one.
	ErrNoActiveMailbox = errors.New("no active mailbox")

	// ErrUnknownMailbox is returned for an id not in the account list.
	ErrUnknownMailbox = errors.New("unknown mailbox")

	// ErrDuplicateAddress is returned when an address is already in the
	// account list.
	ErrDuplicateAddress = errors.New("mailbox already in use")
)

// Provisioner creates mailboxes on providers.
type Provisioner interface {
	CreateRandom(ctx context.Context) (*model.Mailbox, error)
	CreateCustom(ctx context.Context, localPart, domain, providerID string) (*model.Mailbox, error)
	Domains(ctx context.Context, providerID string) ([]string, error)
}

// Sessions persists mailbox credentials.
type Sessions interface {
	Save(mb model.Mailbox) error
	Attach(mb model.Mailbox) (model.Mailbox, error)
	Clear(address string) error
}

// Inbox is told whenever the active mailbox changes.
type Inbox interface {
	Switch(mb *model.Mailbox)
}

// Manager holds the account list, newest first, and the active mailbox.
type Manager struct {
	prov     Provisioner
	sessions Sessions
	store    store.Store
	inbox    Inbox
	limits   model.LimitsConfig
	now      func() time.Time
	logger   *zap.Logger

	mu       chan struct{}
	accounts []model.Mailbox
	activeID string
}

// Option configures a Manager.
type Option func(*Manager)

// WithInbox sets the receiver of active-mailbox changes.
func WithInbox(in Inbox) Option {
	return func(m *Manager) { m.inbox = in }
}

// WithClock replaces time.Now for daily limits.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = logging.OrNop(l) }
}

// NewManager creates an empty Manager. Call Restore to load saved accounts.
func NewManager(
	prov Provisioner,
	sessions Sessions,
	st store.Store,
	limits model.LimitsConfig,
	opts ...Option,
) *Manager {
	m := &Manager{
		prov:     prov,
		sessions: sessions,
		store:    st,
		limits:   limits,
		now:      time.Now,
		logger:   zap.NewNop(),
		mu:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// lock serializes operations. It gives up when ctx ends.
func (m *Manager) lock(ctx context.Context) error {
	select {
	case m.mu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) unlock() { <-m.mu }

// Restore loads the saved account list and activates the newest mailbox.
// Accounts whose credential is gone from the keyring are dropped.
func (m *Manager) Restore(ctx context.Context) error {
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.unlock()

	saved, err := m.store.GetAccounts(ctx)
	if err != nil {
		return errors.Wrap(err, "restoring accounts")
	}

	m.accounts = m.accounts[:0]
	for _, mb := range saved {
		withCred, err := m.sessions.Attach(mb)
		if err != nil {
			m.logger.Warn("dropping account without session",
				zap.String("address", mb.Address),
				zap.Error(err),
			)
			if errors.Is(err, credential.ErrNoSession) {
				if delErr := m.store.DeleteAccount(ctx, mb.ID); delErr != nil {
					m.logger.Warn("deleting stale account", zap.String("address", mb.Address), zap.Error(delErr))
				}
			}
			continue
		}
		m.accounts = append(m.accounts, withCred)
	}

	if len(m.accounts) == 0 {
		m.activateLocked("")
		return nil
	}
	m.activateLocked(m.accounts[0].ID)
	return nil
}

// CreateRandom provisions a random mailbox and makes it active.
func (m *Manager) CreateRandom(ctx context.Context) (*model.Mailbox, error) {
	if err := m.lock(ctx); err != nil {
		return nil, err
	}
	defer m.unlock()

	if err := m.checkLimitsLocked(ctx, true); err != nil {
		return nil, err
	}
	mb, err := m.prov.CreateRandom(ctx)
	if err != nil {
		return nil, err
	}
	return m.adoptLocked(ctx, *mb, -1)
}

// CreateCustom provisions localPart@domain on providerID and makes it active.
func (m *Manager) CreateCustom(
	ctx context.Context,
	localPart, domain, providerID string,
) (*model.Mailbox, error) {
	if err := m.lock(ctx); err != nil {
		return nil, err
	}
	defer m.unlock()

	if err := m.checkUniqueLocked(localPart + "@" + domain); err != nil {
		return nil, err
	}
	if err := m.checkLimitsLocked(ctx, true); err != nil {
		return nil, err
	}
	mb, err := m.prov.CreateCustom(ctx, localPart, domain, providerID)
	if err != nil {
		return nil, err
	}
	return m.adoptLocked(ctx, *mb, -1)
}

// ChangeDomain re-creates the active mailbox's local part on domain of
// the same provider and replaces the active mailbox with it.
func (m *Manager) ChangeDomain(ctx context.Context, domain string) (*model.Mailbox, error) {
	if err := m.lock(ctx); err != nil {
		return nil, err
	}
	defer m.unlock()

	idx := m.indexLocked(m.activeID)
	if idx < 0 {
		return nil, ErrNoActiveMailbox
	}
	old := m.accounts[idx]
	if old.Domain() == domain {
		return &old, nil
	}

	if err := m.checkUniqueLocked(old.LocalPart() + "@" + domain); err != nil {
		return nil, err
	}
	if err := m.checkLimitsLocked(ctx, false); err != nil {
		return nil, err
	}
	mb, err := m.prov.CreateCustom(ctx, old.LocalPart(), domain, old.ProviderID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(mb.Address, old.Address) {
		if err := m.checkUniqueLocked(mb.Address); err != nil {
			return nil, err
		}
	}

	if err := m.forgetLocked(ctx, old); err != nil {
		return nil, err
	}
	m.accounts = append(m.accounts[:idx], m.accounts[idx+1:]...)
	return m.adoptLocked(ctx, *mb, idx)
}

// Switch activates the mailbox with id.
func (m *Manager) Switch(ctx context.Context, id string) (*model.Mailbox, error) {
	if err := m.lock(ctx); err != nil {
		return nil, err
	}
	defer m.unlock()

	idx := m.indexLocked(id)
	if idx < 0 {
		return nil, errors.Wrapf(ErrUnknownMailbox, "switching to %s", id)
	}
	m.activateLocked(id)
	mb := m.accounts[idx]
	return &mb, nil
}

// Next activates the mailbox after the active one, wrapping around.
func (m *Manager) Next(ctx context.Context) (*model.Mailbox, error) {
	if err := m.lock(ctx); err != nil {
		return nil, err
	}
	defer m.unlock()

	if len(m.accounts) == 0 {
		return nil, ErrNoActiveMailbox
	}
	idx := (m.indexLocked(m.activeID) + 1) % len(m.accounts)
	m.activateLocked(m.accounts[idx].ID)
	mb := m.accounts[idx]
	return &mb, nil
}

// Active returns the active mailbox, or nil.
func (m *Manager) Active() *model.Mailbox {
	m.mu <- struct{}{}
	defer m.unlock()

	idx := m.indexLocked(m.activeID)
	if idx < 0 {
		return nil
	}
	mb := m.accounts[idx]
	return &mb
}

// List returns the mailboxes, newest first.
func (m *Manager) List() []model.Mailbox {
	m.mu <- struct{}{}
	defer m.unlock()
	return append([]model.Mailbox(nil), m.accounts...)
}

// Remove deletes a mailbox's session, cache and list entry. Removing the
// active mailbox activates the newest remaining one.
func (m *Manager) Remove(ctx context.Context, id string) error {
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.unlock()

	idx := m.indexLocked(id)
	if idx < 0 {
		return errors.Wrapf(ErrUnknownMailbox, "removing %s", id)
	}
	if err := m.forgetLocked(ctx, m.accounts[idx]); err != nil {
		return err
	}
	m.accounts = append(m.accounts[:idx], m.accounts[idx+1:]...)

	if id == m.activeID {
		next := ""
		if len(m.accounts) > 0 {
			next = m.accounts[0].ID
		}
		m.activateLocked(next)
	}
	return nil
}

// RemoveAll deletes every mailbox.
func (m *Manager) RemoveAll(ctx context.Context) error {
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.unlock()

	for _, mb := range m.accounts {
		if err := m.sessions.Clear(mb.Address); err != nil {
			m.logger.Warn("clearing session", zap.String("address", mb.Address), zap.Error(err))
		}
	}
	if err := m.store.DeleteAllAccounts(ctx); err != nil {
		return errors.Wrap(err, "removing all accounts")
	}
	m.accounts = nil
	m.activateLocked("")
	return nil
}

// Domains lists domains available for custom mailboxes on providerID.
func (m *Manager) Domains(ctx context.Context, providerID string) ([]string, error) {
	return m.prov.Domains(ctx, providerID)
}

// Remaining reports how many more mailboxes may be created today.
func (m *Manager) Remaining(ctx context.Context) (int, error) {
	if m.limits.DailyCreations <= 0 {
		return -1, nil
	}
	n, err := m.store.CountCreationsSince(ctx, startOfDay(m.now()))
	if err != nil {
		return 0, errors.Wrap(err, "counting creations")
	}
	return max(m.limits.DailyCreations-n, 0), nil
}

func (m *Manager) checkLimitsLocked(ctx context.Context, adding bool) error {
	if adding && m.limits.MaxActiveAccounts > 0 && len(m.accounts) >= m.limits.MaxActiveAccounts {
		return fmt.Errorf("%w: %d of %d", ErrCapacityReached, len(m.accounts), m.limits.MaxActiveAccounts)
	}
	if m.limits.DailyCreations <= 0 {
		return nil
	}
	n, err := m.store.CountCreationsSince(ctx, startOfDay(m.now()))
	if err != nil {
		return errors.Wrap(err, "counting creations")
	}
	if n >= m.limits.DailyCreations {
		return fmt.Errorf("%w: %d today", ErrDailyLimitReached, n)
	}
	return nil
}

// checkUniqueLocked fails when address is already in the account list.
func (m *Manager) checkUniqueLocked(address string) error {
	for _, mb := range m.accounts {
		if strings.EqualFold(mb.Address, address) {
			return fmt.Errorf("%w: %s", ErrDuplicateAddress, mb.Address)
		}
	}
	return nil
}

// adoptLocked writes mb through to the session store and account list and
// activates it. at < 0 prepends.
func (m *Manager) adoptLocked(ctx context.Context, mb model.Mailbox, at int) (*model.Mailbox, error) {
	if err := m.checkUniqueLocked(mb.Address); err != nil {
		return nil, err
	}
	if err := m.sessions.Save(mb); err != nil {
		return nil, errors.Wrap(err, "saving session")
	}
	if err := m.store.SaveAccount(ctx, mb); err != nil {
		return nil, errors.Wrap(err, "saving account")
	}
	if err := m.store.RecordCreation(ctx, mb.Address, mb.ProviderID, m.now()); err != nil {
		m.logger.Warn("recording creation", zap.String("address", mb.Address), zap.Error(err))
	}

	if at < 0 || at > len(m.accounts) {
		at = 0
	}
	m.accounts = append(m.accounts[:at], append([]model.Mailbox{mb}, m.accounts[at:]...)...)
	m.activateLocked(mb.ID)

	m.logger.Info("mailbox added",
		zap.String("address", mb.Address),
		zap.String("provider", mb.ProviderID),
	)
	return &mb, nil
}

func (m *Manager) forgetLocked(ctx context.Context, mb model.Mailbox) error {
	if err := m.sessions.Clear(mb.Address); err != nil {
		return errors.Wrap(err, "clearing session")
	}
	if err := m.store.DeleteAccount(ctx, mb.ID); err != nil {
		return errors.Wrap(err, "deleting account")
	}
	return nil
}

func (m *Manager) activateLocked(id string) {
	m.activeID = id
	if m.inbox == nil {
		return
	}
	idx := m.indexLocked(id)
	if idx < 0 {
		m.inbox.Switch(nil)
		return
	}
	mb := m.accounts[idx]
	m.inbox.Switch(&mb)
}

func (m *Manager) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, mb := range m.accounts {
		if mb.ID == id {
			return i
		}
	}
	return -1
}

func startOfDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}
