package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/nhle/tempmail/internal/accounts"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/provider"
	"github.com/nhle/tempmail/internal/provision"
	"github.com/nhle/tempmail/internal/ui/addressform"
	"github.com/nhle/tempmail/internal/ui/viewer"
)

// Provisioning retries across providers with backoff, so it gets a longer
// budget than a single fetch.
const (
	createTimeout = 90 * time.Second
	fetchTimeout  = 30 * time.Second
)

// mailboxChangedMsg reports the account list after a create, switch or drop.
type mailboxChangedMsg struct {
	active   *model.Mailbox
	accounts []model.Mailbox
	note     string
	err      error
}

// domainChoicesMsg carries the domains offered by the custom address form.
type domainChoicesMsg struct {
	choices []addressform.Choice
	err     error
}

// helpInfoMsg carries the provider and quota lines for the help view.
type helpInfoMsg struct {
	lines []string
}

// changed snapshots the account list after an operation.
func (m Model) changed(note string, err error) mailboxChangedMsg {
	return mailboxChangedMsg{
		active:   m.deps.Accounts.Active(),
		accounts: m.deps.Accounts.List(),
		note:     note,
		err:      err,
	}
}

func (m Model) createRandom() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), createTimeout)
		defer cancel()

		mb, err := m.deps.Accounts.CreateRandom(ctx)
		if err != nil {
			return m.changed("", err)
		}
		return m.changed("created "+mb.Address, nil)
	}
}

func (m Model) createCustom(req addressform.SubmittedMsg) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), createTimeout)
		defer cancel()

		mb, err := m.deps.Accounts.CreateCustom(ctx, req.LocalPart, req.Domain, req.ProviderID)
		if err != nil {
			return m.changed("", err)
		}
		return m.changed("created "+mb.Address, nil)
	}
}

func (m Model) nextAccount() tea.Cmd {
	return func() tea.Msg {
		mb, err := m.deps.Accounts.Next(context.Background())
		if err != nil {
			return m.changed("", err)
		}
		return m.changed("switched to "+mb.Address, nil)
	}
}

func (m Model) dropAccount(mb model.Mailbox) tea.Cmd {
	return func() tea.Msg {
		err := m.deps.Accounts.Remove(context.Background(), mb.ID)
		return m.changed("dropped "+mb.Address, err)
	}
}

// loadDomainChoices lists the domains of every provider. Providers that
// cannot be reached are left out; it fails only when none answer.
func (m Model) loadDomainChoices() tea.Cmd {
	providers := m.deps.Providers
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		var (
			choices []addressform.Choice
			lastErr error
		)
		for _, p := range providers {
			domains, err := m.deps.Accounts.Domains(ctx, p.ID)
			if err != nil {
				lastErr = err
				continue
			}
			name := p.Name
			if name == "" {
				name = p.ID
			}
			for _, d := range domains {
				choices = append(choices, addressform.Choice{
					ProviderID:   p.ID,
					ProviderName: name,
					Domain:       d,
				})
			}
		}
		if len(choices) == 0 {
			if lastErr == nil {
				lastErr = errors.New("no domains available")
			}
			return domainChoicesMsg{err: lastErr}
		}
		return domainChoicesMsg{choices: choices}
	}
}

func (m Model) fetchMessage(mb model.Mailbox, id string) tea.Cmd {
	fetcher := m.deps.Fetcher
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		d, ok := fetcher.Fetch(ctx, mb, id)
		return viewer.LoadedMsg{ID: id, Detail: d, OK: ok}
	}
}

func (m Model) loadHelpInfo() tea.Cmd {
	providers := m.deps.Providers
	count := len(m.accounts)
	return func() tea.Msg {
		var lines []string
		for _, p := range providers {
			lines = append(lines, fmt.Sprintf("provider  %s (%s)", p.Name, p.ID))
		}
		lines = append(lines, fmt.Sprintf("mailboxes %d", count))
		if n, err := m.deps.Accounts.Remaining(context.Background()); err == nil && n >= 0 {
			lines = append(lines, fmt.Sprintf("%d more can be created today", n))
		}
		return helpInfoMsg{lines: lines}
	}
}

// errorText turns core errors into status bar text.
func errorText(err error) string {
	switch {
	case errors.Is(err, provision.ErrAllProvidersUnavailable):
		return "all providers are unavailable, try again later"
	case errors.Is(err, accounts.ErrCapacityReached):
		return "mailbox limit reached: drop one with x"
	case errors.Is(err, accounts.ErrDailyLimitReached):
		return "daily creation limit reached, try again tomorrow"
	case errors.Is(err, provider.ErrUsernameTaken):
		return "that name is taken"
	case errors.Is(err, accounts.ErrDuplicateAddress):
		return "that mailbox is already in your list"
	case errors.Is(err, provision.ErrInvalidLocalPart):
		return "that name is not allowed"
	default:
		return err.Error()
	}
}
