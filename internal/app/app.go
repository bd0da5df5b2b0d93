package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/tempmail/internal/keys"
	"github.com/nhle/tempmail/internal/model"
	appsync "github.com/nhle/tempmail/internal/sync"
	"github.com/nhle/tempmail/internal/ui"
	"github.com/nhle/tempmail/internal/ui/addressform"
	helpview "github.com/nhle/tempmail/internal/ui/help"
	"github.com/nhle/tempmail/internal/ui/inbox"
	"github.com/nhle/tempmail/internal/ui/viewer"
)

// Accounts is the mailbox list the client drives.
type Accounts interface {
	CreateRandom(ctx context.Context) (*model.Mailbox, error)
	CreateCustom(ctx context.Context, localPart, domain, providerID string) (*model.Mailbox, error)
	Domains(ctx context.Context, providerID string) ([]string, error)
	Next(ctx context.Context) (*model.Mailbox, error)
	Remove(ctx context.Context, id string) error
	Active() *model.Mailbox
	List() []model.Mailbox
	Remaining(ctx context.Context) (int, error)
}

// Inbox is the synchronizer of the active mailbox.
type Inbox interface {
	Start() tea.Cmd
	Stop()
	WaitForUpdate() tea.Cmd
	Refresh()
	Delete(mb model.Mailbox, id string)
	Emails() []model.EmailSummary
	Status() appsync.Status
}

// Fetcher loads single messages.
type Fetcher interface {
	Fetch(ctx context.Context, mb model.Mailbox, id string) (*model.EmailDetail, bool)
}

// Deps are the core services behind the client.
type Deps struct {
	Accounts  Accounts
	Inbox     Inbox
	Fetcher   Fetcher
	Providers []model.ProviderDescriptor
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewInbox ViewState = iota
	ViewMessage
	ViewHelp
	ViewAddressForm
)

// Model is the root Bubble Tea model that manages view routing and the
// cached mailbox state shown in the header.
type Model struct {
	deps         Deps
	keys         *keys.KeyMap
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	inbox        inbox.Model
	viewer       viewer.Model
	helpView     helpview.Model
	form         addressform.Model

	// active and accounts mirror the account list; reading it live would
	// block on a creation in flight.
	active   *model.Mailbox
	accounts []model.Mailbox
	busy     string
	notice   string
	ready    bool
}

// New creates the root model.
func New(deps Deps) Model {
	k := keys.DefaultKeyMap()
	return Model{
		deps:     deps,
		keys:     k,
		inbox:    inbox.New(k, 80, 24),
		viewer:   viewer.New(k, 80, 24),
		helpView: helpview.New(k, 80, 24),
		form:     addressform.New(80, 24),
		active:   deps.Accounts.Active(),
		accounts: deps.Accounts.List(),
	}
}

// Init starts polling the active mailbox.
func (m Model) Init() tea.Cmd {
	return m.deps.Inbox.Start()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.inbox.SetSize(w, h)
		m.viewer.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.form.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case appsync.UpdateMsg:
		wait := m.deps.Inbox.WaitForUpdate()
		if msg.Address != m.activeAddress() {
			return m, wait
		}
		if msg.Err != nil && msg.FromCache {
			m.notice = "offline: showing cached messages"
		} else if msg.Err == nil && m.notice == "offline: showing cached messages" {
			m.notice = ""
		}
		return m, tea.Batch(m.inbox.SetEmails(msg.Address, msg.Emails), wait)

	case mailboxChangedMsg:
		// The synchronizer was switched before this arrives, so its
		// updates for the new address may already have been skipped.
		m.busy = ""
		m.active = msg.active
		m.accounts = msg.accounts
		m.notice = msg.note
		if msg.err != nil {
			m.notice = errorText(msg.err)
		} else if m.currentView != ViewHelp {
			m.currentView = ViewInbox
		}
		return m, m.inbox.SetEmails(m.activeAddress(), m.deps.Inbox.Emails())

	case domainChoicesMsg:
		m.busy = ""
		if msg.err != nil {
			m.notice = errorText(msg.err)
			return m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewAddressForm
		return m, m.form.Start(msg.choices)

	case helpInfoMsg:
		m.helpView.SetInfo(msg.lines)
		return m, nil

	case inbox.SelectedEmailMsg:
		if m.active == nil {
			return m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewMessage
		m.viewer.Open(msg.ID)
		return m, m.fetchMessage(*m.active, msg.ID)

	case viewer.LoadedMsg:
		var cmd tea.Cmd
		m.viewer, cmd = m.viewer.Update(msg)
		return m, cmd

	case viewer.BackMsg:
		m.currentView = ViewInbox
		return m, nil

	case viewer.DeleteMsg:
		m.currentView = ViewInbox
		m.deleteMessage(msg.ID)
		return m, nil

	case addressform.SubmittedMsg:
		m.currentView = ViewInbox
		m.busy = "creating " + msg.LocalPart + "@" + msg.Domain + "..."
		return m, m.createCustom(msg)

	case addressform.CancelMsg:
		m.currentView = ViewInbox
		return m, nil

	case tea.KeyMsg:
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleKey processes keys that act on the whole client. It reports false
// for keys the active view should receive.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		m.deps.Inbox.Stop()
		return m, tea.Quit, true
	}
	if m.currentView == ViewAddressForm || (m.currentView == ViewInbox && m.inbox.Searching()) {
		return m, nil, false
	}

	if key.Matches(msg, m.keys.Help) {
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, m.loadHelpInfo(), true
	}
	if m.currentView == ViewHelp && key.Matches(msg, m.keys.Back) {
		m.currentView = m.previousView
		return m, nil, true
	}
	if m.currentView != ViewInbox {
		return m, nil, false
	}

	// A non-empty busy marks a mailbox change in flight.
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.deps.Inbox.Stop()
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Refresh):
		m.deps.Inbox.Refresh()
		return m, nil, true

	case key.Matches(msg, m.keys.Delete):
		if e, ok := m.inbox.Selected(); ok {
			m.deleteMessage(e.ID)
		}
		return m, nil, true

	case key.Matches(msg, m.keys.NewRandom) && m.busy == "":
		m.busy = "creating mailbox..."
		m.notice = ""
		return m, m.createRandom(), true

	case key.Matches(msg, m.keys.NewCustom) && m.busy == "":
		m.busy = "loading domains..."
		m.notice = ""
		return m, m.loadDomainChoices(), true

	case key.Matches(msg, m.keys.NextAccount) && m.busy == "":
		if len(m.accounts) < 2 {
			return m, nil, true
		}
		m.busy = "switching..."
		return m, m.nextAccount(), true

	case key.Matches(msg, m.keys.DropAccount) && m.busy == "":
		if m.active == nil {
			return m, nil, true
		}
		m.busy = "dropping " + m.active.Address + "..."
		return m, m.dropAccount(*m.active), true
	}
	return m, nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewInbox:
		m.inbox, cmd = m.inbox.Update(msg)
	case ViewMessage:
		m.viewer, cmd = m.viewer.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewAddressForm:
		m.form, cmd = m.form.Update(msg)
	}

	return m, cmd
}

// deleteMessage removes id from the active mailbox's list at once.
func (m *Model) deleteMessage(id string) {
	if m.active == nil || id == "" {
		return
	}
	m.deps.Inbox.Delete(*m.active, id)
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.syncStatus())
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.notice)
	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewInbox:
		return m.inbox.View()
	case ViewMessage:
		return m.viewer.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewAddressForm:
		return m.form.View()
	default:
		return ""
	}
}

func (m Model) headerTitle() string {
	if m.active == nil {
		return "tempmail"
	}
	if len(m.accounts) > 1 {
		pos := 1
		for i, mb := range m.accounts {
			if mb.ID == m.active.ID {
				pos = i + 1
			}
		}
		return fmt.Sprintf("%s  [%d/%d]", m.active.Address, pos, len(m.accounts))
	}
	return m.active.Address
}

// syncStatus returns a short string describing the poll state.
func (m Model) syncStatus() string {
	if m.busy != "" {
		return m.busy
	}
	if m.active == nil {
		return "no mailbox"
	}

	st := m.deps.Inbox.Status()
	switch {
	case st.State == appsync.StateFetching:
		return "checking..."
	case st.Err != nil:
		return "⚠ unreachable"
	case st.LastSync.IsZero():
		return "waiting"
	default:
		return "updated " + st.LastSync.Local().Format(time.Kitchen)
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewMessage:
		return "esc back | d delete | i images | j/k scroll"
	case ViewAddressForm:
		return "enter submit | esc cancel"
	default:
		if m.inbox.Searching() {
			return "enter apply | esc clear"
		}
		return "q quit | ? help | n new | c custom | r refresh | d delete | tab next | x drop"
	}
}

func (m Model) activeAddress() string {
	if m.active == nil {
		return ""
	}
	return m.active.Address
}
