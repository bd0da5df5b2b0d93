package app

import (
	"context"
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tempmail/internal/accounts"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/provider"
	"github.com/nhle/tempmail/internal/provision"
	appsync "github.com/nhle/tempmail/internal/sync"
	"github.com/nhle/tempmail/internal/ui/addressform"
	"github.com/nhle/tempmail/internal/ui/inbox"
	"github.com/nhle/tempmail/internal/ui/viewer"
)

type fakeAccounts struct {
	list      []model.Mailbox
	activeID  string
	next      int
	createErr error
	domains   map[string][]string
	removed   []string
}

func (f *fakeAccounts) add(mb model.Mailbox) *model.Mailbox {
	f.list = append([]model.Mailbox{mb}, f.list...)
	f.activeID = mb.ID
	return &mb
}

func (f *fakeAccounts) CreateRandom(ctx context.Context) (*model.Mailbox, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.next++
	return f.add(model.Mailbox{ID: fmt.Sprint(f.next), Address: fmt.Sprintf("user%d@x.test", f.next)}), nil
}

func (f *fakeAccounts) CreateCustom(ctx context.Context, local, domain, providerID string) (*model.Mailbox, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.add(model.Mailbox{ID: local, Address: local + "@" + domain, ProviderID: providerID}), nil
}

func (f *fakeAccounts) Domains(ctx context.Context, providerID string) ([]string, error) {
	d, ok := f.domains[providerID]
	if !ok {
		return nil, provider.ErrProvider
	}
	return d, nil
}

func (f *fakeAccounts) Next(ctx context.Context) (*model.Mailbox, error) {
	for i, mb := range f.list {
		if mb.ID == f.activeID {
			n := f.list[(i+1)%len(f.list)]
			f.activeID = n.ID
			return &n, nil
		}
	}
	return nil, accounts.ErrNoActiveMailbox
}

func (f *fakeAccounts) Remove(ctx context.Context, id string) error {
	f.removed = append(f.removed, id)
	for i, mb := range f.list {
		if mb.ID == id {
			f.list = append(f.list[:i], f.list[i+1:]...)
			break
		}
	}
	f.activeID = ""
	if len(f.list) > 0 {
		f.activeID = f.list[0].ID
	}
	return nil
}

func (f *fakeAccounts) Active() *model.Mailbox {
	for _, mb := range f.list {
		if mb.ID == f.activeID {
			return &mb
		}
	}
	return nil
}

func (f *fakeAccounts) List() []model.Mailbox {
	return append([]model.Mailbox(nil), f.list...)
}

func (f *fakeAccounts) Remaining(ctx context.Context) (int, error) {
	return 2, nil
}

type deleted struct {
	address string
	id      string
}

type fakeInbox struct {
	emails    []model.EmailSummary
	deleted   []deleted
	refreshes int
	stopped   bool
}

func (f *fakeInbox) Start() tea.Cmd { return nil }
func (f *fakeInbox) Stop() { f.stopped = true }
func (f *fakeInbox) WaitForUpdate() tea.Cmd { return nil }
func (f *fakeInbox) Refresh() { f.refreshes++ }
func (f *fakeInbox) Status() appsync.Status { return appsync.Status{} }
func (f *fakeInbox) Emails() []model.EmailSummary {
	return append([]model.EmailSummary(nil), f.emails...)
}
func (f *fakeInbox) Delete(mb model.Mailbox, id string) {
	f.deleted = append(f.deleted, deleted{address: mb.Address, id: id})
}

type fakeFetcher struct{}

func (fakeFetcher) Fetch(ctx context.Context, mb model.Mailbox, id string) (*model.EmailDetail, bool) {
	if id == "gone" {
		return nil, false
	}
	return &model.EmailDetail{
		EmailSummary: model.EmailSummary{ID: id, Subject: "Your code"},
		Text:         "123456",
	}, true
}

var testProviders = []model.ProviderDescriptor{
	{ID: "mailtm", Name: "mail.tm"},
	{ID: "guerrilla", Name: "Guerrilla Mail"},
}

func newTestModel(acc *fakeAccounts, in *fakeInbox) Model {
	return New(Deps{
		Accounts:  acc,
		Inbox:     in,
		Fetcher:   fakeFetcher{},
		Providers: testProviders,
	})
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestNewRandomMailbox(t *testing.T) {
	acc := &fakeAccounts{}
	in := &fakeInbox{}
	m := newTestModel(acc, in)

	m, cmd := update(t, m, runeKey("n"))
	assert.Equal(t, "creating mailbox...", m.busy)
	require.NotNil(t, cmd)

	// A second press while creating is ignored.
	_, again := update(t, m, runeKey("n"))
	assert.Nil(t, again)

	msg := cmd()
	changed, ok := msg.(mailboxChangedMsg)
	require.True(t, ok)

	m, _ = update(t, m, changed)
	assert.Empty(t, m.busy)
	assert.Equal(t, "user1@x.test", m.activeAddress())
	assert.Equal(t, "created user1@x.test", m.notice)
	assert.Equal(t, "user1@x.test", m.headerTitle())
}

func TestCreateErrorsBecomeNotices(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "capacity",
			err:  fmt.Errorf("%w: 3 of 3", accounts.ErrCapacityReached),
			want: "mailbox limit reached: drop one with x",
		},
		{
			name: "daily",
			err:  accounts.ErrDailyLimitReached,
			want: "daily creation limit reached, try again tomorrow",
		},
		{
			name: "all down",
			err:  fmt.Errorf("%w after 3 rounds", provision.ErrAllProvidersUnavailable),
			want: "all providers are unavailable, try again later",
		},
		{
			name: "exhausted with collisions",
			err:  fmt.Errorf("%w: %w", provision.ErrAllProvidersUnavailable, provider.ErrUsernameTaken),
			want: "all providers are unavailable, try again later",
		},
		{
			name: "duplicate",
			err:  fmt.Errorf("%w: bob@g.example", accounts.ErrDuplicateAddress),
			want: "that mailbox is already in your list",
		},
		{
			name: "other",
			err:  fmt.Errorf("boom"),
			want: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &fakeAccounts{createErr: tt.err}
			m := newTestModel(acc, &fakeInbox{})

			m, cmd := update(t, m, runeKey("n"))
			m, _ = update(t, m, cmd())

			assert.Equal(t, tt.want, m.notice)
			assert.Nil(t, m.active)
			assert.Empty(t, m.busy)
		})
	}
}

func TestInboxUpdates(t *testing.T) {
	acc := &fakeAccounts{}
	acc.add(model.Mailbox{ID: "1", Address: "me@x.test"})
	m := newTestModel(acc, &fakeInbox{})

	emails := []model.EmailSummary{{ID: "a", Subject: "hi"}, {ID: "b", Subject: "code"}}

	m, _ = update(t, m, appsync.UpdateMsg{Address: "old@x.test", Emails: emails})
	assert.Equal(t, 0, m.inbox.Len(), "updates for another mailbox are skipped")

	m, _ = update(t, m, appsync.UpdateMsg{Address: "me@x.test", Emails: emails})
	assert.Equal(t, 2, m.inbox.Len())

	m, _ = update(t, m, appsync.UpdateMsg{Address: "me@x.test", Emails: emails, FromCache: true, Err: fmt.Errorf("offline")})
	assert.Equal(t, "offline: showing cached messages", m.notice)

	m, _ = update(t, m, appsync.UpdateMsg{Address: "me@x.test", Emails: emails[:1]})
	assert.Empty(t, m.notice)
	assert.Equal(t, 1, m.inbox.Len())
}

func TestMailboxChangeLoadsSynchronizerList(t *testing.T) {
	acc := &fakeAccounts{}
	acc.add(model.Mailbox{ID: "1", Address: "one@x.test"})
	acc.add(model.Mailbox{ID: "2", Address: "two@x.test"})
	in := &fakeInbox{}
	m := newTestModel(acc, in)
	assert.Equal(t, "two@x.test  [1/2]", m.headerTitle())

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.NotNil(t, cmd)

	// The synchronizer switched before the UI heard about it.
	in.emails = []model.EmailSummary{{ID: "z", Subject: "for one"}}
	m, _ = update(t, m, cmd())

	assert.Equal(t, "one@x.test", m.activeAddress())
	assert.Equal(t, "one@x.test  [2/2]", m.headerTitle())
	assert.Equal(t, 1, m.inbox.Len())
}

func TestDeleteSelectedMessage(t *testing.T) {
	acc := &fakeAccounts{}
	acc.add(model.Mailbox{ID: "1", Address: "me@x.test"})
	in := &fakeInbox{}
	m := newTestModel(acc, in)

	m, _ = update(t, m, appsync.UpdateMsg{
		Address: "me@x.test",
		Emails:  []model.EmailSummary{{ID: "a"}, {ID: "b"}},
	})
	_, _ = update(t, m, runeKey("d"))

	require.Len(t, in.deleted, 1)
	assert.Equal(t, deleted{address: "me@x.test", id: "a"}, in.deleted[0])
}

func TestOpenMessage(t *testing.T) {
	acc := &fakeAccounts{}
	acc.add(model.Mailbox{ID: "1", Address: "me@x.test"})
	in := &fakeInbox{}
	m := newTestModel(acc, in)

	m, cmd := update(t, m, inbox.SelectedEmailMsg{ID: "7"})
	assert.Equal(t, ViewMessage, m.currentView)
	require.NotNil(t, cmd)

	loaded, ok := cmd().(viewer.LoadedMsg)
	require.True(t, ok)
	assert.True(t, loaded.OK)
	assert.Equal(t, "7", loaded.ID)

	m, _ = update(t, m, loaded)
	assert.Equal(t, "7", m.viewer.ID())
	assert.False(t, m.viewer.ImagesShown())

	// d in the viewer deletes the open message and returns to the list.
	m, cmd = update(t, m, runeKey("d"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Equal(t, ViewInbox, m.currentView)
	require.Len(t, in.deleted, 1)
	assert.Equal(t, "7", in.deleted[0].id)
}

func TestOpenMessage_Unavailable(t *testing.T) {
	acc := &fakeAccounts{}
	acc.add(model.Mailbox{ID: "1", Address: "me@x.test"})
	m := newTestModel(acc, &fakeInbox{})

	m, cmd := update(t, m, inbox.SelectedEmailMsg{ID: "gone"})
	loaded, ok := cmd().(viewer.LoadedMsg)
	require.True(t, ok)
	assert.False(t, loaded.OK)

	m, _ = update(t, m, loaded)
	assert.Contains(t, m.viewer.View(), "no longer available")
}

func TestCustomAddressFlow(t *testing.T) {
	acc := &fakeAccounts{domains: map[string][]string{"mailtm": {"a.test", "b.test"}}}
	m := newTestModel(acc, &fakeInbox{})

	m, cmd := update(t, m, runeKey("c"))
	assert.Equal(t, "loading domains...", m.busy)

	choices, ok := cmd().(domainChoicesMsg)
	require.True(t, ok)
	require.NoError(t, choices.err)
	assert.Len(t, choices.choices, 2, "unreachable providers are left out")

	m, _ = update(t, m, choices)
	assert.Equal(t, ViewAddressForm, m.currentView)
	assert.Empty(t, m.busy)

	m, cmd = update(t, m, addressform.SubmittedMsg{LocalPart: "alice", Domain: "b.test", ProviderID: "mailtm"})
	assert.Equal(t, ViewInbox, m.currentView)
	m, _ = update(t, m, cmd())
	assert.Equal(t, "alice@b.test", m.activeAddress())
}

func TestCustomAddress_NoDomains(t *testing.T) {
	m := newTestModel(&fakeAccounts{}, &fakeInbox{})

	m, cmd := update(t, m, runeKey("c"))
	m, _ = update(t, m, cmd())

	assert.Equal(t, ViewInbox, m.currentView)
	assert.NotEmpty(t, m.notice)
}

func TestDropAccount(t *testing.T) {
	acc := &fakeAccounts{}
	acc.add(model.Mailbox{ID: "1", Address: "one@x.test"})
	acc.add(model.Mailbox{ID: "2", Address: "two@x.test"})
	m := newTestModel(acc, &fakeInbox{})

	m, cmd := update(t, m, runeKey("x"))
	m, _ = update(t, m, cmd())

	assert.Equal(t, []string{"2"}, acc.removed)
	assert.Equal(t, "one@x.test", m.activeAddress())
	assert.Equal(t, "dropped two@x.test", m.notice)
}

func TestRefreshAndQuit(t *testing.T) {
	in := &fakeInbox{}
	m := newTestModel(&fakeAccounts{}, in)

	m, _ = update(t, m, runeKey("r"))
	assert.Equal(t, 1, in.refreshes)

	_, cmd := update(t, m, runeKey("q"))
	require.NotNil(t, cmd)
	assert.True(t, in.stopped)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestHelpToggle(t *testing.T) {
	m := newTestModel(&fakeAccounts{}, &fakeInbox{})

	m, cmd := update(t, m, runeKey("?"))
	assert.Equal(t, ViewHelp, m.currentView)
	info, ok := cmd().(helpInfoMsg)
	require.True(t, ok)
	assert.Contains(t, info.lines, "2 more can be created today")

	m, _ = update(t, m, runeKey("?"))
	assert.Equal(t, ViewInbox, m.currentView)
}
