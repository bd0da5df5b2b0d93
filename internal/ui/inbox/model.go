package inbox

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempmail/internal/keys"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/theme"
)

// SelectedEmailMsg is sent when a user opens a message.
type SelectedEmailMsg struct {
	ID string
}

// Model is the message list view.
type Model struct {
	list        list.Model
	keys        *keys.KeyMap
	emails      []model.EmailSummary
	address     string
	query       string
	searchMode  bool
	searchInput textinput.Model
	width       int
	height      int
}

// New creates a new inbox list model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, EmailDelegate{}, width, height-2)
	l.SetShowTitle(false)
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetStatusBarItemName("message", "messages")
	// The root model owns quitting and help.
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)
	l.KeyMap.ShowFullHelp.SetEnabled(false)
	l.KeyMap.CloseFullHelp.SetEnabled(false)

	si := textinput.New()
	si.Placeholder = "search subject or sender..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		keys:        k,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// SetEmails replaces the list for address, keeping the selection on the
// same message when it is still present.
func (m *Model) SetEmails(address string, emails []model.EmailSummary) tea.Cmd {
	if address != m.address {
		m.query = ""
		m.searchInput.Reset()
		m.list.ResetSelected()
	}
	m.address = address
	m.emails = emails
	return m.apply()
}

// Selected returns the highlighted message.
func (m Model) Selected() (model.EmailSummary, bool) {
	item, ok := m.list.SelectedItem().(EmailItem)
	if !ok {
		return model.EmailSummary{}, false
	}
	return item.Email, true
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// Len returns the number of visible messages.
func (m Model) Len() int {
	return len(m.list.Items())
}

// Update handles messages for the inbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		switch {
		case key.Matches(msg, m.keys.Select):
			e, ok := m.Selected()
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return SelectedEmailMsg{ID: e.ID} }

		case key.Matches(msg, m.keys.Search):
			m.searchMode = true
			m.searchInput.SetValue(m.query)
			return m, m.searchInput.Focus()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while in search mode.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.searchInput.Blur()
		m.query = strings.TrimSpace(m.searchInput.Value())
		return m, m.apply()

	case "esc":
		m.searchMode = false
		m.searchInput.Blur()
		m.searchInput.Reset()
		m.query = ""
		return m, m.apply()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// apply rebuilds the list items from emails and the search query.
func (m *Model) apply() tea.Cmd {
	selected := ""
	if e, ok := m.Selected(); ok {
		selected = e.ID
	}

	q := strings.ToLower(m.query)
	items := make([]list.Item, 0, len(m.emails))
	index := 0
	for _, e := range m.emails {
		item := EmailItem{Email: e}
		if q != "" && !strings.Contains(strings.ToLower(item.FilterValue()), q) {
			continue
		}
		if e.ID == selected {
			index = len(items)
		}
		items = append(items, item)
	}

	cmd := m.list.SetItems(items)
	if len(items) > 0 {
		m.list.Select(index)
	}
	return cmd
}

// View renders the inbox view.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

// renderEmptyState shows guidance text when there is nothing to list.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.address == "":
		return style.Render("No mailbox yet.\n\nPress n for a random address or c to choose one.")
	case m.query != "":
		return style.Render("No messages match \"" + m.query + "\".\nPress / then esc to clear.")
	default:
		return style.Render("Waiting for mail to\n\n" + m.address)
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
