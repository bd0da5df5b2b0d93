package viewer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempmail/internal/detail"
	"github.com/nhle/tempmail/internal/htmlfix"
	"github.com/nhle/tempmail/internal/keys"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/theme"
)

// BackMsg signals the parent to navigate back to the inbox.
type BackMsg struct{}

// DeleteMsg asks the parent to delete the open message.
type DeleteMsg struct {
	ID string
}

// LoadedMsg carries a fetched message. OK is false when the message could
// not be fetched; that result is final, not a loading state.
type LoadedMsg struct {
	ID     string
	Detail *model.EmailDetail
	OK     bool
}

// Model is the message viewer. Remote images stay blocked until the
// reader toggles them on, and the choice resets for every message.
type Model struct {
	id          string
	email       *model.EmailDetail
	unavailable bool
	loading     bool
	showImages  bool
	viewport    viewport.Model
	keys        *keys.KeyMap
	width       int
	height      int
}

// New creates a new viewer model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Open puts the viewer in the loading state for id.
func (m *Model) Open(id string) {
	m.id = id
	m.email = nil
	m.unavailable = false
	m.loading = true
	m.showImages = false
	m.viewport.SetContent("")
}

// ID returns the id of the message being shown.
func (m Model) ID() string {
	return m.id
}

// ImagesShown reports whether remote images are rendered.
func (m Model) ImagesShown() bool {
	return m.showImages
}

// Update handles messages for the viewer.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		if msg.ID != m.id {
			return m, nil
		}
		m.loading = false
		m.email = msg.Detail
		m.unavailable = !msg.OK || msg.Detail == nil
		m.render()
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Images):
			if m.email != nil {
				m.showImages = !m.showImages
				m.render()
			}
			return m, nil

		case key.Matches(msg, m.keys.Delete):
			id := m.id
			return m, func() tea.Msg { return DeleteMsg{ID: id} }
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the viewer.
func (m Model) View() string {
	placeholder := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.loading:
		return placeholder.Render("Loading message...")
	case m.unavailable:
		return placeholder.Render("This message is no longer available.\n\nPress esc to go back.")
	case m.email == nil:
		return placeholder.Render("No message selected")
	}
	return m.viewport.View()
}

func (m *Model) render() {
	m.viewport.SetContent(m.renderContent())
}

// renderContent builds the header block and body text.
func (m Model) renderContent() string {
	if m.email == nil {
		return ""
	}
	e := m.email

	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	subject := e.Subject
	if strings.TrimSpace(subject) == "" {
		subject = "(no subject)"
	}
	sections = append(sections, titleStyle.Render(subject))
	if e.Category != "" && e.Category != model.CategoryOther {
		sections = append(sections, theme.CategoryStyle(e.Category).Render(string(e.Category)))
	}
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	sections = append(sections, fmt.Sprintf("%s  %s",
		metaStyle.Render("From:"), valStyle.Render(e.From.String())))
	if !e.CreatedAt.IsZero() {
		sections = append(sections, fmt.Sprintf("%s  %s",
			metaStyle.Render("Date:"),
			valStyle.Render(e.CreatedAt.Local().Format("2006-01-02 15:04"))))
	}
	for _, a := range e.Attachments {
		sections = append(sections, fmt.Sprintf("%s  %s",
			metaStyle.Render("File:"),
			valStyle.Render(fmt.Sprintf("%s (%s)", a.Filename, a.ContentType))))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	body := m.body()
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("(empty message)")
	}
	sections = append(sections, lipgloss.NewStyle().Width(max(m.width-2, 10)).Render(body))

	if !m.showImages && len(e.HTML) > 0 && strings.TrimSpace(e.Text) == "" {
		sections = append(sections, "", theme.HelpStyle.Render("Images are blocked. Press i to load them."))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// body returns the text to show: the plain part when present, otherwise
// the html parts rendered as text with images blocked unless shown.
func (m Model) body() string {
	e := m.email
	if strings.TrimSpace(e.Text) != "" {
		return e.Text
	}

	var parts []string
	for _, part := range e.HTML {
		if !m.showImages {
			part = detail.BlockImages(part)
		}
		text, err := htmlfix.PlainText(part)
		if err != nil {
			text = part
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return e.Intro
	}
	return strings.Join(parts, "\n\n")
}

// SetSize updates the viewer dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	m.render()
}
