package addressform

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempmail/internal/provision"
	"github.com/nhle/tempmail/internal/theme"
)

// SubmittedMsg is dispatched when the user confirms an address.
type SubmittedMsg struct {
	LocalPart  string
	Domain     string
	ProviderID string
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// Choice is one selectable domain.
type Choice struct {
	ProviderID   string
	ProviderName string
	Domain       string
}

func (c Choice) key() string {
	return c.ProviderID + "/" + c.Domain
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	localPart string
	choice    string
}

// Model is the custom address form.
type Model struct {
	form    *huh.Form
	fb      *formBindings
	choices []Choice
	width   int
	height  int
}

// New creates a new address form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start resets the form with the given domain choices.
func (m *Model) Start(choices []Choice) tea.Cmd {
	m.choices = choices
	m.fb.localPart = ""
	m.fb.choice = ""
	if len(choices) > 0 {
		m.fb.choice = choices[0].key()
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("Custom Address") + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	opts := make([]huh.Option[string], 0, len(m.choices))
	for _, c := range m.choices {
		label := fmt.Sprintf("@%s  (%s)", c.Domain, c.ProviderName)
		opts = append(opts, huh.NewOption(label, c.key()))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Placeholder("letters, digits, . _ -").
				Value(&m.fb.localPart).
				Validate(validateLocalPart),
			huh.NewSelect[string]().
				Title("Domain").
				Options(opts...).
				Value(&m.fb.choice),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	local := strings.ToLower(strings.TrimSpace(m.fb.localPart))
	for _, c := range m.choices {
		if c.key() == m.fb.choice {
			msg := SubmittedMsg{LocalPart: local, Domain: c.Domain, ProviderID: c.ProviderID}
			return func() tea.Msg { return msg }
		}
	}
	return func() tea.Msg { return CancelMsg{} }
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func (m Model) formHeight() int {
	return max(m.height-4, 10)
}

func validateLocalPart(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("name is required")
	}
	if provision.ValidateLocalPart(s) != nil {
		return fmt.Errorf("use letters, digits, dot, underscore or dash")
	}
	return nil
}
