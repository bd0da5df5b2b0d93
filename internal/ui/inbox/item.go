package inbox

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/theme"
)

// EmailItem wraps a model.EmailSummary so it can be used in a bubbles/list.
type EmailItem struct {
	Email model.EmailSummary
}

// FilterValue returns the string used for filtering.
func (i EmailItem) FilterValue() string {
	return i.Email.Subject + " " + i.Email.From.String()
}

// Title returns the subject, or a placeholder for empty subjects.
func (i EmailItem) Title() string {
	if strings.TrimSpace(i.Email.Subject) == "" {
		return "(no subject)"
	}
	return i.Email.Subject
}

// Description returns the sender and preview.
func (i EmailItem) Description() string {
	return i.Email.From.String() + " | " + i.Email.Intro
}

// EmailDelegate implements list.ItemDelegate for rendering messages.
type EmailDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d EmailDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d EmailDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d EmailDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws the badge, sender, subject and age on the first line and
// the preview on the second.
func (d EmailDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ei, ok := item.(EmailItem)
	if !ok {
		return
	}
	e := ei.Email

	marker := " "
	if !e.Seen {
		marker = "●"
	}

	badge := ""
	if e.Category != "" && e.Category != model.CategoryOther {
		badge = theme.CategoryStyle(e.Category).Render(string(e.Category))
	}

	sender := e.From.Name
	if sender == "" {
		sender = e.From.Address
	}
	title := ei.Title()
	if !e.Seen {
		title = theme.UnreadStyle.Render(title)
	}

	now := time.Now
	if d.now != nil {
		now = d.now
	}
	age := theme.DimmedStyle.Render(relativeTime(now(), e.CreatedAt))

	width := max(m.Width()-4, 10)
	first := fmt.Sprintf("%s %s%s  %s  %s", marker, badge, sender, title, age)
	second := theme.DimmedStyle.Render("  " + truncate(e.Intro, width))
	line := first + "\n" + second

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}
	fmt.Fprint(w, line)
}

// truncate shortens s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("Jan 02")
	}
}
