package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nhle/tempmail/internal/detail"
	"github.com/nhle/tempmail/internal/htmlfix"
	"github.com/nhle/tempmail/internal/model"
	appsync "github.com/nhle/tempmail/internal/sync"
)

func printCreated(w io.Writer, mb *model.Mailbox) {
	fmt.Fprintf(w, "%s\t(%s)\n", mb.Address, mb.ProviderID)
}

func printAccounts(w io.Writer, list []model.Mailbox, active *model.Mailbox, remaining int) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no mailboxes")
	} else {
		t := newTable("", "ADDRESS", "PROVIDER", "CREATED")
		for _, mb := range list {
			marker := ""
			if active != nil && active.ID == mb.ID {
				marker = "*"
			}
			t.Row(marker, mb.Address, mb.ProviderID, mb.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprintln(w, t.Render())
	}
	if remaining >= 0 {
		fmt.Fprintf(w, "%d more can be created today\n", remaining)
	}
}

// printPolled prints the inbox after a single poll. A failed poll is
// reported on errW and leaves whatever the cache held.
func printPolled(w, errW io.Writer, address string, emails []model.EmailSummary, pollErr error, now time.Time) {
	if pollErr != nil {
		if len(emails) > 0 {
			fmt.Fprintln(errW, "offline, showing cached messages:", pollErr)
		} else {
			fmt.Fprintln(errW, "offline, nothing cached yet:", pollErr)
		}
	}
	printInbox(w, address, emails, now)
}

func printInbox(w io.Writer, address string, emails []model.EmailSummary, now time.Time) {
	if len(emails) == 0 {
		fmt.Fprintf(w, "%s: no messages\n", address)
		return
	}

	t := newTable("", "ID", "TYPE", "FROM", "SUBJECT", "AGE")
	for _, e := range emails {
		t.Row(summaryRow(e, now)...)
	}
	fmt.Fprintln(w, t.Render())
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...)
}

func summaryRow(e model.EmailSummary, now time.Time) []string {
	unread := ""
	if !e.Seen {
		unread = "•"
	}
	return []string{unread, e.ID, badge(e.Category), e.From.String(), e.Subject, age(now, e.CreatedAt)}
}

func printSummary(w io.Writer, e model.EmailSummary, now time.Time) {
	fmt.Fprintln(w, strings.Join(summaryRow(e, now), "  "))
}

func printDetail(w io.Writer, d *model.EmailDetail, rawHTML bool) error {
	fmt.Fprintf(w, "From:    %s\n", d.From.String())
	fmt.Fprintf(w, "Subject: %s\n", d.Subject)
	if !d.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Date:    %s\n", d.CreatedAt.Local().Format(time.RFC1123Z))
	}
	for _, a := range d.Attachments {
		fmt.Fprintf(w, "Attach:  %s (%s, %d bytes)\n", a.Filename, a.ContentType, a.Size)
	}
	fmt.Fprintln(w)

	body, err := renderBody(d, rawHTML)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, body)
	return nil
}

// renderBody prefers the plain text part unless raw html was requested.
func renderBody(d *model.EmailDetail, rawHTML bool) (string, error) {
	html := strings.Join(d.HTML, "\n")
	switch {
	case rawHTML && html != "":
		return html, nil
	case d.Text != "":
		return d.Text, nil
	case html != "":
		return htmlfix.PlainText(html)
	default:
		return d.Intro, nil
	}
}

// withImagesBlocked returns a copy of d with every html part's images
// replaced by placeholders.
func withImagesBlocked(d *model.EmailDetail) *model.EmailDetail {
	out := *d
	out.HTML = make([]string, len(d.HTML))
	for i, part := range d.HTML {
		out.HTML[i] = detail.BlockImages(part)
	}
	return &out
}

// watch prints every message not seen before until ctx ends or the
// updates channel closes.
func watch(ctx context.Context, w io.Writer, updates <-chan appsync.UpdateMsg, now func() time.Time) error {
	seen := make(map[string]struct{})
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-updates:
			if !ok {
				return nil
			}
			if msg.Err != nil && msg.FromCache {
				fmt.Fprintf(w, "offline, showing cache: %v\n", msg.Err)
			}
			for i := len(msg.Emails) - 1; i >= 0; i-- {
				e := msg.Emails[i]
				if _, dup := seen[e.ID]; dup {
					continue
				}
				seen[e.ID] = struct{}{}
				printSummary(w, e, now())
			}
		}
	}
}

// resolveMailbox maps an id or address argument to an account id.
// Unknown values are returned unchanged.
func resolveMailbox(list []model.Mailbox, arg string) string {
	for _, mb := range list {
		if mb.ID == arg || strings.EqualFold(mb.Address, arg) {
			return mb.ID
		}
	}
	return arg
}

func badge(c model.Category) string {
	if c == "" || c == model.CategoryOther {
		return "-"
	}
	return string(c)
}

func age(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
