// Package export renders fetched messages as RFC 5322 files.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/tempmail/internal/model"
)

// WriteEML writes d as a multipart/alternative message addressed to to.
// Attachment bodies are not available from list or detail calls, so only
// the text and html parts are written.
func WriteEML(w io.Writer, d *model.EmailDetail, to string) error {
	var h mail.Header
	date := d.CreatedAt
	if date.IsZero() {
		date = time.Now()
	}
	h.SetDate(date)
	h.SetSubject(d.Subject)
	h.SetAddressList("From", []*mail.Address{{Name: d.From.Name, Address: d.From.Address}})
	if to != "" {
		h.SetAddressList("To", []*mail.Address{{Address: to}})
	}
	if d.ID != "" {
		h.SetMessageID(d.ID + "@tempmail.local")
	}

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("creating message writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return fmt.Errorf("creating inline writer: %w", err)
	}

	text := d.Text
	if text == "" && len(d.HTML) == 0 {
		text = d.Intro
	}
	if text != "" {
		if err := writePart(tw, "text/plain", text); err != nil {
			return err
		}
	}
	if html := strings.Join(d.HTML, "\n"); html != "" {
		if err := writePart(tw, "text/html", html); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing inline writer: %w", err)
	}
	return mw.Close()
}

func writePart(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	pw, err := tw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("creating %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		pw.Close()
		return fmt.Errorf("writing %s part: %w", contentType, err)
	}
	return pw.Close()
}
