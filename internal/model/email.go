package model

import (
	"encoding/json"
	"net/mail"
	"strings"
	"time"
)

// Category is the display label assigned to a message by the classifier.
type Category string

const (
	CategoryVerification Category = "Verification"
	CategorySecurity     Category = "Security"
	CategoryNewsletter   Category = "Newsletter"
	CategoryOther        Category = "Other"
)

// Sender is the normalized "from" of a message. Backends deliver it either
// as a structured object or as a bare "Name <addr>" string; both decode here.
type Sender struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// ParseSender normalizes a bare sender string. Unparseable input is kept
// verbatim as the address.
func ParseSender(raw string) Sender {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Sender{}
	}
	if addr, err := mail.ParseAddress(raw); err == nil {
		return Sender{Address: addr.Address, Name: addr.Name}.withDefaultName()
	}
	return Sender{Address: raw}.withDefaultName()
}

// UnmarshalJSON accepts either a JSON string or an {address, name} object.
func (s *Sender) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*s = ParseSender(raw)
		return nil
	}

	type plain Sender
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Sender(p).withDefaultName()
	return nil
}

// withDefaultName falls back to the address local part when no display
// name was provided.
func (s Sender) withDefaultName() Sender {
	if s.Name == "" && s.Address != "" {
		local, _, _ := strings.Cut(s.Address, "@")
		s.Name = local
	}
	return s
}

// String renders the sender as "Name <address>".
func (s Sender) String() string {
	if s.Name == "" || s.Name == s.Address {
		return s.Address
	}
	return s.Name + " <" + s.Address + ">"
}

// EmailSummary is one row of a mailbox's message list.
type EmailSummary struct {
	ID        string    `json:"id"`
	From      Sender    `json:"from"`
	Subject   string    `json:"subject"`
	Intro     string    `json:"intro"`
	Seen      bool      `json:"seen"`
	CreatedAt time.Time `json:"created_at"`
	Category  Category  `json:"category"`
}

// AttachmentRef describes an attachment without its content.
type AttachmentRef struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url,omitempty"`
}

// EmailDetail is a fully fetched message.
type EmailDetail struct {
	EmailSummary

	Text           string          `json:"text,omitempty"`
	HTML           []string        `json:"html"`
	HasAttachments bool            `json:"has_attachments"`
	Attachments    []AttachmentRef `json:"attachments"`
}

// Body returns the first HTML part, or the plain text when there is none.
func (d *EmailDetail) Body() string {
	if len(d.HTML) > 0 && d.HTML[0] != "" {
		return d.HTML[0]
	}
	return d.Text
}
