package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/nhle/tempmail/internal/classify"
	"github.com/nhle/tempmail/internal/htmlfix"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/transport"
)

// Session actions understood by the single action endpoint.
const (
	actionGetAddress = "get_email_address"
	actionSetUser    = "set_email_user"
	actionList       = "get_email_list"
	actionFetch      = "fetch_email"
	actionDelete     = "del_email"
)

// Session is a backend addressed by an f=<action> query parameter and
// authenticated by a sid_token parameter (Guerrilla Mail and compatible).
type Session struct {
	desc     model.ProviderDescriptor
	endpoint string
	chain    *transport.Chain
}

// NewSession creates a session-token backend.
func NewSession(desc model.ProviderDescriptor, chain *transport.Chain) *Session {
	return &Session{
		desc:     desc,
		endpoint: strings.TrimRight(desc.BaseURL, "/") + desc.MessagesEndpoint,
		chain:    chain,
	}
}

// Descriptor returns the backend's static configuration.
func (s *Session) Descriptor() model.ProviderDescriptor {
	return s.desc
}

// Domains returns the descriptor's static domain list. Session providers
// deliver to the same inbox on every one of their domains.
func (s *Session) Domains(ctx context.Context) ([]string, error) {
	if len(s.desc.FallbackDomains) == 0 {
		return nil, fmt.Errorf("provider %s: %w: no domains configured", s.desc.ID, ErrProvider)
	}
	return append([]string(nil), s.desc.FallbackDomains...), nil
}

// CreateAccount opens a session and claims localPart on it. The password
// is unused: the session id is the only credential.
func (s *Session) CreateAccount(
	ctx context.Context,
	localPart, domain, _ string,
) (*Account, error) {
	var opened sessionAddress
	if err := s.call(ctx, actionGetAddress, url.Values{"lang": {"en"}}, &opened); err != nil {
		return nil, wrapFailure(err, "opening session")
	}
	if opened.SIDToken == "" {
		return nil, fmt.Errorf("opening session: %w: missing sid_token", ErrMalformedResponse)
	}

	var claimed sessionAddress
	params := url.Values{
		"email_user": {localPart},
		"lang":       {"en"},
		"sid_token":  {opened.SIDToken},
	}
	if err := s.call(ctx, actionSetUser, params, &claimed); err != nil {
		return nil, wrapFailure(err, "claiming address")
	}

	got := claimed.EmailAddr
	if got == "" {
		return nil, fmt.Errorf("claiming address: %w: missing email_addr", ErrMalformedResponse)
	}
	gotLocal, gotDomain, _ := strings.Cut(got, "@")
	if !strings.EqualFold(gotLocal, localPart) {
		return nil, fmt.Errorf("claiming %s: %w (assigned %s)", localPart, ErrUsernameTaken, got)
	}
	if domain == "" {
		domain = gotDomain
	}

	sid := claimed.SIDToken
	if sid == "" {
		sid = opened.SIDToken
	}
	return &Account{
		Address:   gotLocal + "@" + domain,
		SessionID: sid,
	}, nil
}

// Authenticate confirms the session opened by CreateAccount is live.
func (s *Session) Authenticate(
	ctx context.Context,
	acct Account,
	_ string,
) (*model.Credential, error) {
	if acct.SessionID == "" {
		return nil, fmt.Errorf("authenticating %s: %w", acct.Address, ErrInvalidCredential)
	}

	var resp sessionAddress
	params := url.Values{"sid_token": {acct.SessionID}, "lang": {"en"}}
	if err := s.call(ctx, actionGetAddress, params, &resp); err != nil {
		return nil, wrapFailure(err, "confirming session")
	}

	sid := resp.SIDToken
	if sid == "" {
		sid = acct.SessionID
	}
	alias := resp.Alias
	if alias == "" {
		alias = acct.Address
	}
	return &model.Credential{SessionID: sid, Alias: alias}, nil
}

// ListMessages returns the first page of get_email_list.
func (s *Session) ListMessages(
	ctx context.Context,
	mb model.Mailbox,
) ([]model.EmailSummary, error) {
	if err := requireCredential(mb, s.desc.AuthScheme); err != nil {
		return nil, err
	}

	var resp sessionList
	params := url.Values{"offset": {"0"}, "sid_token": {mb.Credential.SessionID}}
	if err := s.call(ctx, actionList, params, &resp); err != nil {
		return nil, wrapFailure(err, "listing messages")
	}

	out := make([]model.EmailSummary, 0, len(resp.List))
	for _, m := range resp.List {
		out = append(out, m.summary())
	}
	return out, nil
}

// GetMessage fetches one message with fetch_email. A vanished message
// comes back as JSON false, which surfaces as ErrMalformedResponse.
func (s *Session) GetMessage(
	ctx context.Context,
	mb model.Mailbox,
	id string,
) (*model.EmailDetail, error) {
	if err := requireCredential(mb, s.desc.AuthScheme); err != nil {
		return nil, err
	}

	var m sessionMessage
	params := url.Values{"email_id": {id}, "sid_token": {mb.Credential.SessionID}}
	if err := s.call(ctx, actionFetch, params, &m); err != nil {
		return nil, wrapFailure(err, "fetching message "+id)
	}
	if m.MailID == "" {
		return nil, fmt.Errorf("fetching message %s: %w: empty mail_id", id, ErrMalformedResponse)
	}

	d := &model.EmailDetail{EmailSummary: m.summary()}
	d.Seen = true
	if strings.Contains(m.ContentType, "plain") {
		d.Text = m.MailBody
	} else if m.MailBody != "" {
		d.HTML = []string{m.MailBody}
	}
	for _, a := range m.Attachments {
		d.Attachments = append(d.Attachments, model.AttachmentRef{
			ID:          string(a.PartID),
			Filename:    a.FileName,
			ContentType: a.ContentType,
		})
	}
	d.HasAttachments = len(d.Attachments) > 0
	return d, nil
}

// DeleteMessage removes a message with del_email.
func (s *Session) DeleteMessage(ctx context.Context, mb model.Mailbox, id string) error {
	if err := requireCredential(mb, s.desc.AuthScheme); err != nil {
		return err
	}

	var resp sessionDelete
	params := url.Values{"email_ids[]": {id}, "sid_token": {mb.Credential.SessionID}}
	if err := s.call(ctx, actionDelete, params, &resp); err != nil {
		return wrapFailure(err, "deleting message "+id)
	}
	return nil
}

// call issues GET <endpoint>?f=<action>&<params>.
func (s *Session) call(
	ctx context.Context,
	action string,
	params url.Values,
	result interface{},
) error {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("f", action)
	return s.chain.Get(ctx, s.endpoint+"?"+q.Encode(), nil, result)
}

// summary converts a wire message into the normalized list shape.
func (m sessionMessage) summary() model.EmailSummary {
	from := model.ParseSender(htmlfix.DecodeEntities(m.MailFrom))
	subject := htmlfix.DecodeEntities(m.MailSubject)
	intro := htmlfix.DecodeEntities(m.MailExcerpt)
	return model.EmailSummary{
		ID:        string(m.MailID),
		From:      from,
		Subject:   subject,
		Intro:     intro,
		Seen:      m.MailRead.Bool(),
		CreatedAt: m.MailTimestamp.Unix(),
		Category:  classify.Classify(subject, from.Address, intro),
	}
}
