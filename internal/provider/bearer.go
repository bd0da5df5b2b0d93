package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/nhle/tempmail/internal/classify"
	"github.com/nhle/tempmail/internal/htmlfix"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/transport"
)

// Bearer is a backend that issues a token from POST /token and expects it
// in the Authorization header (mail.tm and compatible APIs).
type Bearer struct {
	desc    model.ProviderDescriptor
	baseURL string
	chain   *transport.Chain
}

// NewBearer creates a bearer-token backend.
func NewBearer(desc model.ProviderDescriptor, chain *transport.Chain) *Bearer {
	return &Bearer{
		desc:    desc,
		baseURL: strings.TrimRight(desc.BaseURL, "/"),
		chain:   chain,
	}
}

// Descriptor returns the backend's static configuration.
func (b *Bearer) Descriptor() model.ProviderDescriptor {
	return b.desc
}

// Domains lists active domains from GET /domains.
func (b *Bearer) Domains(ctx context.Context) ([]string, error) {
	var resp collection[bearerDomain]
	if err := b.chain.Get(ctx, b.url(b.desc.DomainsEndpoint), nil, &resp); err != nil {
		return nil, wrapFailure(err, "listing domains")
	}

	domains := make([]string, 0, len(resp.Members))
	for _, d := range resp.Members {
		if d.Domain == "" || (d.IsActive != nil && !*d.IsActive) {
			continue
		}
		domains = append(domains, d.Domain)
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("listing domains: %w: no active domains", ErrMalformedResponse)
	}
	return domains, nil
}

// CreateAccount registers the address with POST /accounts.
func (b *Bearer) CreateAccount(
	ctx context.Context,
	localPart, domain, password string,
) (*Account, error) {
	address := localPart + "@" + domain

	var resp bearerAccount
	err := b.chain.Post(ctx, b.url(b.desc.AccountsEndpoint), nil,
		bearerAccountRequest{Address: address, Password: password}, &resp,
	)
	if err != nil {
		if isConflict(err) {
			return nil, fmt.Errorf("creating %s: %w", address, ErrUsernameTaken)
		}
		return nil, wrapFailure(err, "creating account")
	}

	if resp.Address == "" {
		resp.Address = address
	}
	return &Account{ID: resp.ID, Address: resp.Address}, nil
}

// Authenticate exchanges address and password for a token.
func (b *Bearer) Authenticate(
	ctx context.Context,
	acct Account,
	password string,
) (*model.Credential, error) {
	var resp bearerToken
	err := b.chain.Post(ctx, b.url(b.desc.TokenEndpoint), nil,
		bearerAccountRequest{Address: acct.Address, Password: password}, &resp,
	)
	if err != nil {
		return nil, wrapFailure(err, "requesting token")
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("requesting token: %w: empty token", ErrMalformedResponse)
	}
	return &model.Credential{Token: resp.Token, Password: password}, nil
}

// ListMessages returns page 1 of GET /messages.
func (b *Bearer) ListMessages(
	ctx context.Context,
	mb model.Mailbox,
) ([]model.EmailSummary, error) {
	if err := requireCredential(mb, b.desc.AuthScheme); err != nil {
		return nil, err
	}

	var resp collection[bearerMessage]
	target := b.url(b.desc.MessagesEndpoint) + "?page=1"
	if err := b.chain.Get(ctx, target, b.auth(mb), &resp); err != nil {
		return nil, wrapFailure(err, "listing messages")
	}

	out := make([]model.EmailSummary, 0, len(resp.Members))
	for _, m := range resp.Members {
		out = append(out, m.summary())
	}
	return out, nil
}

// GetMessage fetches GET /messages/{id}.
func (b *Bearer) GetMessage(
	ctx context.Context,
	mb model.Mailbox,
	id string,
) (*model.EmailDetail, error) {
	if err := requireCredential(mb, b.desc.AuthScheme); err != nil {
		return nil, err
	}

	var m bearerMessage
	target := b.url(b.desc.MessagesEndpoint) + "/" + url.PathEscape(id)
	if err := b.chain.Get(ctx, target, b.auth(mb), &m); err != nil {
		return nil, wrapFailure(err, "fetching message "+id)
	}

	d := &model.EmailDetail{
		EmailSummary:   m.summary(),
		Text:           m.Text,
		HTML:           []string(m.HTML),
		HasAttachments: m.HasAttachments || len(m.Attachments) > 0,
	}
	d.Seen = true
	for _, a := range m.Attachments {
		ref := model.AttachmentRef{
			ID:          a.ID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
			DownloadURL: a.DownloadURL,
		}
		if strings.HasPrefix(ref.DownloadURL, "/") {
			ref.DownloadURL = b.baseURL + ref.DownloadURL
		}
		d.Attachments = append(d.Attachments, ref)
	}
	return d, nil
}

// DeleteMessage issues DELETE /messages/{id}.
func (b *Bearer) DeleteMessage(ctx context.Context, mb model.Mailbox, id string) error {
	if err := requireCredential(mb, b.desc.AuthScheme); err != nil {
		return err
	}

	endpoint := b.desc.DeleteEndpoint
	if endpoint == "" {
		endpoint = b.desc.MessagesEndpoint
	}
	target := b.url(endpoint) + "/" + url.PathEscape(id)
	if err := b.chain.Delete(ctx, target, b.auth(mb)); err != nil {
		return wrapFailure(err, "deleting message "+id)
	}
	return nil
}

func (b *Bearer) url(path string) string {
	return b.baseURL + path
}

func (b *Bearer) auth(mb model.Mailbox) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+mb.Credential.Token)
	return h
}

// summary converts a wire message into the normalized list shape.
func (m bearerMessage) summary() model.EmailSummary {
	subject := htmlfix.DecodeEntities(m.Subject)
	intro := htmlfix.DecodeEntities(m.Intro)
	return model.EmailSummary{
		ID:        m.ID,
		From:      m.From,
		Subject:   subject,
		Intro:     intro,
		Seen:      m.Seen,
		CreatedAt: m.CreatedAt,
		Category:  classify.Classify(subject, m.From.Address, intro),
	}
}

// isConflict reports a 409/422 account-creation response.
func isConflict(err error) bool {
	var f *transport.Failure
	return errors.As(err, &f) &&
		f.HasStatus(http.StatusConflict, http.StatusUnprocessableEntity)
}
