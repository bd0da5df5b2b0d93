package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/transport"
)

var (
	// ErrNetworkTimeout is a per-request deadline hit in the transport.
	ErrNetworkTimeout = transport.ErrTimeout

	// ErrMalformedResponse is a non-JSON or schema-mismatched body.
	ErrMalformedResponse = transport.ErrMalformed

	// ErrUsernameTaken is a conflict on account creation.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidCredential is a stale or missing credential on read.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrProvider is any other backend failure.
	ErrProvider = errors.New("provider error")

	// ErrUnknownProvider is returned for an id not in the registry.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Account is the result of a successful account-creation call.
type Account struct {
	ID      string
	Address string

	// SessionID is set by session-token providers, whose account creation
	// already opens a session that Authenticate then confirms.
	SessionID string
}

// Backend is one third-party mail service.
type Backend interface {
	// Descriptor returns the static configuration of this backend.
	Descriptor() model.ProviderDescriptor

	// Domains lists the domains new addresses can be created on.
	Domains(ctx context.Context) ([]string, error)

	// CreateAccount registers localPart@domain. A conflict maps to
	// ErrUsernameTaken. Session providers may assign a different address;
	// the returned Account is authoritative.
	CreateAccount(ctx context.Context, localPart, domain, password string) (*Account, error)

	// Authenticate exchanges account credentials for a session artifact.
	Authenticate(ctx context.Context, acct Account, password string) (*model.Credential, error)

	// ListMessages returns the first page of the mailbox's messages.
	ListMessages(ctx context.Context, mb model.Mailbox) ([]model.EmailSummary, error)

	// GetMessage returns one message, or ErrInvalidCredential / a 404
	// Failure when it no longer exists.
	GetMessage(ctx context.Context, mb model.Mailbox, id string) (*model.EmailDetail, error)

	// DeleteMessage removes a message on the backend.
	DeleteMessage(ctx context.Context, mb model.Mailbox, id string) error
}

// New builds the backend for a descriptor's auth scheme.
func New(desc model.ProviderDescriptor, chain *transport.Chain) (Backend, error) {
	switch desc.AuthScheme {
	case model.AuthBearerToken:
		return NewBearer(desc, chain), nil
	case model.AuthSessionToken:
		return NewSession(desc, chain), nil
	default:
		return nil, fmt.Errorf(
			"provider %q: unsupported auth scheme %q", desc.ID, desc.AuthScheme,
		)
	}
}

// wrapFailure maps a transport failure onto the provider error taxonomy.
func wrapFailure(err error, op string) error {
	if err == nil {
		return nil
	}
	switch transport.StatusOf(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidCredential, err)
	}
	if errors.Is(err, ErrNetworkTimeout) || errors.Is(err, ErrMalformedResponse) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrProvider, err)
}

// requireCredential checks the mailbox carries what its scheme needs.
func requireCredential(mb model.Mailbox, scheme model.AuthScheme) error {
	if !mb.Credential.Usable(scheme) {
		return fmt.Errorf("mailbox %s: %w", mb.Address, ErrInvalidCredential)
	}
	return nil
}
