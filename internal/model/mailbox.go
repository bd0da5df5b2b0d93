package model

import (
	"strings"
	"time"
)

// AuthScheme identifies how a provider authenticates read operations.
type AuthScheme string

const (
	// AuthBearerToken providers issue a token sent in the Authorization header.
	AuthBearerToken AuthScheme = "bearer"

	// AuthSessionToken providers issue a session id sent as a query parameter.
	AuthSessionToken AuthScheme = "session"
)

// RequiresCredential reports whether mailboxes on this scheme need a stored
// credential to list or read messages.
func (s AuthScheme) RequiresCredential() bool {
	return s == AuthBearerToken || s == AuthSessionToken
}

// Credential is the session artifact needed to read a mailbox. Bearer
// providers fill Token; session providers fill SessionID and Alias.
type Credential struct {
	Token     string `json:"token,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Alias     string `json:"alias,omitempty"`

	// Password is kept so a bearer token can be re-issued after expiry.
	Password string `json:"password,omitempty"`
}

// Usable reports whether the credential carries the artifact required by scheme.
func (c *Credential) Usable(scheme AuthScheme) bool {
	if c == nil {
		return !scheme.RequiresCredential()
	}
	switch scheme {
	case AuthBearerToken:
		return c.Token != ""
	case AuthSessionToken:
		return c.SessionID != ""
	default:
		return true
	}
}

// Mailbox is a provisioned disposable address bound to one provider.
type Mailbox struct {
	// ID is the provider's account id, or a generated UUID when the
	// provider does not return one.
	ID string `json:"id" db:"id"`

	// Address is the full email address, unique across active mailboxes.
	Address string `json:"address" db:"address"`

	// ProviderID names the registry entry that owns this mailbox.
	ProviderID string `json:"provider_id" db:"provider_id"`

	// Credential is loaded from the session store and never persisted
	// alongside the account list.
	Credential *Credential `json:"-" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// LocalPart returns the portion of the address before '@'.
func (m Mailbox) LocalPart() string {
	local, _, _ := strings.Cut(m.Address, "@")
	return local
}

// Domain returns the portion of the address after '@'.
func (m Mailbox) Domain() string {
	_, domain, _ := strings.Cut(m.Address, "@")
	return domain
}
