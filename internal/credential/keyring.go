// Package credential persists mailbox session artifacts in the system
// keyring, keyed by address.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"

	"github.com/nhle/tempmail/internal/model"
)

const (
	serviceName = "tempmail"
	keyPrefix   = "session:"
)

// ErrNoSession is returned by Load when no credential is stored for the
// address, or the stored one belongs to a different address.
var ErrNoSession = errors.New("no stored session")

// Open returns a keyring that falls back to an encrypted file store in dir.
func Open(dir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt("tempmail-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// record is the stored form. Address is kept inside the value so a read
// can prove the credential belongs to the mailbox being queried.
type record struct {
	Address    string           `json:"address"`
	ProviderID string           `json:"provider_id"`
	Credential model.Credential `json:"credential"`
}

// Store saves, loads and clears credentials in a keyring.Keyring.
type Store struct {
	ring keyring.Keyring
}

// NewStore wraps ring. Tests pass keyring.NewArrayKeyring(nil).
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Save writes mb's credential under its address.
func (s *Store) Save(mb model.Mailbox) error {
	if mb.Credential == nil {
		return fmt.Errorf("saving session for %s: no credential", mb.Address)
	}

	data, err := json.Marshal(record{
		Address:    normalize(mb.Address),
		ProviderID: mb.ProviderID,
		Credential: *mb.Credential,
	})
	if err != nil {
		return fmt.Errorf("encoding session for %s: %w", mb.Address, err)
	}

	err = s.ring.Set(keyring.Item{
		Key:         key(mb.Address),
		Data:        data,
		Label:       "tempmail " + mb.Address,
		Description: "disposable mailbox session",
	})
	if err != nil {
		return fmt.Errorf("saving session for %s: %w", mb.Address, err)
	}
	return nil
}

// Load returns the credential stored for address.
func (s *Store) Load(address string) (*model.Credential, error) {
	item, err := s.ring.Get(key(address))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w for %s", ErrNoSession, address)
		}
		return nil, fmt.Errorf("loading session for %s: %w", address, err)
	}

	var rec record
	if err := json.Unmarshal(item.Data, &rec); err != nil {
		return nil, fmt.Errorf("decoding session for %s: %w", address, err)
	}
	if rec.Address != normalize(address) {
		return nil, fmt.Errorf("%w for %s: stored credential belongs to %s", ErrNoSession, address, rec.Address)
	}

	cred := rec.Credential
	return &cred, nil
}

// Attach loads mb's credential into a copy of mb.
func (s *Store) Attach(mb model.Mailbox) (model.Mailbox, error) {
	cred, err := s.Load(mb.Address)
	if err != nil {
		return mb, err
	}
	mb.Credential = cred
	return mb, nil
}

// Clear removes the credential for address. A missing entry is not an error.
func (s *Store) Clear(address string) error {
	err := s.ring.Remove(key(address))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("clearing session for %s: %w", address, err)
	}
	return nil
}

func key(address string) string {
	return keyPrefix + normalize(address)
}

func normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
