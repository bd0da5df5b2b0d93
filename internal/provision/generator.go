package provision

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	localPartAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	passwordAlphabet  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	localPartLength = 10
	passwordLength  = 16
)

// Generator synthesizes random local parts and passwords. Mailboxes are
// disposable, so values need to be unlikely to collide, not secret.
type Generator interface {
	LocalPart() (string, error)
	Password() (string, error)
}

// NanoidGenerator draws from fixed alphabets with go-nanoid.
type NanoidGenerator struct{}

func (NanoidGenerator) LocalPart() (string, error) {
	return gonanoid.Generate(localPartAlphabet, localPartLength)
}

func (NanoidGenerator) Password() (string, error) {
	return gonanoid.Generate(passwordAlphabet, passwordLength)
}
