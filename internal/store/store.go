package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/tempmail/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines local persistence for the account list, the per-address
// message cache, and the creation log used for daily limits.
type Store interface {
	// === Accounts ===

	SaveAccount(ctx context.Context, mb model.Mailbox) error
	GetAccounts(ctx context.Context) ([]model.Mailbox, error)
	GetAccount(ctx context.Context, id string) (*model.Mailbox, error)
	DeleteAccount(ctx context.Context, id string) error
	DeleteAllAccounts(ctx context.Context) error

	// === Message cache ===

	SaveCache(ctx context.Context, address string, emails []model.EmailSummary) error
	GetCache(ctx context.Context, address string) ([]model.EmailSummary, error)
	DeleteCache(ctx context.Context, address string) error
	PruneOrphanCache(ctx context.Context) (int64, error)

	// === Creation log ===

	RecordCreation(ctx context.Context, address, providerID string, at time.Time) error
	CountCreationsSince(ctx context.Context, since time.Time) (int, error)
	PruneCreations(ctx context.Context, before time.Time) (int64, error)
}
