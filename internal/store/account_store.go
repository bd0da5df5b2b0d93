package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/tempmail/internal/model"
)

// accountRow is the persisted shape of a mailbox; credentials live in the
// keyring, never here.
type accountRow struct {
	ID         string    `db:"id"`
	Address    string    `db:"address"`
	ProviderID string    `db:"provider_id"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r accountRow) mailbox() model.Mailbox {
	return model.Mailbox{
		ID:         r.ID,
		Address:    r.Address,
		ProviderID: r.ProviderID,
		CreatedAt:  r.CreatedAt,
	}
}

// SaveAccount inserts or replaces a mailbox in the account list.
func (s *SQLiteStore) SaveAccount(ctx context.Context, mb model.Mailbox) error {
	if mb.ID == "" || mb.Address == "" {
		return fmt.Errorf("saving account: id and address are required")
	}
	createdAt := mb.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO accounts (id, address, provider_id, created_at)
		VALUES (?, ?, ?, ?)`,
		mb.ID, strings.ToLower(mb.Address), mb.ProviderID, createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving account %s: %w", mb.Address, err)
	}
	return nil
}

// GetAccounts returns every stored mailbox, newest first.
func (s *SQLiteStore) GetAccounts(ctx context.Context) ([]model.Mailbox, error) {
	var rows []accountRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, address, provider_id, created_at
		FROM accounts
		ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}

	out := make([]model.Mailbox, len(rows))
	for i, r := range rows {
		out[i] = r.mailbox()
	}
	return out, nil
}

// GetAccount returns one mailbox by id.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*model.Mailbox, error) {
	var r accountRow
	err := s.db.GetContext(ctx, &r,
		"SELECT id, address, provider_id, created_at FROM accounts WHERE id = ?", id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting account %s: %w", id, err)
	}
	mb := r.mailbox()
	return &mb, nil
}

// DeleteAccount removes a mailbox and its cached messages.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var address string
	err = tx.GetContext(ctx, &address, "SELECT address FROM accounts WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up account %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM message_cache WHERE address = ?", address); err != nil {
		return fmt.Errorf("deleting cache for %s: %w", address, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting account %s: %w", id, err)
	}

	return tx.Commit()
}

// DeleteAllAccounts clears the account list and every cache entry.
func (s *SQLiteStore) DeleteAllAccounts(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM message_cache"); err != nil {
		return fmt.Errorf("clearing message cache: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM accounts"); err != nil {
		return fmt.Errorf("clearing accounts: %w", err)
	}

	return tx.Commit()
}
