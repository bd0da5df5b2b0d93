package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/tempmail/internal/model"
)

// SaveCache replaces the cached message list for address.
func (s *SQLiteStore) SaveCache(
	ctx context.Context,
	address string,
	emails []model.EmailSummary,
) error {
	if emails == nil {
		emails = []model.EmailSummary{}
	}
	data, err := json.Marshal(emails)
	if err != nil {
		return fmt.Errorf("marshaling cache for %s: %w", address, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO message_cache (address, messages, updated_at)
		VALUES (?, ?, ?)`,
		strings.ToLower(address), string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving cache for %s: %w", address, err)
	}
	return nil
}

// GetCache returns the cached list for address, or nil when there is none.
func (s *SQLiteStore) GetCache(
	ctx context.Context,
	address string,
) ([]model.EmailSummary, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw,
		"SELECT messages FROM message_cache WHERE address = ?", strings.ToLower(address),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache for %s: %w", address, err)
	}

	var emails []model.EmailSummary
	if err := json.Unmarshal([]byte(raw), &emails); err != nil {
		return nil, fmt.Errorf("decoding cache for %s: %w", address, err)
	}
	return emails, nil
}

// DeleteCache drops the cached list for address.
func (s *SQLiteStore) DeleteCache(ctx context.Context, address string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM message_cache WHERE address = ?", strings.ToLower(address),
	)
	if err != nil {
		return fmt.Errorf("deleting cache for %s: %w", address, err)
	}
	return nil
}

// PruneOrphanCache deletes cache rows whose address is no longer in the
// account list and returns how many were removed.
func (s *SQLiteStore) PruneOrphanCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM message_cache
		WHERE address NOT IN (SELECT address FROM accounts)`,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning orphan cache: %w", err)
	}
	return res.RowsAffected()
}
