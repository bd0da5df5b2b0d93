package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RecordCreation appends one mailbox creation to the log.
func (s *SQLiteStore) RecordCreation(
	ctx context.Context,
	address, providerID string,
	at time.Time,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO creation_log (address, provider_id, created_at)
		VALUES (?, ?, ?)`,
		strings.ToLower(address), providerID, at.Unix(),
	)
	if err != nil {
		return fmt.Errorf("recording creation of %s: %w", address, err)
	}
	return nil
}

// CountCreationsSince counts creations at or after since.
func (s *SQLiteStore) CountCreationsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM creation_log WHERE created_at >= ?", since.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("counting creations: %w", err)
	}
	return n, nil
}

// PruneCreations deletes log rows older than before.
func (s *SQLiteStore) PruneCreations(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM creation_log WHERE created_at < ?", before.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning creation log: %w", err)
	}
	return res.RowsAffected()
}
