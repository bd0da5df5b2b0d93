package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/store"
	"github.com/nhle/tempmail/tests/testutil"
)

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	older := model.Mailbox{
		ID: "1", Address: "Old@A.example", ProviderID: "mailtm",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := model.Mailbox{
		ID: "2", Address: "new@b.example", ProviderID: "guerrilla",
		CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveAccount(ctx, older))
	require.NoError(t, s.SaveAccount(ctx, newer))

	got, err := s.GetAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "old@a.example", got[1].Address)
	assert.Equal(t, older.CreatedAt.Unix(), got[1].CreatedAt.Unix())
	assert.Nil(t, got[0].Credential)

	one, err := s.GetAccount(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "guerrilla", one.ProviderID)

	_, err = s.GetAccount(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteAccount(ctx, "1"))
	require.NoError(t, s.DeleteAccount(ctx, "1"))
	got, err = s.GetAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, s.DeleteAllAccounts(ctx))
	got, err = s.GetAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSaveAccount_RequiresIdentity(t *testing.T) {
	s := testutil.NewTestStore(t)
	assert.Error(t, s.SaveAccount(context.Background(), model.Mailbox{Address: "a@b.c"}))
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	got, err := s.GetCache(ctx, "a@b.c")
	require.NoError(t, err)
	assert.Nil(t, got)

	emails := []model.EmailSummary{
		{ID: "2", Subject: "second", Category: model.CategoryOther},
		{ID: "1", Subject: "first", From: model.Sender{Address: "x@y.z", Name: "x"}},
	}
	require.NoError(t, s.SaveCache(ctx, "A@B.c", emails))

	got, err = s.GetCache(ctx, "a@b.c")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Subject)
	assert.Equal(t, "x@y.z", got[1].From.Address)

	require.NoError(t, s.SaveCache(ctx, "a@b.c", nil))
	got, err = s.GetCache(ctx, "a@b.c")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	require.NoError(t, s.DeleteCache(ctx, "a@b.c"))
	got, err = s.GetCache(ctx, "a@b.c")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteAccount_DropsCache(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	require.NoError(t, s.SaveAccount(ctx, model.Mailbox{ID: "1", Address: "a@b.c", ProviderID: "p"}))
	require.NoError(t, s.SaveCache(ctx, "a@b.c", []model.EmailSummary{{ID: "m"}}))
	require.NoError(t, s.DeleteAccount(ctx, "1"))

	got, err := s.GetCache(ctx, "a@b.c")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPruneOrphanCache(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	require.NoError(t, s.SaveAccount(ctx, model.Mailbox{ID: "1", Address: "kept@b.c", ProviderID: "p"}))
	require.NoError(t, s.SaveCache(ctx, "kept@b.c", []model.EmailSummary{{ID: "m"}}))
	require.NoError(t, s.SaveCache(ctx, "gone@b.c", []model.EmailSummary{{ID: "m"}}))

	n, err := s.PruneOrphanCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	kept, err := s.GetCache(ctx, "kept@b.c")
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestCreationLog(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordCreation(ctx, "a@b.c", "p", now.Add(-72*time.Hour)))
	require.NoError(t, s.RecordCreation(ctx, "b@b.c", "p", now.Add(-2*time.Hour)))
	require.NoError(t, s.RecordCreation(ctx, "c@b.c", "p", now))

	n, err := s.CountCreationsSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pruned, err := s.PruneCreations(ctx, now.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	n, err = s.CountCreationsSince(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
