package sync

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/nhle/tempmail/internal/model"
)

// Merge folds fetched into prev keyed by message id, with fetched entries
// replacing stale local copies, drops tombstoned ids, and returns the
// result newest first. Neither input is modified.
func Merge(
	prev, fetched []model.EmailSummary,
	tombstones map[string]struct{},
) []model.EmailSummary {
	byID := make(map[string]model.EmailSummary, len(prev)+len(fetched))
	for _, e := range prev {
		byID[e.ID] = e
	}
	for _, e := range fetched {
		byID[e.ID] = e
	}

	out := make([]model.EmailSummary, 0, len(byID))
	for id, e := range byID {
		if _, dead := tombstones[id]; dead || id == "" {
			continue
		}
		out = append(out, e)
	}
	SortByRecency(out)
	return out
}

// SortByRecency orders emails by CreatedAt descending. Equal timestamps
// fall back to the id, compared numerically when both ids are numbers.
func SortByRecency(emails []model.EmailSummary) {
	slices.SortFunc(emails, func(a, b model.EmailSummary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(b.ID, a.ID)
	})
}

func compareIDs(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	if aErr == nil && bErr == nil {
		return cmp.Compare(ai, bi)
	}
	return cmp.Compare(a, b)
}

// withoutTombstones returns emails minus tombstoned ids.
func withoutTombstones(
	emails []model.EmailSummary,
	tombstones map[string]struct{},
) []model.EmailSummary {
	out := make([]model.EmailSummary, 0, len(emails))
	for _, e := range emails {
		if _, dead := tombstones[e.ID]; !dead {
			out = append(out, e)
		}
	}
	return out
}

// fingerprint is what decides whether a new list is worth re-rendering.
type fingerprint struct {
	length int
	newest string
}

func fingerprintOf(emails []model.EmailSummary) fingerprint {
	f := fingerprint{length: len(emails)}
	if len(emails) > 0 {
		f.newest = emails[0].ID
	}
	return f
}
