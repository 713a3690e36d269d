package ingest

import (
	"github.com/401-Nick/lra-alerts/internal/models"
)

// Classify partitions the incoming listing set against stored state.
// Every incoming ID and every stored non-removed ID lands in exactly one
// of {added, changed, removed, unchanged}:
//
//   - ID not in stored state            -> added
//   - fingerprint differs               -> changed
//   - stored record was flagged removed -> changed (a reappearance keeps
//     its history; it is never re-added)
//   - otherwise                         -> unchanged
//
// Stored IDs absent from the incoming set that are not already flagged
// removed are classified removed. Records already flagged removed and
// still absent are left alone.
//
// Classify fills each incoming listing's Fingerprint as a side effect.
// The Removed partition carries only listing IDs at this point; callers
// hydrate the remaining fields from stored state when they need them.
func Classify(incoming []models.Listing, stored map[string]models.DiffState) models.Diff {
	var diff models.Diff

	incomingIDs := make(map[string]struct{}, len(incoming))

	for i := range incoming {
		l := &incoming[i]
		incomingIDs[l.ID] = struct{}{}
		l.Fingerprint = Fingerprint(l)

		prev, exists := stored[l.ID]
		switch {
		case !exists:
			diff.Added = append(diff.Added, *l)
		case prev.Fingerprint != l.Fingerprint || prev.Removed:
			diff.Changed = append(diff.Changed, *l)
		default:
			diff.Unchanged++
		}
	}

	for id, prev := range stored {
		if prev.Removed {
			continue
		}
		if _, present := incomingIDs[id]; present {
			continue
		}
		diff.Removed = append(diff.Removed, models.Listing{ID: id})
	}

	return diff
}
