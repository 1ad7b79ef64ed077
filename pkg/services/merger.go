package services

import (
	"maps"
	"time"

	"github.com/vpnda/akahu-sync/pkg/models"
)

// CombineAccounts merges a fresh fetch with the persisted collection for one provider.
// Shared accounts take every field from the fresh record except date_first_loaded,
// which is carried over from the persisted one. Accounts that only exist in the
// persisted collection stay in the result and are reported as deleted; removing them
// is up to the caller. Neither input is modified.
func CombineAccounts(latest, existing models.Accounts, now time.Time) (models.Accounts, []string) {
	stamp := models.FormatTimestamp(now)
	combined := make(models.Accounts, len(latest)+len(existing))

	for id, acc := range latest {
		c := acc.Clone()
		c.ID = id
		c.Seq = 0
		if prev, ok := existing[id]; ok && prev.DateFirstLoaded != "" {
			c.DateFirstLoaded = prev.DateFirstLoaded
		} else {
			c.DateFirstLoaded = stamp
		}
		combined[id] = c
	}

	var deleted []string
	for _, id := range existing.IDs() {
		if _, ok := latest[id]; ok {
			continue
		}
		deleted = append(deleted, id)
		combined[id] = existing[id].Clone()
	}
	return combined, deleted
}

// ChangeSet records, per provider, whether the fetched accounts differ from the
// persisted ones.
type ChangeSet map[models.Provider]bool

// Any reports whether at least one provider changed.
func (c ChangeSet) Any() bool {
	for _, changed := range c {
		if changed {
			return true
		}
	}
	return false
}

// Unchanged reports whether p's snapshot is identical.
func (c ChangeSet) Unchanged(p models.Provider) bool {
	return !c[p]
}

// CheckForChanges compares the persisted and fetched collections per provider: a
// provider changed when its id set differs or any shared account's scalar
// projection differs. Bookkeeping fields are ignored.
func CheckForChanges(existing, latest map[models.Provider]models.Accounts) ChangeSet {
	providers := make(map[models.Provider]struct{}, len(models.AllProviders))
	for _, p := range models.AllProviders {
		providers[p] = struct{}{}
	}
	for p := range existing {
		providers[p] = struct{}{}
	}
	for p := range latest {
		providers[p] = struct{}{}
	}

	changes := make(ChangeSet, len(providers))
	for p := range providers {
		changes[p] = accountsDiffer(existing[p], latest[p])
	}
	return changes
}

func accountsDiffer(existing, latest models.Accounts) bool {
	if len(existing) != len(latest) {
		return true
	}
	for id, acc := range latest {
		prev, ok := existing[id]
		if !ok {
			return true
		}
		if !maps.Equal(prev.Projection(), acc.Projection()) {
			return true
		}
	}
	return false
}
