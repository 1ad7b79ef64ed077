package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/vpnda/akahu-sync/pkg/models"
)

// ErrMalformedInput is returned when the reconciler is handed structurally broken data.
var ErrMalformedInput = errors.New("malformed reconciliation input")

// ReconcileInput is everything MergeAndUpdateMapping works on. Nothing in it is modified.
type ReconcileInput struct {
	Mapping  models.Mapping
	Latest   map[models.Provider]models.Accounts
	Existing map[models.Provider]models.Accounts
}

// StaleLink is a target link pointing at an account the provider no longer has.
type StaleLink struct {
	AkahuID   string
	Provider  models.Provider
	AccountID string
}

// ReconcileResult is the outcome of one merge.
type ReconcileResult struct {
	Mapping models.Mapping
	// Accounts is the merged collection per provider. Deleted accounts are only
	// absent when the deletion was confirmed.
	Accounts map[models.Provider]models.Accounts
	// Active is Accounts without the deleted ids, the working set for matching.
	Active  map[models.Provider]models.Accounts
	Deleted map[models.Provider][]string
	// StaleEntries are mapping entries whose source account is gone.
	StaleEntries []string
	StaleLinks   []StaleLink
	// Confirmed is true when pending deletions were applied.
	Confirmed bool
}

// PendingDeletions is the number of changes waiting on confirmation.
func (r *ReconcileResult) PendingDeletions() int {
	n := len(r.StaleEntries) + len(r.StaleLinks)
	for _, ids := range r.Deleted {
		n += len(ids)
	}
	return n
}

type Reconciler struct {
	confirmer Confirmer
	now       func() time.Time
}

func NewReconciler(confirmer Confirmer) *Reconciler {
	return &Reconciler{confirmer: confirmer, now: time.Now}
}

// MergeAndUpdateMapping merges every provider's accounts and, once confirmed, prunes
// deleted accounts along with the mapping data pointing at them. Without confirmation
// the mapping and the collections keep the deleted data, so the same deletions are
// found again on the next run.
func (r *Reconciler) MergeAndUpdateMapping(ctx context.Context, in ReconcileInput) (*ReconcileResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	now := r.now()
	res := &ReconcileResult{
		Mapping:  in.Mapping.Clone(),
		Accounts: make(map[models.Provider]models.Accounts, len(models.AllProviders)),
		Active:   make(map[models.Provider]models.Accounts, len(models.AllProviders)),
		Deleted:  make(map[models.Provider][]string),
	}
	for _, p := range models.AllProviders {
		combined, deleted := CombineAccounts(in.Latest[p], in.Existing[p], now)
		res.Accounts[p] = combined
		res.Active[p] = combined.Without(deleted)
		if len(deleted) > 0 {
			res.Deleted[p] = deleted
		}
	}

	source := res.Active[models.SourceProvider]
	for _, id := range res.Mapping.IDs() {
		if _, ok := source[id]; !ok {
			res.StaleEntries = append(res.StaleEntries, id)
			continue
		}
		entry := res.Mapping[id]
		for _, p := range models.TargetProviders {
			l := entry.Link(p)
			if l == nil || l.AccountID == "" {
				continue
			}
			if _, ok := res.Active[p][l.AccountID]; !ok {
				res.StaleLinks = append(res.StaleLinks, StaleLink{AkahuID: id, Provider: p, AccountID: l.AccountID})
			}
		}
	}

	if res.PendingDeletions() == 0 {
		return res, nil
	}

	question := r.summary(res)
	ok, err := r.confirmer.Confirm(ctx, question)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		log.Warn().Err(err).Msg("No answer to the deletion prompt, keeping everything for now")
		ok = false
	}
	if !ok {
		log.Info().Int("pending", res.PendingDeletions()).Msg("Deletions deferred to the next run")
		return res, nil
	}

	for p, ids := range res.Deleted {
		for _, id := range ids {
			delete(res.Accounts[p], id)
		}
	}
	for _, id := range res.StaleEntries {
		delete(res.Mapping, id)
	}
	for _, s := range res.StaleLinks {
		res.Mapping[s.AkahuID].ClearLink(s.Provider)
	}
	res.Confirmed = true

	log.Info().
		Int("entries_removed", len(res.StaleEntries)).
		Int("links_cleared", len(res.StaleLinks)).
		Msg("Applied deletions")
	return res, nil
}

func (r *Reconciler) summary(res *ReconcileResult) string {
	parts := make([]string, 0, len(models.AllProviders)+2)
	for _, p := range models.AllProviders {
		if n := len(res.Deleted[p]); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s account(s) no longer returned", n, p))
		}
	}
	if n := len(res.StaleEntries); n > 0 {
		parts = append(parts, fmt.Sprintf("%d mapping entries to remove", n))
	}
	if n := len(res.StaleLinks); n > 0 {
		byProvider := lo.CountValuesBy(res.StaleLinks, func(s StaleLink) models.Provider { return s.Provider })
		for _, p := range models.TargetProviders {
			if c := byProvider[p]; c > 0 {
				parts = append(parts, fmt.Sprintf("%d %s link(s) to clear", c, p))
			}
		}
	}
	return fmt.Sprintf("Found %s. Apply these deletions?", joinList(parts))
}

func joinList(parts []string) string {
	switch len(parts) {
	case 0:
		return "no changes"
	case 1:
		return parts[0]
	}
	out := parts[0]
	for _, p := range parts[1 : len(parts)-1] {
		out += ", " + p
	}
	return out + " and " + parts[len(parts)-1]
}

func validateInput(in ReconcileInput) error {
	if in.Latest == nil {
		return fmt.Errorf("%w: no fetched accounts", ErrMalformedInput)
	}
	if _, ok := in.Latest[models.SourceProvider]; !ok {
		return fmt.Errorf("%w: no %s accounts fetched", ErrMalformedInput, models.SourceProvider)
	}
	for id, e := range in.Mapping {
		if e == nil {
			return fmt.Errorf("%w: mapping entry %q is nil", ErrMalformedInput, id)
		}
		for p, l := range e.Links {
			if l != nil && l.AccountID != "" && l.DoNotMap {
				return fmt.Errorf("%w: mapping entry %q is both linked and do-not-map for %s", ErrMalformedInput, id, p)
			}
		}
	}
	for p, as := range in.Latest {
		for id, acc := range as {
			if acc == nil {
				return fmt.Errorf("%w: %s account %q is nil", ErrMalformedInput, p, id)
			}
		}
	}
	return nil
}
