package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/vpnda/akahu-sync/db"
	"github.com/vpnda/akahu-sync/pkg/http"
	"github.com/vpnda/akahu-sync/pkg/metrics"
	"github.com/vpnda/akahu-sync/pkg/models"
	"github.com/vpnda/akahu-sync/pkg/store"
)

// ErrUnknownAccountType is reported for entries whose account_type is neither
// On Budget nor Tracking.
var ErrUnknownAccountType = errors.New("unknown account type")

// SyncReport counts what one sync did.
type SyncReport struct {
	Entries  int                     `json:"entries"`
	Pushed   map[models.Provider]int `json:"pushed"`
	Adjusted map[models.Provider]int `json:"adjusted"`
	Skipped  int                     `json:"skipped"`
	Failed   int                     `json:"failed"`
	Saved    bool                    `json:"saved"`
}

// Syncer pushes source transactions and balances into every mapped target account.
type Syncer struct {
	store    *store.Store
	source   http.SourceClient
	targets  []http.TargetClient
	database db.DBInterface
	start    time.Time
	now      func() time.Time
}

// NewSyncer builds a syncer. start is the high-water mark for links that were
// never synced.
func NewSyncer(st *store.Store, source http.SourceClient, targets []http.TargetClient, database db.DBInterface, start time.Time) *Syncer {
	return &Syncer{
		store:    st,
		source:   source,
		targets:  targets,
		database: database,
		start:    start,
		now:      time.Now,
	}
}

// Sync walks the mapping and syncs each linked target. A failing entry is logged
// and does not stop the others. The state is saved once at the end.
func (s *Syncer) Sync(ctx context.Context) (*SyncReport, error) {
	state, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping: %w", err)
	}

	report := &SyncReport{
		Pushed:   make(map[models.Provider]int),
		Adjusted: make(map[models.Provider]int),
	}
	for _, id := range state.Mapping.IDs() {
		entry := state.Mapping[id]
		report.Entries++

		var balance *models.Amount
		for _, target := range s.targets {
			p := target.Provider()
			link := entry.Link(p)
			if entry.IsDoNotMap(p) || !entry.IsMapped(p) || link.BudgetID == "" {
				log.Debug().Str("akahu_id", id).Str("provider", p.String()).Msg("Not linked, skipping sync")
				report.Skipped++
				continue
			}

			switch entry.Type() {
			case models.AccountTypeTracking:
				err = s.syncBalance(ctx, entry, target, &balance, report)
			case models.AccountTypeOnBudget:
				err = s.syncTransactions(ctx, entry, target, report)
			default:
				err = fmt.Errorf("%w %q", ErrUnknownAccountType, entry.AccountType)
			}

			if err != nil {
				if ctx.Err() != nil {
					return report, ctx.Err()
				}
				log.Error().Err(err).
					Str("akahu_id", id).
					Str("provider", p.String()).
					Msg("Error syncing account")
				report.Failed++
				if errors.Is(err, ErrUnknownAccountType) {
					break
				}
				continue
			}
			entry.MarkSynced(p, s.now())
		}
	}

	report.Saved = s.store.Save(state)
	log.Info().
		Int("entries", report.Entries).
		Int("failed", report.Failed).
		Bool("saved", report.Saved).
		Msg("Sync complete")
	return report, nil
}

// syncBalance posts an adjustment when the target balance drifted from the source.
// The source balance is fetched once per entry.
func (s *Syncer) syncBalance(ctx context.Context, entry *models.MappingEntry, target http.TargetClient, cached **models.Amount, report *SyncReport) error {
	p := target.Provider()
	link := entry.Link(p)

	if *cached == nil {
		bal, err := s.source.FetchBalance(ctx, entry.AkahuID)
		if err != nil {
			return fmt.Errorf("failed to fetch akahu balance: %w", err)
		}
		*cached = &bal
		entry.AkahuBalance = lo.ToPtr(bal.Value.InexactFloat64())
	}
	want := **cached

	have, err := target.FetchBalance(ctx, link.BudgetID, link.AccountID)
	if err != nil {
		return fmt.Errorf("failed to fetch %s balance: %w", p, err)
	}

	diff := want.Sub(have)
	if diff.Cents() == 0 {
		log.Debug().Str("akahu_id", entry.AkahuID).Str("provider", p.String()).Msg("Balance already matches")
		return nil
	}

	memo := AdjustmentMemo(have, want)
	if err := target.CreateAdjustment(ctx, link.BudgetID, link.AccountID, diff, memo); err != nil {
		return fmt.Errorf("failed to create balance adjustment: %w", err)
	}
	if err := s.database.RecordAdjustment(&models.BalanceAdjustment{
		AkahuID:         entry.AkahuID,
		Provider:        p,
		TargetAccountID: link.AccountID,
		From:            have,
		To:              want,
	}); err != nil {
		log.Warn().Err(err).Str("akahu_id", entry.AkahuID).Msg("Adjustment posted but not recorded")
	}

	metrics.BalanceAdjustments.WithLabelValues(p.String()).Inc()
	report.Adjusted[p]++
	log.Info().
		Str("akahu_id", entry.AkahuID).
		Str("provider", p.String()).
		Str("memo", memo).
		Msg("Balance adjusted")
	return nil
}

// AdjustmentMemo describes a balance correction.
func AdjustmentMemo(from, to models.Amount) string {
	return fmt.Sprintf("Adjusted from %s to %s based on retrieved balance", from.Display(), to.Display())
}

func (s *Syncer) syncTransactions(ctx context.Context, entry *models.MappingEntry, target http.TargetClient, report *SyncReport) error {
	p := target.Provider()
	link := entry.Link(p)

	since, err := time.Parse(time.RFC3339, entry.SyncedSince(p, ""))
	if err != nil {
		since = s.start
	}

	txns, err := s.source.FetchTransactions(ctx, entry.AkahuID, since)
	if err != nil {
		return fmt.Errorf("failed to fetch akahu transactions: %w", err)
	}

	pending := make([]models.Transaction, 0, len(txns))
	for _, t := range txns {
		synced, err := s.database.IsSynced(t.ID, p)
		if err != nil {
			return err
		}
		if !synced {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		log.Debug().Str("akahu_id", entry.AkahuID).Str("provider", p.String()).Msg("No new transactions")
		return nil
	}

	res, err := target.PushTransactions(ctx, link.BudgetID, link.AccountID, pending)
	if err != nil {
		return fmt.Errorf("failed to push transactions to %s: %w", p, err)
	}

	byID := lo.KeyBy(pending, func(t models.Transaction) string { return t.ID })
	for _, id := range append(res.Imported, res.Duplicates...) {
		t, ok := byID[id]
		if !ok {
			continue
		}
		if err := s.database.RecordSynced(&models.SyncRecord{
			AkahuID:         t.ID,
			Provider:        p,
			TargetAccountID: link.AccountID,
			Amount:          t.Amount,
			Date:            t.Date,
		}); err != nil {
			return err
		}
	}

	metrics.TransactionsPushed.WithLabelValues(p.String()).Add(float64(len(res.Imported)))
	report.Pushed[p] += len(res.Imported)
	log.Info().
		Str("akahu_id", entry.AkahuID).
		Str("provider", p.String()).
		Int("imported", len(res.Imported)).
		Int("duplicates", len(res.Duplicates)).
		Msg("Transactions pushed")
	return nil
}
