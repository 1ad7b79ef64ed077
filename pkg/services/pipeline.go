package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/vpnda/akahu-sync/pkg/http"
	"github.com/vpnda/akahu-sync/pkg/metrics"
	"github.com/vpnda/akahu-sync/pkg/models"
	"github.com/vpnda/akahu-sync/pkg/store"
)

// ErrAlreadyInitialized is returned by Init when a mapping file is already present.
var ErrAlreadyInitialized = errors.New("mapping file already exists")

// Reconciliation runs one full fetch, merge, match and save pass.
type Reconciliation struct {
	Store  *store.Store
	Source http.AccountFetcher
	// Targets holds the enabled targets only. Disabled ones keep their stored accounts.
	Targets    []http.TargetClient
	Reconciler *Reconciler
	Matcher    *Matcher
	// MetricsTextfile, when set, receives the counters after each run.
	MetricsTextfile string
}

type RunOptions struct {
	// Force runs the matching pass even when no provider changed.
	Force bool
}

// RunReport describes one pass.
type RunReport struct {
	Changes   ChangeSet
	Reconcile *ReconcileResult
	Matches   []MatchSummary
	Saved     bool
}

// Init writes an empty mapping file. It refuses to overwrite an existing one.
func (r *Reconciliation) Init() error {
	if _, err := os.Stat(r.Store.Path()); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, r.Store.Path())
	}
	if !r.Store.Save(r.Store.Bootstrap()) {
		return fmt.Errorf("failed to write %s", r.Store.Path())
	}
	return nil
}

// Run loads the stored state, fetches every enabled provider, merges, runs the
// matching pass when something changed and saves. Nothing is saved when loading
// or fetching fails, or when ctx is cancelled.
func (r *Reconciliation) Run(ctx context.Context, opts RunOptions) (report *RunReport, err error) {
	defer func() {
		outcome := "saved"
		switch {
		case err != nil:
			outcome = "error"
		case !report.Saved:
			outcome = "save_failed"
		}
		metrics.ReconcileRuns.WithLabelValues(outcome).Inc()
		if werr := metrics.WriteTextfile(r.MetricsTextfile); werr != nil {
			log.Warn().Err(werr).Str("path", r.MetricsTextfile).Msg("Failed to write metrics textfile")
		}
	}()

	state, err := r.Store.Load()
	if err != nil {
		return nil, err
	}

	latest, err := r.fetchAll(ctx, state)
	if err != nil {
		return nil, err
	}

	report = &RunReport{Changes: CheckForChanges(state.Accounts, latest)}

	res, err := r.Reconciler.MergeAndUpdateMapping(ctx, ReconcileInput{
		Mapping:  state.Mapping,
		Latest:   latest,
		Existing: state.Accounts,
	})
	if err != nil {
		return nil, err
	}
	report.Reconcile = res
	next := &models.State{Accounts: res.Accounts, Mapping: res.Mapping}

	if report.Changes.Any() || opts.Force {
		for _, target := range r.Targets {
			p := target.Provider()
			summary, err := r.Matcher.MatchAccounts(ctx, next.Mapping,
				res.Active[models.SourceProvider], res.Active[p],
				MatchTarget{Provider: p, BudgetID: target.BudgetID()})
			if err != nil {
				return nil, err
			}
			report.Matches = append(report.Matches, summary)
			if summary.Interrupted {
				break
			}
		}
	} else {
		log.Info().Msg("No account changes, skipping matching")
	}

	report.Saved = r.Store.Save(next)
	return report, nil
}

func (r *Reconciliation) fetchAll(ctx context.Context, state *models.State) (map[models.Provider]models.Accounts, error) {
	latest := make(map[models.Provider]models.Accounts, len(models.AllProviders))

	fetchers := append([]http.AccountFetcher{r.Source}, lo.Map(r.Targets, func(t http.TargetClient, _ int) http.AccountFetcher {
		return t
	})...)
	for _, f := range fetchers {
		accounts, err := f.FetchAccounts(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s accounts: %w", f.Provider(), err)
		}
		log.Info().Str("provider", f.Provider().String()).Int("accounts", len(accounts)).Msg("Fetched accounts")
		latest[f.Provider()] = accounts
	}

	for _, p := range models.AllProviders {
		if _, ok := latest[p]; !ok {
			log.Debug().Str("provider", p.String()).Msg("Provider disabled, keeping stored accounts")
			latest[p] = state.For(p).Clone()
		}
	}
	return latest, nil
}
