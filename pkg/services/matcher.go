package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vpnda/akahu-sync/pkg/metrics"
	"github.com/vpnda/akahu-sync/pkg/models"
)

// maxAttempts is how many replies a source account gets per run.
const maxAttempts = 2

// MatchTarget names the provider being matched and the budget confirmed links belong to.
type MatchTarget struct {
	Provider models.Provider
	BudgetID string
}

// MatchSummary counts the outcome of one matching pass.
type MatchSummary struct {
	Provider  models.Provider
	Confirmed int
	DoNotMap  int
	Skipped   int
	Settled   int
	// Interrupted is set when the decision provider stopped answering mid-pass.
	Interrupted bool
}

// Matcher drives one disambiguation pass per target provider.
type Matcher struct {
	strategy Strategy
	decider  DecisionProvider
	now      func() time.Time
}

// NewMatcher builds a matcher. Any strategy other than a FallbackStrategy is put in
// front of fuzzy matching, so a failing strategy still yields a suggestion.
func NewMatcher(strategy Strategy, decider DecisionProvider) *Matcher {
	if _, ok := strategy.(*FallbackStrategy); !ok {
		strategy = NewFallbackStrategy(strategy, nil)
	}
	return &Matcher{strategy: strategy, decider: decider, now: time.Now}
}

// AssignSeq numbers the accounts 1..n by case-insensitive name and returns them in
// that order. The accounts are copied.
func AssignSeq(accounts models.Accounts) []*models.Account {
	sorted := accounts.SortedByName()
	out := make([]*models.Account, len(sorted))
	for i, acc := range sorted {
		c := acc.Clone()
		c.Seq = i + 1
		out[i] = c
	}
	return out
}

// MatchAccounts visits every source account without a decision for the target
// provider and records the decision in mapping. Accounts already linked or marked
// do-not-map are left alone. A cancelled context is returned as an error; a decision
// provider that stops answering for any other reason ends the pass early with the
// decisions made so far kept.
func (m *Matcher) MatchAccounts(ctx context.Context, mapping models.Mapping, sources, targets models.Accounts, target MatchTarget) (MatchSummary, error) {
	summary := MatchSummary{Provider: target.Provider}
	if mapping == nil {
		return summary, fmt.Errorf("%w: nil mapping", ErrMalformedInput)
	}
	p := target.Provider
	seqTargets := AssignSeq(targets)

	for _, src := range sources.SortedByName() {
		if entry, ok := mapping[src.ID]; ok && entry.IsSettled(p) {
			log.Debug().Str("akahu_id", src.ID).Str("provider", p.String()).Msg("Already decided, skipping")
			summary.Settled++
			continue
		}

		decision, err := m.matchOne(ctx, mapping, src, seqTargets, target)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return summary, err
			}
			log.Warn().Err(err).Str("provider", p.String()).Msg("Stopped matching, no more answers")
			summary.Interrupted = true
			return summary, nil
		}

		metrics.MatchDecisions.WithLabelValues(p.String(), decision.String()).Inc()
		switch decision {
		case SelectionTarget:
			summary.Confirmed++
		case SelectionDoNotMap:
			summary.DoNotMap++
		default:
			summary.Skipped++
		}
	}

	log.Info().
		Str("provider", p.String()).
		Int("confirmed", summary.Confirmed).
		Int("do_not_map", summary.DoNotMap).
		Int("skipped", summary.Skipped).
		Int("settled", summary.Settled).
		Msg("Matching pass complete")
	return summary, nil
}

func (m *Matcher) matchOne(ctx context.Context, mapping models.Mapping, src *models.Account, targets []*models.Account, target MatchTarget) (SelectionKind, error) {
	p := target.Provider
	sug, err := m.strategy.Suggest(ctx, SuggestionRequest{
		Source:   src,
		Provider: p,
		Targets:  targets,
		Mapping:  mapping,
	})
	if err != nil {
		log.Warn().Err(err).Str("akahu_id", src.ID).Str("provider", p.String()).Msg("No suggestion available")
	}

	prompt := MatchPrompt{
		Source:     src,
		Provider:   p,
		Targets:    targets,
		Claimed:    mapping.Claimed(p),
		Suggestion: sug,
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		prompt.Attempt = attempt
		reply, err := m.decider.Decide(ctx, prompt)
		if err != nil {
			return SelectionInvalid, err
		}

		sel := ParseSelection(reply)
		switch sel.Kind {
		case SelectionSkip:
			log.Info().Str("akahu_id", src.ID).Str("provider", p.String()).Msg("Skipped for now")
			return SelectionSkip, nil

		case SelectionDoNotMap:
			mapping.Entry(src.ID, src.Name).MarkDoNotMap(p, m.now())
			log.Info().Str("akahu_id", src.ID).Str("provider", p.String()).Msg("Marked as do not map")
			return SelectionDoNotMap, nil

		case SelectionTarget:
			chosen := targetBySeq(targets, sel.Seq)
			if chosen == nil {
				prompt.Rejection = fmt.Sprintf("%d is not one of the listed accounts.", sel.Seq)
				continue
			}
			if owner, claimed := mapping.ClaimedBy(p, chosen.ID); claimed && owner != src.ID {
				prompt.Rejection = fmt.Sprintf("%s is already mapped to another account.", chosen.Name)
				continue
			}
			mapping.Entry(src.ID, src.Name).Confirm(p, chosen.ID, chosen.Name, target.BudgetID, m.now())
			log.Info().
				Str("akahu_id", src.ID).
				Str("provider", p.String()).
				Str("account_id", chosen.ID).
				Msg("Mapping confirmed")
			return SelectionTarget, nil

		default:
			prompt.Rejection = fmt.Sprintf("%q is not a valid selection.", sel.Raw)
		}
	}

	log.Info().Str("akahu_id", src.ID).Str("provider", p.String()).Msg("No valid selection, skipped for now")
	return SelectionSkip, nil
}
