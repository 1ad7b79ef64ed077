package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/vpnda/akahu-sync/pkg/http/llm"
	"github.com/vpnda/akahu-sync/pkg/metrics"
	"github.com/vpnda/akahu-sync/pkg/models"
)

const (
	StrategyLLM   = "llm"
	StrategyFuzzy = "fuzzy"

	// DefaultFuzzyFloor is the minimum score, out of 100, for a fuzzy suggestion.
	DefaultFuzzyFloor = 50
)

// ErrUndecided is returned by a strategy that could not produce a valid suggestion.
var ErrUndecided = errors.New("strategy could not decide")

// Suggestion is a proposed target seq. Zero means no match.
type Suggestion struct {
	Seq      int
	Strategy string
}

// SuggestionRequest describes one source account and the targets it may match.
type SuggestionRequest struct {
	Source   *models.Account
	Provider models.Provider
	// Targets carry their seq.
	Targets []*models.Account
	Mapping models.Mapping
}

// Unclaimed returns the targets not yet linked to any mapping entry for the provider.
func (r SuggestionRequest) Unclaimed() []*models.Account {
	claimed := r.Mapping.Claimed(r.Provider)
	out := make([]*models.Account, 0, len(r.Targets))
	for _, t := range r.Targets {
		if _, ok := claimed[t.ID]; !ok {
			out = append(out, t)
		}
	}
	return out
}

// Strategy proposes a match for one source account.
type Strategy interface {
	Suggest(ctx context.Context, req SuggestionRequest) (Suggestion, error)
}

// LLMStrategy asks a chat model to pick the matching account.
type LLMStrategy struct {
	completer llm.Completer
}

func NewLLMStrategy(completer llm.Completer) *LLMStrategy {
	return &LLMStrategy{completer: completer}
}

const llmSystemPrompt = "You match bank accounts to budgeting app accounts. " +
	"Reply with a single number and nothing else."

func (s *LLMStrategy) Suggest(ctx context.Context, req SuggestionRequest) (Suggestion, error) {
	unclaimed := req.Unclaimed()
	reply, err := s.completer.Complete(ctx, llmSystemPrompt, buildLLMPrompt(req.Source, unclaimed))
	if err != nil {
		return Suggestion{}, fmt.Errorf("llm completion: %w", err)
	}

	seq, err := strconv.Atoi(strings.TrimSpace(strings.Trim(strings.TrimSpace(reply), ".")))
	if err != nil {
		return Suggestion{}, fmt.Errorf("%w: unparseable reply %q", ErrUndecided, reply)
	}
	if seq == 0 {
		return Suggestion{Seq: 0, Strategy: StrategyLLM}, nil
	}
	for _, t := range unclaimed {
		if t.Seq == seq {
			return Suggestion{Seq: seq, Strategy: StrategyLLM}, nil
		}
	}
	return Suggestion{}, fmt.Errorf("%w: reply %d is not an unclaimed account", ErrUndecided, seq)
}

func buildLLMPrompt(source *models.Account, unclaimed []*models.Account) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bank account: %q", source.Name)
	if source.Connection != "" {
		fmt.Fprintf(&b, " held at %q", source.Connection)
	}
	if kind := source.Attribute("type"); kind != "" {
		fmt.Fprintf(&b, ", type %s", kind)
	}
	b.WriteString(".\n\nWhich of these budget accounts is the same account?\n")
	b.WriteString("0. None of them is a plausible match\n")
	for _, t := range unclaimed {
		fmt.Fprintf(&b, "%d. %s\n", t.Seq, t.Name)
	}
	b.WriteString("\nAnswer with the number only.")
	return b.String()
}

// FuzzyStrategy scores names by edit distance and never fails.
type FuzzyStrategy struct {
	Floor int
}

func NewFuzzyStrategy() *FuzzyStrategy {
	return &FuzzyStrategy{Floor: DefaultFuzzyFloor}
}

func (s *FuzzyStrategy) Suggest(_ context.Context, req SuggestionRequest) (Suggestion, error) {
	best, bestScore := 0, -1
	for _, t := range req.Unclaimed() {
		score := FuzzyScore(req.Source.Name, t.Name)
		if score > bestScore || (score == bestScore && t.Seq < best) {
			best, bestScore = t.Seq, score
		}
	}
	if bestScore < s.Floor {
		return Suggestion{Seq: 0, Strategy: StrategyFuzzy}, nil
	}
	return Suggestion{Seq: best, Strategy: StrategyFuzzy}, nil
}

// FuzzyScore rates two names from 0 to 100, taking the better of a plain and a
// token-sorted comparison so word order does not matter.
func FuzzyScore(a, b string) int {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" && b == "" {
		return 100
	}
	plain := levenshtein.RatioForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
	sorted := levenshtein.RatioForStrings([]rune(sortTokens(a)), []rune(sortTokens(b)), levenshtein.DefaultOptions)
	return int(max(plain, sorted)*100 + 0.5)
}

func sortTokens(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

// FallbackStrategy tries the primary strategy and falls back to fuzzy matching when
// it is missing, fails, or cannot decide. It never returns an error.
type FallbackStrategy struct {
	primary  Strategy
	fallback *FuzzyStrategy
}

func NewFallbackStrategy(primary Strategy, fallback *FuzzyStrategy) *FallbackStrategy {
	if fallback == nil {
		fallback = NewFuzzyStrategy()
	}
	return &FallbackStrategy{primary: primary, fallback: fallback}
}

func (s *FallbackStrategy) Suggest(ctx context.Context, req SuggestionRequest) (Suggestion, error) {
	if s.primary != nil {
		sug, err := s.primary.Suggest(ctx, req)
		if err == nil {
			metrics.Suggestions.WithLabelValues(req.Provider.String(), sug.Strategy).Inc()
			return sug, nil
		}
		log.Warn().Err(err).Str("akahu_id", req.Source.ID).Msg("Primary suggestion failed, using fuzzy match")
	}
	sug, _ := s.fallback.Suggest(ctx, req)
	metrics.Suggestions.WithLabelValues(req.Provider.String(), sug.Strategy).Inc()
	return sug, nil
}

var (
	_ Strategy = (*LLMStrategy)(nil)
	_ Strategy = (*FuzzyStrategy)(nil)
	_ Strategy = (*FallbackStrategy)(nil)
)
