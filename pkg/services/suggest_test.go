package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpnda/akahu-sync/pkg/config"
	"github.com/vpnda/akahu-sync/pkg/http/llm"
	"github.com/vpnda/akahu-sync/pkg/metrics"
	"github.com/vpnda/akahu-sync/pkg/models"
	"github.com/vpnda/akahu-sync/pkg/utils"
)

func suggestionRequest() SuggestionRequest {
	source := acc("akahu-1", "Everyday Account")
	source.Connection = "ANZ"
	targets := AssignSeq(accounts(
		acc("y1", "ANZ Everyday"),
		acc("y2", "Credit Card"),
		acc("y3", "Holiday Savings"),
	))
	return SuggestionRequest{
		Source:   source,
		Provider: models.ProviderYNAB,
		Targets:  targets,
		Mapping:  models.Mapping{},
	}
}

func TestUnclaimed(t *testing.T) {
	req := suggestionRequest()
	other := models.NewMappingEntry("akahu-2", "Visa")
	other.Confirm(models.ProviderYNAB, "y2", "Credit Card", "b", testNow)
	req.Mapping["akahu-2"] = other

	unclaimed := req.Unclaimed()
	require.Len(t, unclaimed, 2)
	assert.Equal(t, "y1", unclaimed[0].ID)
	assert.Equal(t, "y3", unclaimed[1].ID)
}

func TestLLMStrategy(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		err     error
		want    int
		wantErr error
	}{
		{name: "pick", reply: "1", want: 1},
		{name: "pick with dot", reply: " 3.\n", want: 3},
		{name: "no match", reply: "0", want: 0},
		{name: "words", reply: "The answer is 1", wantErr: ErrUndecided},
		{name: "unknown seq", reply: "9", wantErr: ErrUndecided},
		{name: "network", err: errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{reply: tt.reply, err: tt.err}
			sug, err := NewLLMStrategy(completer).Suggest(context.Background(), suggestionRequest())
			switch {
			case tt.err != nil:
				assert.Error(t, err)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, sug.Seq)
				assert.Equal(t, StrategyLLM, sug.Strategy)
			}
		})
	}
}

func TestLLMStrategyRejectsClaimedSeq(t *testing.T) {
	req := suggestionRequest()
	other := models.NewMappingEntry("akahu-2", "Visa")
	other.Confirm(models.ProviderYNAB, "y1", "ANZ Everyday", "b", testNow)
	req.Mapping["akahu-2"] = other

	completer := &fakeCompleter{reply: "1"}
	_, err := NewLLMStrategy(completer).Suggest(context.Background(), req)
	assert.ErrorIs(t, err, ErrUndecided)
	assert.NotContains(t, completer.user, "1. ANZ Everyday")
	assert.Contains(t, completer.user, `"Everyday Account" held at "ANZ"`)
}

func TestFuzzyStrategy(t *testing.T) {
	sug, err := NewFuzzyStrategy().Suggest(context.Background(), suggestionRequest())
	require.NoError(t, err)
	assert.Equal(t, StrategyFuzzy, sug.Strategy)
	assert.Equal(t, 1, sug.Seq)
}

func TestFuzzyStrategyBelowFloor(t *testing.T) {
	req := suggestionRequest()
	req.Source = acc("akahu-9", "KiwiSaver Growth Fund")

	sug, err := NewFuzzyStrategy().Suggest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, sug.Seq)

	req.Targets = nil
	sug, err = NewFuzzyStrategy().Suggest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, sug.Seq)
}

func TestFuzzyScore(t *testing.T) {
	assert.Equal(t, 100, FuzzyScore("Everyday", "everyday"))
	assert.Equal(t, 100, FuzzyScore("Savings Holiday", "holiday savings"))
	assert.Less(t, FuzzyScore("KiwiSaver", "Credit Card"), DefaultFuzzyFloor)
	assert.GreaterOrEqual(t, FuzzyScore("Everyday Account", "ANZ Everyday"), DefaultFuzzyFloor)
}

func TestFallbackStrategy(t *testing.T) {
	t.Run("primary wins", func(t *testing.T) {
		sug, err := NewFallbackStrategy(fixedStrategy{seq: 2}, nil).Suggest(context.Background(), suggestionRequest())
		require.NoError(t, err)
		assert.Equal(t, Suggestion{Seq: 2, Strategy: "fixed"}, sug)
	})

	t.Run("primary error falls back", func(t *testing.T) {
		before := testutil.ToFloat64(metrics.Suggestions.WithLabelValues("ynab", StrategyFuzzy))
		sug, err := NewFallbackStrategy(fixedStrategy{err: errors.New("timeout")}, nil).Suggest(context.Background(), suggestionRequest())
		require.NoError(t, err)
		assert.Equal(t, StrategyFuzzy, sug.Strategy)
		assert.Equal(t, 1, sug.Seq)
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.Suggestions.WithLabelValues("ynab", StrategyFuzzy)))
	})

	t.Run("invalid llm reply falls back", func(t *testing.T) {
		primary := NewLLMStrategy(&fakeCompleter{reply: "maybe"})
		sug, err := NewFallbackStrategy(primary, nil).Suggest(context.Background(), suggestionRequest())
		require.NoError(t, err)
		assert.Equal(t, StrategyFuzzy, sug.Strategy)
	})

	t.Run("stalled llm falls back", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(3 * time.Second):
			}
		}))
		defer srv.Close()
		client := llm.NewClient(config.LLMOptions{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-4o", MaxTokens: 2},
			utils.NewHTTPClient(false, 100*time.Millisecond))

		start := time.Now()
		sug, err := NewFallbackStrategy(NewLLMStrategy(client), nil).Suggest(context.Background(), suggestionRequest())
		require.NoError(t, err)
		assert.Equal(t, Suggestion{Seq: 1, Strategy: StrategyFuzzy}, sug)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("no primary", func(t *testing.T) {
		sug, err := NewFallbackStrategy(nil, &FuzzyStrategy{Floor: 101}).Suggest(context.Background(), suggestionRequest())
		require.NoError(t, err)
		assert.Equal(t, Suggestion{Seq: 0, Strategy: StrategyFuzzy}, sug)
	})
}
