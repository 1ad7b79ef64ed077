package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReconcileRuns counts reconciliation passes by outcome
	ReconcileRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "akahu_sync_reconcile_runs_total",
			Help: "Total number of reconciliation passes",
		},
		[]string{"outcome"},
	)

	// MatchDecisions counts matcher decisions by target provider
	MatchDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "akahu_sync_match_decisions_total",
			Help: "Total number of account matching decisions",
		},
		[]string{"provider", "decision"},
	)

	// Suggestions counts which strategy produced the displayed suggestion
	Suggestions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "akahu_sync_suggestions_total",
			Help: "Total number of match suggestions by strategy",
		},
		[]string{"provider", "strategy"},
	)

	// TransactionsPushed counts transactions accepted by a target
	TransactionsPushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "akahu_sync_transactions_pushed_total",
			Help: "Total number of transactions pushed to a target",
		},
		[]string{"provider"},
	)

	// BalanceAdjustments counts balance adjustment transactions created
	BalanceAdjustments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "akahu_sync_balance_adjustments_total",
			Help: "Total number of balance adjustments posted to a target",
		},
		[]string{"provider"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// WriteTextfile dumps the default registry in the node exporter textfile format.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
