package http

import (
	"context"
	"time"

	"github.com/vpnda/akahu-sync/pkg/http/actual"
	"github.com/vpnda/akahu-sync/pkg/http/akahu"
	"github.com/vpnda/akahu-sync/pkg/http/ynab"
	"github.com/vpnda/akahu-sync/pkg/models"
)

// AccountFetcher returns a provider's working set of accounts keyed by id.
// Inactive or closed accounts are already filtered out.
type AccountFetcher interface {
	Provider() models.Provider
	FetchAccounts(ctx context.Context) (models.Accounts, error)
}

// SourceClient is the aggregator transactions and balances are read from.
type SourceClient interface {
	AccountFetcher
	FetchBalance(ctx context.Context, accountID string) (models.Amount, error)
	FetchTransactions(ctx context.Context, accountID string, since time.Time) ([]models.Transaction, error)
}

// TargetClient is a budgeting app that transactions are pushed into.
type TargetClient interface {
	AccountFetcher
	// BudgetID is the configured budget; an empty budgetID argument falls back to it.
	BudgetID() string
	FetchBalance(ctx context.Context, budgetID, accountID string) (models.Amount, error)
	PushTransactions(ctx context.Context, budgetID, accountID string, txns []models.Transaction) (models.PushResult, error)
	CreateAdjustment(ctx context.Context, budgetID, accountID string, diff models.Amount, memo string) error
}

var (
	_ SourceClient = &akahu.Client{}
	_ TargetClient = &ynab.Client{}
	_ TargetClient = &actual.Client{}
)
