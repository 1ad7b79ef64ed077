package services

import (
	"context"
	"errors"
	"time"

	"github.com/vpnda/akahu-sync/pkg/models"
)

var testNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func acc(id, name string) *models.Account {
	return &models.Account{ID: id, Name: name, Status: "ACTIVE"}
}

func accounts(list ...*models.Account) models.Accounts {
	out := make(models.Accounts, len(list))
	for _, a := range list {
		out[a.ID] = a
	}
	return out
}

// scriptedDecider replays replies in order and records every prompt it saw.
type scriptedDecider struct {
	replies  []string
	prompts  []MatchPrompt
	confirm  bool
	asked    []string
	confirmE error
}

func (d *scriptedDecider) Decide(_ context.Context, prompt MatchPrompt) (string, error) {
	d.prompts = append(d.prompts, prompt)
	if len(d.replies) == 0 {
		return "", errors.New("out of replies")
	}
	r := d.replies[0]
	d.replies = d.replies[1:]
	return r, nil
}

func (d *scriptedDecider) Confirm(_ context.Context, question string) (bool, error) {
	d.asked = append(d.asked, question)
	return d.confirm, d.confirmE
}

// fixedStrategy always suggests the same seq.
type fixedStrategy struct {
	seq int
	err error
}

func (s fixedStrategy) Suggest(context.Context, SuggestionRequest) (Suggestion, error) {
	if s.err != nil {
		return Suggestion{}, s.err
	}
	return Suggestion{Seq: s.seq, Strategy: "fixed"}, nil
}

type fakeCompleter struct {
	reply string
	err   error
	calls int
	user  string
}

func (f *fakeCompleter) Complete(_ context.Context, _, user string) (string, error) {
	f.calls++
	f.user = user
	return f.reply, f.err
}

// fakeSource is an in-memory aggregator.
type fakeSource struct {
	accounts     models.Accounts
	balances     map[string]models.Amount
	transactions map[string][]models.Transaction
	err          error
	since        map[string]time.Time
}

func (f *fakeSource) Provider() models.Provider { return models.ProviderAkahu }

func (f *fakeSource) FetchAccounts(context.Context) (models.Accounts, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.accounts.Clone(), nil
}

func (f *fakeSource) FetchBalance(_ context.Context, id string) (models.Amount, error) {
	if f.err != nil {
		return models.Amount{}, f.err
	}
	return f.balances[id], nil
}

func (f *fakeSource) FetchTransactions(_ context.Context, id string, since time.Time) ([]models.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.since == nil {
		f.since = make(map[string]time.Time)
	}
	f.since[id] = since
	return f.transactions[id], nil
}

type adjustment struct {
	accountID string
	diff      models.Amount
	memo      string
}

// fakeTarget is an in-memory budgeting app.
type fakeTarget struct {
	provider    models.Provider
	budgetID    string
	accounts    models.Accounts
	balances    map[string]models.Amount
	duplicates  map[string]bool
	pushed      map[string][]models.Transaction
	adjustments []adjustment
	fetchErr    error
	pushErr     error
}

func newFakeTarget(p models.Provider, list ...*models.Account) *fakeTarget {
	return &fakeTarget{
		provider: p,
		budgetID: "budget-" + p.String(),
		accounts: accounts(list...),
		balances: make(map[string]models.Amount),
		pushed:   make(map[string][]models.Transaction),
	}
}

func (f *fakeTarget) Provider() models.Provider { return f.provider }
func (f *fakeTarget) BudgetID() string          { return f.budgetID }

func (f *fakeTarget) FetchAccounts(context.Context) (models.Accounts, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.accounts.Clone(), nil
}

func (f *fakeTarget) FetchBalance(_ context.Context, _, accountID string) (models.Amount, error) {
	return f.balances[accountID], nil
}

func (f *fakeTarget) PushTransactions(_ context.Context, _, accountID string, txns []models.Transaction) (models.PushResult, error) {
	if f.pushErr != nil {
		return models.PushResult{}, f.pushErr
	}
	var res models.PushResult
	for _, t := range txns {
		if f.duplicates[t.ID] {
			res.Duplicates = append(res.Duplicates, t.ID)
			continue
		}
		f.pushed[accountID] = append(f.pushed[accountID], t)
		res.Imported = append(res.Imported, t.ID)
	}
	return res, nil
}

func (f *fakeTarget) CreateAdjustment(_ context.Context, _, accountID string, diff models.Amount, memo string) error {
	f.adjustments = append(f.adjustments, adjustment{accountID: accountID, diff: diff, memo: memo})
	f.balances[accountID] = f.balances[accountID].Sub(models.Amount{Value: diff.Value.Neg()})
	return nil
}
