// Package ynab talks to the YNAB REST API.
package ynab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/vpnda/akahu-sync/pkg/config"
	"github.com/vpnda/akahu-sync/pkg/models"
)

const (
	clearedStatus     = "cleared"
	importedFlagColor = "red"
	adjustmentPayee   = "Balance Adjustment"
)

// APIError is returned for any unsuccessful response.
type APIError struct {
	StatusCode int
	Name       string
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ynab: status %d: %s %s", e.StatusCode, e.Name, e.Detail)
}

type Client struct {
	client   *http.Client
	endpoint string
	token    string
	budgetID string
	loc      *time.Location
	now      func() time.Time
}

// NewClient builds a client. Transaction dates are posted in loc.
func NewClient(opts config.YNABOptions, loc *time.Location, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		client:   httpClient,
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		token:    opts.Token,
		budgetID: opts.BudgetID,
		loc:      loc,
		now:      time.Now,
	}
}

func (c *Client) Provider() models.Provider {
	return models.ProviderYNAB
}

// BudgetID is the configured budget new links are scoped to.
func (c *Client) BudgetID() string {
	return c.budgetID
}

func (c *Client) budgetPath(budgetID string) string {
	if budgetID == "" {
		budgetID = c.budgetID
	}
	return "/budgets/" + url.PathEscape(budgetID)
}

// FetchAccounts returns the open accounts of the configured budget keyed by id.
func (c *Client) FetchAccounts(ctx context.Context) (models.Accounts, error) {
	var resp accountsResponse
	if err := c.do(ctx, http.MethodGet, c.budgetPath("")+"/accounts", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch ynab accounts: %w", err)
	}

	open := lo.Filter(resp.Data.Accounts, func(a account, _ int) bool {
		return !a.Closed && !a.Deleted
	})
	accounts := make(models.Accounts, len(open))
	for _, a := range open {
		accounts[a.ID] = a.toModel()
	}
	log.Info().Int("accounts", len(accounts)).Msg("Fetched YNAB accounts")
	return accounts, nil
}

func (a account) toModel() *models.Account {
	acc := &models.Account{ID: a.ID, Name: a.Name}
	acc.SetAttribute("type", a.Type)
	acc.SetAttribute("on_budget", a.OnBudget)
	acc.SetAttribute("closed", a.Closed)
	if a.TransferPayeeID != nil {
		acc.SetAttribute("transfer_payee_id", *a.TransferPayeeID)
	}
	if a.Note != nil {
		acc.SetAttribute("note", *a.Note)
	}
	return acc
}

// FetchBalance returns the working balance of an account.
func (c *Client) FetchBalance(ctx context.Context, budgetID, accountID string) (models.Amount, error) {
	var resp accountResponse
	path := c.budgetPath(budgetID) + "/accounts/" + url.PathEscape(accountID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return models.Amount{}, fmt.Errorf("failed to fetch ynab balance for %s: %w", accountID, err)
	}
	return models.AmountFromMilliunits(resp.Data.Account.Balance, models.DefaultCurrency), nil
}

// PushTransactions imports transactions using the source transaction id as import id,
// so YNAB itself drops anything it has already seen.
func (c *Client) PushTransactions(ctx context.Context, budgetID, accountID string, txns []models.Transaction) (models.PushResult, error) {
	if len(txns) == 0 {
		return models.PushResult{}, nil
	}
	payload := createTransactionsRequest{
		Transactions: lo.Map(txns, func(t models.Transaction, _ int) TransactionPayload {
			return TransactionPayload{
				AccountID: accountID,
				Date:      t.LocalDate(c.loc),
				Amount:    t.Amount.Milliunits(),
				PayeeName: t.PayeeName(),
				Memo:      t.Description,
				Cleared:   clearedStatus,
				FlagColor: importedFlagColor,
				ImportID:  t.ID,
			}
		}),
	}

	var resp createTransactionsResponse
	if err := c.do(ctx, http.MethodPost, c.budgetPath(budgetID)+"/transactions", payload, &resp); err != nil {
		return models.PushResult{}, fmt.Errorf("failed to push transactions to ynab: %w", err)
	}

	result := models.PushResult{Duplicates: resp.Data.DuplicateImportIDs}
	for _, t := range resp.Data.Transactions {
		if t.ImportID != nil {
			result.Imported = append(result.Imported, *t.ImportID)
		}
	}
	log.Info().
		Str("account_id", accountID).
		Int("imported", len(result.Imported)).
		Int("duplicates", len(result.Duplicates)).
		Msg("Pushed transactions to YNAB")
	return result, nil
}

// CreateAdjustment posts one cleared transaction moving the balance by diff.
func (c *Client) CreateAdjustment(ctx context.Context, budgetID, accountID string, diff models.Amount, memo string) error {
	payload := createTransactionRequest{
		Transaction: TransactionPayload{
			AccountID: accountID,
			Date:      c.now().In(c.loc).Format(time.DateOnly),
			Amount:    diff.Milliunits(),
			PayeeName: adjustmentPayee,
			Memo:      memo,
			Cleared:   clearedStatus,
			Approved:  true,
		},
	}
	if err := c.do(ctx, http.MethodPost, c.budgetPath(budgetID)+"/transactions", payload, nil); err != nil {
		return fmt.Errorf("failed to create ynab balance adjustment: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(data))}
		var e errorResponse
		if json.Unmarshal(data, &e) == nil && e.Error.Name != "" {
			apiErr.Name = e.Error.Name
			apiErr.Detail = e.Error.Detail
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
