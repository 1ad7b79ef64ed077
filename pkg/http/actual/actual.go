// Package actual talks to an Actual Budget server through the actual-http-api bridge.
package actual

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

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/vpnda/akahu-sync/pkg/config"
	"github.com/vpnda/akahu-sync/pkg/models"
)

const adjustmentPayee = "Balance Adjustment"

// APIError is returned for any unsuccessful response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("actual: status %d: %s", e.StatusCode, e.Message)
}

type account struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OffBudget bool   `json:"offbudget"`
	Closed    bool   `json:"closed"`
}

type accountsResponse struct {
	Data []account `json:"data"`
}

type balanceResponse struct {
	Data int64 `json:"data"`
}

// TransactionPayload is one transaction in an import request. Amounts are cents.
type TransactionPayload struct {
	Account    string `json:"account"`
	Date       string `json:"date"`
	Amount     int64  `json:"amount"`
	PayeeName  string `json:"payee_name,omitempty"`
	Notes      string `json:"notes,omitempty"`
	ImportedID string `json:"imported_id"`
	Cleared    bool   `json:"cleared"`
}

type importRequest struct {
	Transactions []TransactionPayload `json:"transactions"`
}

type importResponse struct {
	Data struct {
		Added   []string `json:"added"`
		Updated []string `json:"updated"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"data"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type Client struct {
	client             *http.Client
	endpoint           string
	apiKey             string
	syncID             string
	encryptionPassword string
	loc                *time.Location
	now                func() time.Time
	newID              func() string
}

func NewClient(opts config.ActualOptions, loc *time.Location, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		client:             httpClient,
		endpoint:           strings.TrimRight(opts.Endpoint, "/"),
		apiKey:             opts.APIKey,
		syncID:             opts.SyncID,
		encryptionPassword: opts.EncryptionPassword,
		loc:                loc,
		now:                time.Now,
		newID:              uuid.NewString,
	}
}

func (c *Client) Provider() models.Provider {
	return models.ProviderActual
}

// BudgetID is the sync id of the budget file.
func (c *Client) BudgetID() string {
	return c.syncID
}

func (c *Client) budgetPath(budgetID string) string {
	if budgetID == "" {
		budgetID = c.syncID
	}
	return "/v1/budgets/" + url.PathEscape(budgetID)
}

// FetchAccounts returns the open accounts keyed by id.
func (c *Client) FetchAccounts(ctx context.Context) (models.Accounts, error) {
	var resp accountsResponse
	if err := c.do(ctx, http.MethodGet, c.budgetPath("")+"/accounts", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch actual accounts: %w", err)
	}

	accounts := make(models.Accounts, len(resp.Data))
	for _, a := range lo.Reject(resp.Data, func(a account, _ int) bool { return a.Closed }) {
		acc := &models.Account{ID: a.ID, Name: a.Name}
		acc.SetAttribute("offbudget", a.OffBudget)
		acc.SetAttribute("closed", a.Closed)
		accounts[a.ID] = acc
	}
	log.Info().Int("accounts", len(accounts)).Msg("Fetched Actual accounts")
	return accounts, nil
}

// FetchBalance returns the current balance of an account.
func (c *Client) FetchBalance(ctx context.Context, budgetID, accountID string) (models.Amount, error) {
	var resp balanceResponse
	path := c.budgetPath(budgetID) + "/accounts/" + url.PathEscape(accountID) + "/balance"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return models.Amount{}, fmt.Errorf("failed to fetch actual balance for %s: %w", accountID, err)
	}
	return models.AmountFromCents(resp.Data, models.DefaultCurrency), nil
}

// PushTransactions imports transactions with the source transaction id as imported_id,
// which Actual uses to reconcile repeats.
func (c *Client) PushTransactions(ctx context.Context, budgetID, accountID string, txns []models.Transaction) (models.PushResult, error) {
	if len(txns) == 0 {
		return models.PushResult{}, nil
	}
	payload := importRequest{
		Transactions: lo.Map(txns, func(t models.Transaction, _ int) TransactionPayload {
			return TransactionPayload{
				Account:    accountID,
				Date:       t.LocalDate(c.loc),
				Amount:     t.Amount.Cents(),
				PayeeName:  t.PayeeName(),
				Notes:      t.Description,
				ImportedID: t.ID,
				Cleared:    true,
			}
		}),
	}

	var resp importResponse
	path := c.budgetPath(budgetID) + "/accounts/" + url.PathEscape(accountID) + "/transactions/import"
	if err := c.do(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return models.PushResult{}, fmt.Errorf("failed to import transactions into actual: %w", err)
	}
	for _, e := range resp.Data.Errors {
		log.Warn().Str("account_id", accountID).Msg(e.Message)
	}

	// the bridge reports created transaction ids, not imported ids, so every
	// transaction in an accepted batch counts as imported
	result := models.PushResult{
		Imported: lo.Map(txns, func(t models.Transaction, _ int) string { return t.ID }),
	}
	log.Info().
		Str("account_id", accountID).
		Int("added", len(resp.Data.Added)).
		Int("updated", len(resp.Data.Updated)).
		Msg("Imported transactions into Actual")
	return result, nil
}

// CreateAdjustment posts one transaction moving the balance by diff.
func (c *Client) CreateAdjustment(ctx context.Context, budgetID, accountID string, diff models.Amount, memo string) error {
	payload := importRequest{
		Transactions: []TransactionPayload{{
			Account:    accountID,
			Date:       c.now().In(c.loc).Format(time.DateOnly),
			Amount:     diff.Cents(),
			PayeeName:  adjustmentPayee,
			Notes:      memo,
			ImportedID: "adjustment_" + c.newID(),
			Cleared:    true,
		}},
	}
	path := c.budgetPath(budgetID) + "/accounts/" + url.PathEscape(accountID) + "/transactions/import"
	if err := c.do(ctx, http.MethodPost, path, payload, nil); err != nil {
		return fmt.Errorf("failed to create actual balance adjustment: %w", err)
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
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if c.encryptionPassword != "" {
		req.Header.Set("budget-encryption-password", c.encryptionPassword)
	}
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
		msg := strings.TrimSpace(string(data))
		var e errorResponse
		if json.Unmarshal(data, &e) == nil {
			msg = lo.CoalesceOrEmpty(e.Error, e.Message, msg)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
