// Package akahu reads accounts, balances and transactions from the Akahu
// open-banking API.
package akahu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vpnda/akahu-sync/pkg/config"
	"github.com/vpnda/akahu-sync/pkg/models"
)

const (
	statusActive          = "ACTIVE"
	unknownConnectionName = "Unknown Connection"
)

// APIError is returned for any non-200 response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("akahu: status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	client    *http.Client
	endpoint  string
	userToken string
	appToken  string
}

func NewClient(opts config.AkahuOptions, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		client:    httpClient,
		endpoint:  strings.TrimRight(opts.Endpoint, "/"),
		userToken: opts.UserToken,
		appToken:  opts.AppToken,
	}
}

func (c *Client) Provider() models.Provider {
	return models.ProviderAkahu
}

// FetchAccounts returns the active accounts keyed by id.
func (c *Client) FetchAccounts(ctx context.Context) (models.Accounts, error) {
	var resp accountsResponse
	if err := c.get(ctx, "/accounts", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch akahu accounts: %w", err)
	}

	accounts := make(models.Accounts, len(resp.Items))
	for _, raw := range resp.Items {
		if !strings.EqualFold(raw.Status, statusActive) {
			continue
		}
		accounts[raw.ID] = raw.toModel()
	}
	log.Info().Int("accounts", len(accounts)).Msg("Fetched Akahu accounts")
	return accounts, nil
}

func (a account) toModel() *models.Account {
	conn := unknownConnectionName
	if a.Connection != nil && a.Connection.Name != "" {
		conn = a.Connection.Name
	}
	acc := &models.Account{
		ID:         a.ID,
		Name:       a.Name,
		Status:     a.Status,
		Connection: conn,
	}
	acc.SetAttribute("type", a.Type)
	if a.FormattedAccount != "" {
		acc.SetAttribute("formatted_account", a.FormattedAccount)
	}
	return acc
}

// FetchBalance returns the current balance of one account.
func (c *Client) FetchBalance(ctx context.Context, accountID string) (models.Amount, error) {
	var resp accountResponse
	if err := c.get(ctx, "/accounts/"+url.PathEscape(accountID), nil, &resp); err != nil {
		return models.Amount{}, fmt.Errorf("failed to fetch balance for %s: %w", accountID, err)
	}
	if resp.Item.Balance == nil || resp.Item.Balance.Current == nil {
		return models.Amount{}, fmt.Errorf("akahu account %s has no current balance", accountID)
	}
	return models.Amount{Value: *resp.Item.Balance.Current, Currency: resp.Item.Balance.Currency}, nil
}

// FetchTransactions pages through every transaction of an account since the given time.
func (c *Client) FetchTransactions(ctx context.Context, accountID string, since time.Time) ([]models.Transaction, error) {
	query := url.Values{}
	query.Set("start", since.UTC().Format("2006-01-02T15:04:05Z"))

	var out []models.Transaction
	path := "/accounts/" + url.PathEscape(accountID) + "/transactions"
	for {
		var page transactionsResponse
		if err := c.get(ctx, path, query, &page); err != nil {
			return nil, fmt.Errorf("failed to fetch transactions for %s: %w", accountID, err)
		}
		for _, raw := range page.Items {
			out = append(out, raw.toModel(accountID))
		}
		log.Debug().Str("akahu_id", accountID).Int("count", len(page.Items)).Msg("Fetched transaction page")

		if len(page.Items) == 0 || page.Cursor == nil || page.Cursor.Next == nil || *page.Cursor.Next == "" {
			break
		}
		query.Set("cursor", *page.Cursor.Next)
	}
	log.Info().Str("akahu_id", accountID).Int("transactions", len(out)).Msg("Fetched Akahu transactions")
	return out, nil
}

func (t transaction) toModel(accountID string) models.Transaction {
	tx := models.Transaction{
		ID:          t.ID,
		AccountID:   t.Account,
		Date:        t.Date,
		Description: t.Description,
		Amount:      models.Amount{Value: t.Amount, Currency: models.DefaultCurrency},
	}
	if tx.AccountID == "" {
		tx.AccountID = accountID
	}
	if t.Merchant != nil {
		tx.Merchant = &models.Merchant{ID: t.Merchant.ID, Name: t.Merchant.Name}
	}
	return tx
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.userToken)
	req.Header.Set("X-Akahu-ID", c.appToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Message != "" {
			msg = e.Message
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
