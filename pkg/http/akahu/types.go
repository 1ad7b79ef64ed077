package akahu

import (
	"time"

	"github.com/shopspring/decimal"
)

type connection struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type balance struct {
	Currency  string           `json:"currency"`
	Current   *decimal.Decimal `json:"current"`
	Available *decimal.Decimal `json:"available"`
}

type account struct {
	ID               string      `json:"_id"`
	Name             string      `json:"name"`
	Status           string      `json:"status"`
	Type             string      `json:"type"`
	FormattedAccount string      `json:"formatted_account"`
	Connection       *connection `json:"connection"`
	Balance          *balance    `json:"balance"`
}

type accountsResponse struct {
	Success bool      `json:"success"`
	Items   []account `json:"items"`
}

type accountResponse struct {
	Success bool    `json:"success"`
	Item    account `json:"item"`
}

type merchant struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type transaction struct {
	ID          string          `json:"_id"`
	Account     string          `json:"_account"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Merchant    *merchant       `json:"merchant"`
}

type cursor struct {
	Next *string `json:"next"`
}

type transactionsResponse struct {
	Success bool          `json:"success"`
	Items   []transaction `json:"items"`
	Cursor  *cursor       `json:"cursor"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
