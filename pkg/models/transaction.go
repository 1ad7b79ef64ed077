package models

import (
	"fmt"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a provider does not report one.
const DefaultCurrency = money.NZD

// Transaction is a source transaction ready to be pushed to a target.
type Transaction struct {
	ID          string
	AccountID   string
	Date        time.Time
	Description string
	Merchant    *Merchant
	Amount      Amount
}

// PayeeName prefers the merchant name over the raw description.
func (t *Transaction) PayeeName() string {
	if t.Merchant != nil && t.Merchant.Name != "" {
		return t.Merchant.Name
	}
	return t.Description
}

// LocalDate is the calendar date of the transaction in loc, formatted YYYY-MM-DD.
func (t *Transaction) LocalDate(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.Date.In(loc).Format(time.DateOnly)
}

func (t *Transaction) String() string {
	return fmt.Sprintf("[%s] %s %s (%s)", t.ID, t.Date.Format(time.DateOnly), t.PayeeName(), t.Amount.Display())
}

// Merchant as reported by the source provider
type Merchant struct {
	ID   string
	Name string
}

// Amount represents a monetary amount
type Amount struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

func NewAmount(value float64, currency string) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Currency: currency}
}

func (a Amount) currency() *money.Currency {
	code := a.Currency
	if code == "" {
		code = DefaultCurrency
	}
	c := money.GetCurrency(code)
	if c == nil {
		c = money.GetCurrency(DefaultCurrency)
	}
	return c
}

// ToMoney converts the amount to minor units, truncating extra precision.
func (a Amount) ToMoney() *money.Money {
	c := a.currency()
	minor := a.Value.Shift(int32(c.Fraction)).Truncate(0).IntPart()
	return money.New(minor, c.Code)
}

// Display formats the amount with its currency symbol.
func (a Amount) Display() string {
	return a.ToMoney().Display()
}

// Cents rounds the amount to hundredths and returns it as an integer.
func (a Amount) Cents() int64 {
	return a.Value.Shift(2).Round(0).IntPart()
}

// Milliunits rounds the amount to thousandths and returns it as an integer.
func (a Amount) Milliunits() int64 {
	return a.Value.Shift(3).Round(0).IntPart()
}

func (a Amount) Sub(b Amount) Amount {
	return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency}
}

func (a Amount) IsZero() bool {
	return a.Value.IsZero()
}

// AmountFromMilliunits builds an amount from a thousandths-based integer.
func AmountFromMilliunits(v int64, currency string) Amount {
	return Amount{Value: decimal.New(v, -3), Currency: currency}
}

// AmountFromCents builds an amount from a hundredths-based integer.
func AmountFromCents(v int64, currency string) Amount {
	return Amount{Value: decimal.New(v, -2), Currency: currency}
}

// PushResult reports what a target did with a batch of transactions.
type PushResult struct {
	Imported   []string
	Duplicates []string
}
