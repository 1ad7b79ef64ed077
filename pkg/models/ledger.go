package models

import "time"

// SyncRecord notes that a source transaction was pushed into a target account.
type SyncRecord struct {
	AkahuID         string
	Provider        Provider
	TargetAccountID string
	Amount          Amount
	Date            time.Time
	CreatedAt       time.Time
}

// BalanceAdjustment records a balance correction posted to a tracking account.
type BalanceAdjustment struct {
	AkahuID         string
	Provider        Provider
	TargetAccountID string
	From            Amount
	To              Amount
	CreatedAt       time.Time
}

// Diff is the amount that was posted.
func (b BalanceAdjustment) Diff() Amount {
	return b.To.Sub(b.From)
}
