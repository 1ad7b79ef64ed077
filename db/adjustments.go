package db

import (
	"fmt"

	"github.com/vpnda/akahu-sync/pkg/models"
)

func (db *DB) createBalanceAdjustmentsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS balance_adjustments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		akahu_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		target_account_id TEXT NOT NULL,
		from_value TEXT,
		to_value TEXT,
		currency TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)
	`

	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create balance_adjustments table: %w", err)
	}
	return err
}

// RecordAdjustment stores a balance correction posted to a target.
func (db *DB) RecordAdjustment(adj *models.BalanceAdjustment) error {
	query := `
	INSERT INTO balance_adjustments (akahu_id, provider, target_account_id, from_value, to_value, currency)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		adj.AkahuID,
		string(adj.Provider),
		adj.TargetAccountID,
		adj.From.Value.String(),
		adj.To.Value.String(),
		adj.To.Currency,
	)
	if err != nil {
		return fmt.Errorf("failed to record balance adjustment: %w", err)
	}

	return nil
}

func (db *DB) GetAdjustments(provider models.Provider) ([]models.BalanceAdjustment, error) {
	query := `
	SELECT
		akahu_id, provider, target_account_id, from_value, to_value, currency, created_at
	FROM balance_adjustments
	WHERE provider = ?
	ORDER BY id
	`
	rows, err := db.Query(query, string(provider))
	if err != nil {
		return nil, fmt.Errorf("failed to get balance adjustments: %w", err)
	}
	defer rows.Close()
	var adjustments []models.BalanceAdjustment
	for rows.Next() {
		var (
			adj      models.BalanceAdjustment
			p        string
			currency string
		)
		err := rows.Scan(
			&adj.AkahuID,
			&p,
			&adj.TargetAccountID,
			&adj.From.Value,
			&adj.To.Value,
			&currency,
			&adj.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance adjustment: %w", err)
		}
		adj.Provider = models.Provider(p)
		adj.From.Currency = currency
		adj.To.Currency = currency
		adjustments = append(adjustments, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate over balance adjustments: %w", err)
	}
	return adjustments, nil
}
