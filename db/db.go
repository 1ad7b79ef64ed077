package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vpnda/akahu-sync/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// DB represents the database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Initialize creates the necessary tables if they don't exist
func (db *DB) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS synced_transactions (
		akahu_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		target_account_id TEXT NOT NULL,
		amount_value TEXT,
		amount_currency TEXT,
		transaction_date TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (akahu_id, provider)
	)
	`

	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create synced_transactions table: %w", err)
	}

	return db.createBalanceAdjustmentsTable()
}

// IsSynced reports whether the source transaction was already pushed to provider.
func (db *DB) IsSynced(akahuID string, provider models.Provider) (bool, error) {
	query := `SELECT 1 FROM synced_transactions WHERE akahu_id = ? AND provider = ? LIMIT 1`

	var one int
	err := db.QueryRow(query, akahuID, string(provider)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to check synced transaction: %w", err)
	}
	return true, nil
}

// RecordSynced stores a pushed transaction. Recording the same transaction twice
// updates the target account and amount.
func (db *DB) RecordSynced(rec *models.SyncRecord) error {
	query := `
	INSERT INTO synced_transactions (
		akahu_id, provider, target_account_id, amount_value, amount_currency, transaction_date
	) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(akahu_id, provider) DO UPDATE SET
		target_account_id = excluded.target_account_id,
		amount_value = excluded.amount_value,
		amount_currency = excluded.amount_currency,
		transaction_date = excluded.transaction_date
	`

	_, err := db.Exec(
		query,
		rec.AkahuID,
		string(rec.Provider),
		rec.TargetAccountID,
		rec.Amount.Value.String(),
		rec.Amount.Currency,
		rec.Date.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record synced transaction: %w", err)
	}

	return nil
}

// ListSynced returns what was pushed to provider, newest first. An empty
// targetAccountID lists every account.
func (db *DB) ListSynced(provider models.Provider, targetAccountID string) ([]*models.SyncRecord, error) {
	query := `
	SELECT
		akahu_id, provider, target_account_id, amount_value, amount_currency, transaction_date, created_at
	FROM synced_transactions
	WHERE provider = ? AND (? = '' OR target_account_id = ?)
	ORDER BY transaction_date DESC, akahu_id
	`

	rows, err := db.Query(query, string(provider), targetAccountID, targetAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query synced transactions: %w", err)
	}
	defer rows.Close()

	var records []*models.SyncRecord
	for rows.Next() {
		var (
			rec      models.SyncRecord
			provider string
		)
		err := rows.Scan(
			&rec.AkahuID,
			&provider,
			&rec.TargetAccountID,
			&rec.Amount.Value,
			&rec.Amount.Currency,
			&rec.Date,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan synced transaction: %w", err)
		}
		rec.Provider = models.Provider(provider)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating synced transactions: %w", err)
	}

	return records, nil
}

// RemoveSynced forgets a pushed transaction so the next sync offers it again.
func (db *DB) RemoveSynced(akahuID string, provider models.Provider) error {
	query := `DELETE FROM synced_transactions WHERE akahu_id = ? AND provider = ?`

	result, err := db.Exec(query, akahuID, string(provider))
	if err != nil {
		return fmt.Errorf("failed to remove synced transaction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("no synced transaction %s for %s", akahuID, provider)
	}

	return nil
}
