package db

import (
	"github.com/vpnda/akahu-sync/pkg/models"
)

// DBInterface defines the interface for database operations
type DBInterface interface {
	Initialize() error
	Close() error
	IsSynced(akahuID string, provider models.Provider) (bool, error)
	RecordSynced(rec *models.SyncRecord) error
	ListSynced(provider models.Provider, targetAccountID string) ([]*models.SyncRecord, error)
	RemoveSynced(akahuID string, provider models.Provider) error
	RecordAdjustment(adj *models.BalanceAdjustment) error
	GetAdjustments(provider models.Provider) ([]models.BalanceAdjustment, error)
}

// Ensure DB implements DBInterface
var _ DBInterface = (*DB)(nil)

// Ensure MockDB implements DBInterface
var _ DBInterface = (*MockDB)(nil)
