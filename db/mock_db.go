package db

import (
	"fmt"
	"sort"

	"github.com/vpnda/akahu-sync/pkg/models"
)

// MockDB is a mock implementation of the DB for testing
type MockDB struct {
	// Mock data storage, keyed by provider then akahu id
	Synced      map[models.Provider]map[string]*models.SyncRecord
	Adjustments []models.BalanceAdjustment

	// Error values to return
	IsSyncedErr         error
	RecordSyncedErr     error
	ListSyncedErr       error
	RemoveSyncedErr     error
	RecordAdjustmentErr error
	GetAdjustmentsErr   error
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		Synced: make(map[models.Provider]map[string]*models.SyncRecord),
	}
}

func (m *MockDB) IsSynced(akahuID string, provider models.Provider) (bool, error) {
	if m.IsSyncedErr != nil {
		return false, m.IsSyncedErr
	}
	_, ok := m.Synced[provider][akahuID]
	return ok, nil
}

func (m *MockDB) RecordSynced(rec *models.SyncRecord) error {
	if m.RecordSyncedErr != nil {
		return m.RecordSyncedErr
	}
	if m.Synced[rec.Provider] == nil {
		m.Synced[rec.Provider] = make(map[string]*models.SyncRecord)
	}
	m.Synced[rec.Provider][rec.AkahuID] = rec
	return nil
}

func (m *MockDB) ListSynced(provider models.Provider, targetAccountID string) ([]*models.SyncRecord, error) {
	if m.ListSyncedErr != nil {
		return nil, m.ListSyncedErr
	}
	var records []*models.SyncRecord
	for _, rec := range m.Synced[provider] {
		if targetAccountID == "" || rec.TargetAccountID == targetAccountID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.After(records[j].Date)
		}
		return records[i].AkahuID < records[j].AkahuID
	})
	return records, nil
}

func (m *MockDB) RemoveSynced(akahuID string, provider models.Provider) error {
	if m.RemoveSyncedErr != nil {
		return m.RemoveSyncedErr
	}
	if _, ok := m.Synced[provider][akahuID]; !ok {
		return fmt.Errorf("no synced transaction %s for %s", akahuID, provider)
	}
	delete(m.Synced[provider], akahuID)
	return nil
}

func (m *MockDB) RecordAdjustment(adj *models.BalanceAdjustment) error {
	if m.RecordAdjustmentErr != nil {
		return m.RecordAdjustmentErr
	}
	m.Adjustments = append(m.Adjustments, *adj)
	return nil
}

func (m *MockDB) GetAdjustments(provider models.Provider) ([]models.BalanceAdjustment, error) {
	if m.GetAdjustmentsErr != nil {
		return nil, m.GetAdjustmentsErr
	}
	var out []models.BalanceAdjustment
	for _, adj := range m.Adjustments {
		if adj.Provider == provider {
			out = append(out, adj)
		}
	}
	return out, nil
}

// Initialize is a no-op for the mock database
func (m *MockDB) Initialize() error {
	return nil
}

// Close is a no-op for the mock database
func (m *MockDB) Close() error {
	return nil
}
