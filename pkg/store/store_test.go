package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpnda/akahu-sync/pkg/models"
)

func setupStore(t *testing.T) *Store {
	dir := t.TempDir()
	return New(filepath.Join(dir, "akahu_budget_mapping.json"))
}

func sampleState() *models.State {
	state := models.NewState()
	state.Accounts[models.ProviderAkahu]["acc_1"] = &models.Account{
		ID: "acc_1", Name: "Everyday", Status: "ACTIVE", Connection: "ANZ",
		DateFirstLoaded: "2024-01-01T00:00:00Z", Seq: 3,
	}
	state.Accounts[models.ProviderYNAB]["y1"] = &models.Account{ID: "y1", Name: "Cheque", Seq: 1}
	state.Mapping.Entry("acc_1", "Everyday").Confirm(models.ProviderYNAB, "y1", "Cheque", "b1",
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	return state
}

func TestSaveAndLoad(t *testing.T) {
	s := setupStore(t)
	state := sampleState()

	require.True(t, s.Save(state))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "Everyday", loaded.Accounts[models.ProviderAkahu]["acc_1"].Name)
	assert.Equal(t, "2024-01-01T00:00:00Z", loaded.Accounts[models.ProviderAkahu]["acc_1"].DateFirstLoaded)
	assert.Equal(t, 0, loaded.Accounts[models.ProviderYNAB]["y1"].Seq)
	assert.True(t, loaded.Mapping["acc_1"].IsMapped(models.ProviderYNAB))
	assert.Empty(t, loaded.Accounts[models.ProviderActual])

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"seq"`)
	assert.True(t, strings.HasPrefix(string(data), "{\n    \""))
}

func hasKey(v any, key string) bool {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if k == key || hasKey(val, key) {
				return true
			}
		}
	case []any:
		for _, val := range t {
			if hasKey(val, key) {
				return true
			}
		}
	}
	return false
}

func TestSaveAndLoadStripsNestedSeq(t *testing.T) {
	s := setupStore(t)
	state := sampleState()
	state.Mapping["acc_1"].Extra = map[string]json.RawMessage{
		"notes_meta": json.RawMessage(`{"seq": 4, "label": "main", "history": [{"seq": 1, "at": "2024-01-01"}, 7]}`),
	}

	require.True(t, s.Save(state))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.False(t, hasKey(doc, "seq"))

	loaded, err := s.Load()
	require.NoError(t, err)
	entry := loaded.Mapping["acc_1"]
	require.NotNil(t, entry)
	assert.JSONEq(t, `{"label": "main", "history": [{"at": "2024-01-01"}, 7]}`, string(entry.Extra["notes_meta"]))
	assert.Equal(t, "Everyday", entry.AkahuName)
	assert.Equal(t, "y1", entry.Link(models.ProviderYNAB).AccountID)
	assert.Equal(t, "ANZ", loaded.Accounts[models.ProviderAkahu]["acc_1"].Connection)
	assert.Equal(t, "ACTIVE", loaded.Accounts[models.ProviderAkahu]["acc_1"].Status)

	// saving the loaded state again changes nothing
	require.True(t, s.Save(loaded))
	again, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestLoadMissingFile(t *testing.T) {
	s := setupStore(t)
	_, err := s.Load()
	assert.True(t, errors.Is(err, ErrMissingFile))

	state := s.Bootstrap()
	for _, p := range models.AllProviders {
		assert.NotNil(t, state.Accounts[p])
	}
	assert.Empty(t, state.Mapping)
}

func TestLoadSchemaErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{name: "invalid json", content: `{"akahu_accounts": `},
		{name: "missing mapping", content: `{"akahu_accounts": {}, "ynab_accounts": {}, "actual_accounts": {}}`},
		{name: "wrong type", content: `{"akahu_accounts": 4, "ynab_accounts": {}, "actual_accounts": {}, "mapping": {}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := setupStore(t)
			require.NoError(t, os.WriteFile(s.Path(), []byte(tc.content), 0644))
			_, err := s.Load()
			assert.True(t, errors.Is(err, ErrSchema), "got %v", err)
		})
	}
}

func TestLoadLegacyListMapping(t *testing.T) {
	s := setupStore(t)
	content := `{
		"akahu_accounts": [{"id": "acc_1", "name": "Everyday"}],
		"ynab_accounts": {},
		"actual_accounts": {},
		"mapping": [{"akahu_id": "acc_1", "akahu_name": "Everyday", "ynab_do_not_map": true}]
	}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0644))

	state, err := s.Load()
	require.NoError(t, err)
	assert.Contains(t, state.Accounts[models.ProviderAkahu], "acc_1")
	assert.True(t, state.Mapping["acc_1"].IsDoNotMap(models.ProviderYNAB))
}

func TestRemoveSeqNested(t *testing.T) {
	input := map[string]any{
		"seq": 1,
		"a": map[string]any{
			"seq": 2,
			"b": []any{map[string]any{"seq": 3, "keep": "x"}, "plain"},
		},
	}

	out := RemoveSeq(input).(map[string]any)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": {"b": [{"keep": "x"}, "plain"]}}`, string(raw))
	assert.Contains(t, input, "seq")
}

func TestSaveFailureKeepsPreviousFile(t *testing.T) {
	s := setupStore(t)
	require.True(t, s.Save(sampleState()))
	before, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	blocked := New(filepath.Join(s.Path(), "nested.json"))
	assert.False(t, blocked.Save(sampleState()))

	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	assert.False(t, s.Save(nil))
	after, err = os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
