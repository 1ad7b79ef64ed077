package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountJSONDropsNestedAndSeq(t *testing.T) {
	input := `{"id":"y1","name":"Cheque","type":"checking","on_budget":true,"balance":1200,
		"seq":4,"date_first_loaded":"2024-01-01T00:00:00Z","meta":{"nested":true},"tags":["a"]}`

	var a Account
	require.NoError(t, json.Unmarshal([]byte(input), &a))

	assert.Equal(t, "y1", a.ID)
	assert.Equal(t, 0, a.Seq)
	assert.Equal(t, "2024-01-01T00:00:00Z", a.DateFirstLoaded)
	assert.Equal(t, "checking", a.Attribute("type"))
	assert.Equal(t, float64(1200), a.Attributes["balance"])
	assert.NotContains(t, a.Attributes, "meta")
	assert.NotContains(t, a.Attributes, "tags")

	p := a.Projection()
	assert.NotContains(t, p, "date_first_loaded")
	assert.NotContains(t, p, "seq")
	assert.Equal(t, "Cheque", p["name"])
}

func TestAccountsUnmarshalForms(t *testing.T) {
	var keyed Accounts
	require.NoError(t, json.Unmarshal([]byte(`{"a1":{"name":"One"}}`), &keyed))
	assert.Equal(t, "a1", keyed["a1"].ID)

	var list Accounts
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"a1","name":"One"},{"id":"a2","name":"Two"}]`), &list))
	assert.Equal(t, []string{"a1", "a2"}, list.IDs())

	var bad Accounts
	assert.Error(t, json.Unmarshal([]byte(`[{"name":"no id"}]`), &bad))
}

func TestAccountsSortedByName(t *testing.T) {
	as := Accounts{
		"3": {ID: "3", Name: "savings"},
		"1": {ID: "1", Name: "Cheque"},
		"2": {ID: "2", Name: "cheque"},
	}
	sorted := as.SortedByName()
	ids := []string{sorted[0].ID, sorted[1].ID, sorted[2].ID}
	assert.Equal(t, []string{"1", "2", "3"}, ids)

	assert.Equal(t, []string{"1", "3"}, as.Without([]string{"2"}).IDs())
}

func TestAccountCloneIsolatesAttributes(t *testing.T) {
	a := &Account{ID: "a1"}
	a.SetAttribute("type", "checking")
	c := a.Clone()
	c.SetAttribute("type", "savings")
	assert.Equal(t, "checking", a.Attribute("type"))
}
