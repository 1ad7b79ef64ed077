package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpnda/akahu-sync/pkg/models"
)

func TestSummarize(t *testing.T) {
	state := models.NewState()
	state.Accounts[models.ProviderAkahu] = accounts(acc("a1", "Everyday"), acc("a2", "Visa"), acc("a3", "KiwiSaver"))
	state.Accounts[models.ProviderYNAB] = accounts(acc("y1", "Checking"))

	e1 := state.Mapping.Entry("a1", "Everyday")
	e1.Confirm(models.ProviderYNAB, "y1", "Checking", "b", testNow)
	e2 := state.Mapping.Entry("a2", "Visa")
	e2.MarkDoNotMap(models.ProviderYNAB, testNow)
	e3 := state.Mapping.Entry("a3", "KiwiSaver")
	e3.AccountType = models.AccountTypeTracking

	report := Summarize(state)
	assert.Equal(t, 3, report.SourceAccounts)
	assert.Equal(t, 3, report.Entries)
	assert.Equal(t, 1, report.Tracking)
	require.Len(t, report.Targets, 2)

	ynab := report.Targets[0]
	assert.Equal(t, models.ProviderYNAB, ynab.Provider)
	assert.Equal(t, 1, ynab.Accounts)
	assert.Equal(t, 1, ynab.Mapped)
	assert.Equal(t, 1, ynab.DoNotMap)
	assert.Equal(t, 1, ynab.Unmapped)

	actual := report.Targets[1]
	assert.Equal(t, 3, actual.Unmapped)
	assert.Zero(t, actual.Accounts)
}
