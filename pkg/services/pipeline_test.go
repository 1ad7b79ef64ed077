package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpnda/akahu-sync/pkg/http"
	"github.com/vpnda/akahu-sync/pkg/models"
	"github.com/vpnda/akahu-sync/pkg/store"
)

type pipelineFixture struct {
	store   *store.Store
	source  *fakeSource
	ynab    *fakeTarget
	actual  *fakeTarget
	decider *scriptedDecider
	run     *Reconciliation
}

func newPipeline(t *testing.T) *pipelineFixture {
	path := filepath.Join(t.TempDir(), "mapping.json")
	st := store.New(path)
	f := &pipelineFixture{
		store:   st,
		source:  &fakeSource{accounts: accounts(acc("a1", "Everyday"), acc("a2", "Visa Card"))},
		ynab:    newFakeTarget(models.ProviderYNAB, acc("y1", "Credit Card"), acc("y2", "Everyday Spending")),
		actual:  newFakeTarget(models.ProviderActual, acc("x1", "Everyday"), acc("x2", "Visa")),
		decider: &scriptedDecider{confirm: true},
	}
	f.run = &Reconciliation{
		Store:      st,
		Source:     f.source,
		Targets:    []http.TargetClient{f.ynab, f.actual},
		Reconciler: newTestReconciler(f.decider),
		Matcher:    newTestMatcher(fixedStrategy{}, f.decider),
	}
	require.NoError(t, f.run.Init())
	return f
}

func TestInitRefusesExistingFile(t *testing.T) {
	f := newPipeline(t)
	assert.ErrorIs(t, f.run.Init(), ErrAlreadyInitialized)
}

func TestRunMatchesAndSaves(t *testing.T) {
	f := newPipeline(t)
	// ynab: Everyday -> 2, Visa -> 1; actual: Everyday -> 1, Visa -> do not map
	f.decider.replies = []string{"2", "1", "1", "0"}

	report, err := f.run.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.True(t, report.Saved)
	assert.True(t, report.Changes.Any())
	require.Len(t, report.Matches, 2)
	assert.Equal(t, 2, report.Matches[0].Confirmed)
	assert.Equal(t, 1, report.Matches[1].DoNotMap)

	state, err := f.store.Load()
	require.NoError(t, err)
	assert.Len(t, state.For(models.ProviderAkahu), 2)
	assert.Len(t, state.For(models.ProviderYNAB), 2)
	assert.Equal(t, "y2", state.Mapping["a1"].Link(models.ProviderYNAB).AccountID)
	assert.Equal(t, "budget-ynab", state.Mapping["a1"].Link(models.ProviderYNAB).BudgetID)
	assert.Equal(t, "x1", state.Mapping["a1"].Link(models.ProviderActual).AccountID)
	assert.True(t, state.Mapping["a2"].IsDoNotMap(models.ProviderActual))
	assert.NotEmpty(t, state.For(models.ProviderAkahu)["a1"].DateFirstLoaded)
}

func TestRunUnchangedSkipsMatchingButSaves(t *testing.T) {
	f := newPipeline(t)
	f.decider.replies = []string{"", "", "", ""}
	_, err := f.run.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	before, err := os.Stat(f.store.Path())
	require.NoError(t, err)
	f.decider.prompts = nil

	report, err := f.run.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.False(t, report.Changes.Any())
	assert.Empty(t, report.Matches)
	assert.Empty(t, f.decider.prompts)
	assert.True(t, report.Saved)

	after, err := os.Stat(f.store.Path())
	require.NoError(t, err)
	assert.False(t, after.ModTime().Before(before.ModTime()))

	// force runs the pass anyway
	f.decider.replies = []string{"", "", "", ""}
	report, err = f.run.Run(context.Background(), RunOptions{Force: true})
	require.NoError(t, err)
	assert.Len(t, report.Matches, 2)
	assert.Len(t, f.decider.prompts, 4)
}

func TestRunFetchFailureSavesNothing(t *testing.T) {
	f := newPipeline(t)
	original, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)

	f.ynab.fetchErr = errors.New("503 service unavailable")
	_, err = f.run.Run(context.Background(), RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch ynab accounts")

	current, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, original, current)
}

func TestRunMissingStore(t *testing.T) {
	f := newPipeline(t)
	require.NoError(t, os.Remove(f.store.Path()))

	_, err := f.run.Run(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, store.ErrMissingFile)
}

func TestRunDisabledTargetKeepsStoredAccounts(t *testing.T) {
	f := newPipeline(t)
	state := models.NewState()
	state.Accounts[models.ProviderActual] = accounts(&models.Account{ID: "x1", Name: "Everyday", DateFirstLoaded: "2024-02-01T00:00:00Z"})
	require.True(t, f.store.Save(state))

	f.run.Targets = []http.TargetClient{f.ynab}
	f.decider.replies = []string{"", ""}
	report, err := f.run.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.True(t, report.Changes.Unchanged(models.ProviderActual))
	assert.Len(t, report.Matches, 1)
	assert.Empty(t, f.decider.asked)

	saved, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01T00:00:00Z", saved.For(models.ProviderActual)["x1"].DateFirstLoaded)
}

func TestRunInterruptedStopsMatchingAndSaves(t *testing.T) {
	f := newPipeline(t)
	f.decider.replies = []string{"2"}

	report, err := f.run.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Len(t, report.Matches, 1)
	assert.True(t, report.Matches[0].Interrupted)
	assert.True(t, report.Saved)

	state, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "y2", state.Mapping["a1"].Link(models.ProviderYNAB).AccountID)
}

func TestRunCancelledSavesNothing(t *testing.T) {
	f := newPipeline(t)
	original, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	f.run.Matcher = newTestMatcher(fixedStrategy{}, cancelDecider{})

	_, err = f.run.Run(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, context.Canceled)

	current, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, original, current)
}
