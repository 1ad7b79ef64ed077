package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpnda/akahu-sync/pkg/models"
	"github.com/vpnda/akahu-sync/pkg/services"
	"github.com/vpnda/akahu-sync/pkg/store"
)

type stubSyncer struct {
	report  *services.SyncReport
	err     error
	started chan struct{}
	release chan struct{}
}

func (s *stubSyncer) Sync(context.Context) (*services.SyncReport, error) {
	if s.started != nil {
		close(s.started)
		<-s.release
	}
	return s.report, s.err
}

func newTestStore(t *testing.T, save bool) *store.Store {
	st := store.New(filepath.Join(t.TempDir(), "mapping.json"))
	if !save {
		return st
	}
	state := models.NewState()
	state.Accounts[models.ProviderAkahu]["a1"] = &models.Account{ID: "a1", Name: "Everyday"}
	state.Accounts[models.ProviderAkahu]["a2"] = &models.Account{ID: "a2", Name: "Savings"}
	state.Accounts[models.ProviderYNAB]["y1"] = &models.Account{ID: "y1", Name: "Checking"}
	state.Mapping.Entry("a1", "Everyday").Confirm(models.ProviderYNAB, "y1", "Checking", "b1",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, st.Save(state))
	return st
}

func TestHealth(t *testing.T) {
	srv := New(newTestStore(t, false), &stubSyncer{})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestStatus(t *testing.T) {
	srv := New(newTestStore(t, true), &stubSyncer{})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report services.StatusReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, 2, report.SourceAccounts)
	require.Len(t, report.Targets, 2)
	assert.Equal(t, models.ProviderYNAB, report.Targets[0].Provider)
	assert.Equal(t, 1, report.Targets[0].Mapped)
	assert.Equal(t, 1, report.Targets[0].Unmapped)
}

func TestStatusMissingFile(t *testing.T) {
	srv := New(newTestStore(t, false), &stubSyncer{})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "mapping file not found")
}

func TestSync(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		syncer := &stubSyncer{report: &services.SyncReport{
			Entries: 2,
			Pushed:  map[models.Provider]int{models.ProviderYNAB: 3},
			Saved:   true,
		}}
		srv := New(newTestStore(t, true), syncer)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var report services.SyncReport
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
		assert.Equal(t, 2, report.Entries)
		assert.Equal(t, 3, report.Pushed[models.ProviderYNAB])
		assert.True(t, report.Saved)
	})

	t.Run("failure", func(t *testing.T) {
		srv := New(newTestStore(t, true), &stubSyncer{err: errors.New("akahu down")})
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sync", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "akahu down")
	})
}

func TestSyncAlreadyRunning(t *testing.T) {
	syncer := &stubSyncer{
		report:  &services.SyncReport{},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	srv := New(newTestStore(t, true), syncer)
	router := srv.Router()

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))
		done <- rec.Code
	}()
	<-syncer.started

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(syncer.release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := New(newTestStore(t, false), &stubSyncer{})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := New(newTestStore(t, false), &stubSyncer{})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
