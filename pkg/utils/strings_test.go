package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "On Budget", Capitalize("ON BUDGET"))
	assert.Equal(t, "Tracking", Capitalize("tracking"))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "****", Mask("abcd"))
	assert.Equal(t, "abcd**mnop", Mask("abcdefmnop"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Kiwi", Truncate("Kiwibank", 4))
	assert.Equal(t, "ANZ", Truncate("ANZ", 10))
}

func TestDebugRoundTripper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	resp, err := NewHTTPClient(true, 5*time.Second).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}
