package utils

import (
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/rs/zerolog/log"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (fn roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return fn(r)
}

// DebugRoundTripper dumps every request and response at trace level.
func DebugRoundTripper() http.RoundTripper {
	return DebugRoundTripperWithUnderlying(http.DefaultTransport)
}

func DebugRoundTripperWithUnderlying(u http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		d, _ := httputil.DumpRequestOut(r, true)
		log.Trace().Str("url", r.URL.String()).Msg(string(d))
		res, err := u.RoundTrip(r)
		if err == nil {
			d, _ := httputil.DumpResponse(res, true)
			log.Trace().Int("status", res.StatusCode).Msg(string(d))
		}
		return res, err
	})
}

// NewHTTPClient returns a client bounded by timeout that dumps traffic when debug is set.
func NewHTTPClient(debug bool, timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: timeout}
	if debug {
		client.Transport = DebugRoundTripper()
	}
	return client
}
