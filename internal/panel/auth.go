package panel

import (
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"
)

const (
	// TokenHeader carries md5("1panel" + api key + timestamp).
	TokenHeader = "1Panel-Token"
	// TimestampHeader carries the unix timestamp the token was derived from.
	TimestampHeader = "1Panel-Timestamp"

	tokenPrefix = "1panel"
)

// AuthHeader is the per-request authentication pair expected by the panel.
type AuthHeader struct {
	Token     string
	Timestamp string
}

// GenerateAuth derives the authentication header for the given key at time now.
// The timestamp has one-second resolution.
func GenerateAuth(apiKey string, now time.Time) AuthHeader {
	timestamp := strconv.FormatInt(now.Unix(), 10)
	sum := md5.Sum([]byte(tokenPrefix + apiKey + timestamp))
	return AuthHeader{
		Token:     hex.EncodeToString(sum[:]),
		Timestamp: timestamp,
	}
}

// Apply sets the authentication headers on h.
func (a AuthHeader) Apply(h http.Header) {
	h.Set(TokenHeader, a.Token)
	h.Set(TimestampHeader, a.Timestamp)
}

// authRoundTripper stamps a freshly generated AuthHeader and the user agent
// on every outgoing request.
type authRoundTripper struct {
	rt        http.RoundTripper
	apiKey    string
	userAgent string
	now       func() time.Time
}

// RoundTrip implements the http.RoundTripper interface
func (a *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())
	GenerateAuth(a.apiKey, a.now()).Apply(req.Header)
	req.Header.Set("User-Agent", a.userAgent)
	return a.rt.RoundTrip(req)
}
