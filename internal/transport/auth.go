package transport

import (
	"net/http"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request)
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request) {}

// BearerAuth implements Bearer token authentication.
type BearerAuth struct {
	Token string
}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(req *http.Request) {
	if a.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
}

// HeaderAuth implements custom header authentication.
type HeaderAuth struct {
	Header string
	Key    string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(req *http.Request) {
	if a.Key == "" {
		return
	}
	req.Header.Set(a.Header, a.Key)
}

// QueryAuth implements API key as query parameter authentication.
type QueryAuth struct {
	Param string
	Key   string
}

// Apply implements the Authenticator interface for QueryAuth.
func (a *QueryAuth) Apply(req *http.Request) {
	if req.URL == nil || a.Key == "" {
		return
	}

	query := req.URL.Query()
	query.Set(a.Param, a.Key)
	req.URL.RawQuery = query.Encode()
}
