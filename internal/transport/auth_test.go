package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

// TestNoAuth tests that NoAuth applies no authentication.
func TestNoAuth(t *testing.T) {
	req := &http.Request{Header: make(http.Header)}
	(&NoAuth{}).Apply(req)

	if len(req.Header) != 0 {
		t.Errorf("Expected no headers, got %d", len(req.Header))
	}
}

// TestBearerAuth tests Bearer token authentication.
func TestBearerAuth(t *testing.T) {
	req := &http.Request{Header: make(http.Header)}
	(&BearerAuth{Token: "test-token"}).Apply(req)

	if got, want := req.Header.Get("Authorization"), "Bearer test-token"; got != want {
		t.Errorf("Expected Authorization header %q, got %q", want, got)
	}

	empty := &http.Request{Header: make(http.Header)}
	(&BearerAuth{}).Apply(empty)
	if empty.Header.Get("Authorization") != "" {
		t.Error("Expected no Authorization header for an empty token")
	}
}

// TestHeaderAuth tests custom header authentication.
func TestHeaderAuth(t *testing.T) {
	req := &http.Request{Header: make(http.Header)}
	(&HeaderAuth{Header: "X-Feed-Key", Key: "k"}).Apply(req)

	if got := req.Header.Get("X-Feed-Key"); got != "k" {
		t.Errorf("Expected X-Feed-Key header %q, got %q", "k", got)
	}
}

// TestQueryAuth tests API key as query parameter authentication.
func TestQueryAuth(t *testing.T) {
	u, _ := url.Parse("https://feeds.example.com/e1?fmt=json")
	req := &http.Request{URL: u, Header: make(http.Header)}
	(&QueryAuth{Param: "key", Key: "k"}).Apply(req)

	if got := req.URL.Query().Get("key"); got != "k" {
		t.Errorf("Expected key query param %q, got %q", "k", got)
	}
	if got := req.URL.Query().Get("fmt"); got != "json" {
		t.Errorf("Expected existing query param to be preserved, got %q", got)
	}
}

// TestClientGet tests that requests carry auth and common headers, and that
// non-2xx responses become status errors.
func TestClientGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != UserAgent || r.Header.Get("Authorization") != "Bearer t" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("denied"))
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := New(&BearerAuth{Token: "t"}).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	body, err := ReadBody(resp)
	if err != nil {
		t.Fatalf("ReadBody() failed: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("Expected body %q, got %q", "ok", body)
	}

	resp, err = New(nil).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	_, err = ReadBody(resp)
	status, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("Expected *StatusError, got %T", err)
	}
	if status.StatusCode != http.StatusForbidden || status.Message != "denied" {
		t.Errorf("Unexpected status error: %v", status)
	}
}
