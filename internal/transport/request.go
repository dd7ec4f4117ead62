package transport

import (
	"fmt"
	"io"
	"net/http"

	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/logging"
)

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	URL        string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("GET %s: %d %s: %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// IsNotFound reports whether the server answered 404.
func (e *StatusError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// ReadBody reads a response body and closes it. Non-2xx responses become
// a *StatusError carrying the start of the body.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close response body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		url := ""
		if resp.Request != nil && resp.Request.URL != nil {
			url = resp.Request.URL.Redacted()
		}
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Message: msg}
	}

	return body, nil
}
