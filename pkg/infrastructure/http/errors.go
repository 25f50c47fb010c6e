// Package httputil turns failed HTTP responses into errors that keep
// the upstream's own diagnostic body, so a rejected Spectrum push logs
// what the platform actually complained about.
package httputil

import (
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody caps how much of an upstream error body is carried in
// the error message.
const maxErrorBody = 500

// HTTPError is a 4xx/5xx response with its (truncated) body.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s (status %d)", e.Status, e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d): %s", e.Status, e.StatusCode, e.Body)
}

// ResponseError returns nil for success responses and an *HTTPError
// for 4xx/5xx ones. The response body is consumed either way.
func ResponseError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
	body := string(raw)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}

	return &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Body:       body,
	}
}
