package neon

import (
	"fmt"
	"net/http"
)

// maxErrorBody caps how much of an upstream error body is kept.
const maxErrorBody = 512

// FetchError reports a failed usage fetch: a network error, a non-2xx
// status or a body that could not be parsed.
type FetchError struct {
	Status int    // HTTP status, 0 when no response was received
	Body   string // truncated upstream body, when available
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return fmt.Sprintf("fetch usage: authentication failed (status %d), check NEON_API_KEY%s", e.Status, e.detail())
	case e.Status != 0 && e.Err == nil:
		return fmt.Sprintf("fetch usage: neon api returned status %d%s", e.Status, e.detail())
	case e.Status != 0:
		return fmt.Sprintf("fetch usage: status %d: %v%s", e.Status, e.Err, e.detail())
	default:
		return fmt.Sprintf("fetch usage: %v", e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsAuth reports whether the API rejected the credentials.
func (e *FetchError) IsAuth() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

func (e *FetchError) detail() string {
	if e.Body == "" {
		return ""
	}
	return ": " + e.Body
}

func truncate(b []byte) string {
	if len(b) <= maxErrorBody {
		return string(b)
	}
	return string(b[:maxErrorBody]) + "..."
}
