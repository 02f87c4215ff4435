package bench

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// APIError is a domain failure reported by the gateway. The message text is
// load-bearing: pagination ceilings and rate-limit conditions are only
// discoverable from it.
type APIError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d on %s: %s", e.Status, e.Endpoint, e.Message)
}

// The gateway reports page-size overflow as "... exceeded <requested> > <allowed> ...".
var exceededPattern = regexp.MustCompile(`(?i)exceeded.*?(\d+).*?>.*?(\d+)`)

// ParseLimitOverflow extracts the server-disclosed page ceiling from an
// overflow message. The second capture is the allowed maximum.
func ParseLimitOverflow(msg string) (int, bool) {
	m := exceededPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	allowed, err := strconv.Atoi(m[2])
	if err != nil || allowed <= 0 {
		return 0, false
	}
	return allowed, true
}

// IsInvalidPagination reports whether a message signals rejected cursor
// parameters without disclosing a usable ceiling.
func IsInvalidPagination(msg string) bool {
	lower := strings.ToLower(msg)
	if !strings.Contains(lower, "invalid") {
		return false
	}
	return strings.Contains(lower, "pagination") ||
		strings.Contains(lower, "param") ||
		strings.Contains(lower, "offset") ||
		strings.Contains(lower, "limit")
}

// IsRateLimited classifies rate-limit and quota exhaustion failures, which
// the task-level retry handles by sleeping and re-running the coordinator.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == 429 {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "status 429") ||
		strings.Contains(lower, "quota")
}

// errorMessage extracts the human-readable message for pattern matching,
// unwrapping APIError when present.
func errorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
