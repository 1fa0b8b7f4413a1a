package backlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorEntry is one structured error reported by the API.
type ErrorEntry struct {
	Message  string `json:"message"`
	Code     int    `json:"code"`
	MoreInfo string `json:"moreInfo"`
}

// Error is the classified failure returned by every Client method.
// StatusCode is 0 when no response was received.
type Error struct {
	Message    string
	StatusCode int
	Errors     []ErrorEntry
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Codes returns the remote error codes carried by e.
func (e *Error) Codes() []int {
	if e == nil {
		return nil
	}
	codes := make([]int, 0, len(e.Errors))
	for _, entry := range e.Errors {
		codes = append(codes, entry.Code)
	}
	return codes
}

var errorCodeNames = map[int]string{
	1:  "InternalError",
	2:  "LicenceError",
	3:  "LicenceExpiredError",
	4:  "AccessDeniedError",
	5:  "UnauthorizedOperationError",
	6:  "NoResourceError",
	7:  "InvalidRequestError",
	8:  "SpaceOverCapacityError",
	9:  "ResourceOverflowError",
	10: "TooLargeFileError",
	11: "AuthenticationError",
	12: "RequiredMFAError",
	13: "TooManyRequestsError",
}

var statusMessages = map[int]string{
	http.StatusUnauthorized: "Authentication failed. Check your API key.",
	http.StatusForbidden:    "Access denied. Check your permissions.",
	http.StatusNotFound:     "Resource not found. Check your space/project settings.",
}

// ErrorCodeName maps a remote error code to its symbolic name.
func ErrorCodeName(code int) string {
	if name, ok := errorCodeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", code)
}

type errorBody struct {
	Errors []ErrorEntry `json:"errors"`
}

// parseErrorEntries extracts structured entries from a failure body. It
// returns nil when the body is empty, not JSON, or carries no entries.
func parseErrorEntries(body []byte) []ErrorEntry {
	if len(body) == 0 {
		return nil
	}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}
	if len(parsed.Errors) == 0 {
		return nil
	}
	return parsed.Errors
}

// classify builds the error for a non-2xx response.
func classify(status int, statusText string, entries []ErrorEntry) *Error {
	if len(entries) > 0 {
		lines := make([]string, 0, len(entries))
		for _, entry := range entries {
			line := fmt.Sprintf("[%s] %s", ErrorCodeName(entry.Code), entry.Message)
			if entry.MoreInfo != "" {
				line += " (" + entry.MoreInfo + ")"
			}
			lines = append(lines, line)
		}
		return &Error{Message: strings.Join(lines, "\n"), StatusCode: status, Errors: entries}
	}

	if message, ok := statusMessages[status]; ok {
		return &Error{Message: message, StatusCode: status}
	}
	return &Error{Message: fmt.Sprintf("API error: %d %s", status, statusText), StatusCode: status}
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr, true
	}
	return nil, false
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// IsRateLimited reports whether err is a rate-limit exhaustion.
func IsRateLimited(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.StatusCode == http.StatusTooManyRequests
}

// IsAuthFailure reports whether err is a 401 or 403.
func IsAuthFailure(err error) bool {
	apiErr, ok := AsError(err)
	return ok && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden)
}

// IsTransport reports whether err failed before any response arrived.
func IsTransport(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.StatusCode == 0
}
