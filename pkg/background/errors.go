package background

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
)

var (
	// ErrNotImage is returned when a download succeeds but is not an image.
	ErrNotImage = errors.New("background: response is not an image")
	// ErrNoImages is returned by DirSource when its directory has no usable files.
	ErrNoImages = errors.New("background: no images found")
	// ErrInvalidSize is returned for a Request without a positive width and height.
	ErrInvalidSize = errors.New("background: width and height must be positive")
	// ErrTooLarge is returned when a response body exceeds its size cap.
	ErrTooLarge = errors.New("background: response too large")
)

// APIError captures a non-2xx response from the photo service.
type APIError struct {
	StatusCode int
	// Message is taken from the JSON "errors" list when present, otherwise the body.
	Message string
	RawBody []byte
}

func (e *APIError) Error() string {
	b := strings.Builder{}
	b.WriteString("background: API error (status=")
	b.WriteString(strconv.Itoa(e.StatusCode))
	b.WriteString(")")
	if m := strings.TrimSpace(e.Message); m != "" {
		b.WriteString(": ")
		b.WriteString(m)
	}
	return b.String()
}

// IsRateLimitError returns true if err wraps an APIError with HTTP status 429.
func IsRateLimitError(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// IsAuthError returns true if err wraps an APIError with HTTP status 401 or 403.
func IsAuthError(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode == http.StatusUnauthorized || ae.StatusCode == http.StatusForbidden
	}
	return false
}

// IsRetryable reports whether a failed request is worth repeating. Rate
// limiting, server errors, timeouts and failed connections are; a bad URL
// scheme or a rejected TLS certificate is not.
func IsRetryable(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode == http.StatusTooManyRequests || ae.StatusCode >= 500
	}
	// *url.Error is itself a net.Error, so only its Timeout answer counts.
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}

func buildAPIError(status int, body []byte) error {
	trimmed := strings.TrimSpace(string(body))
	ae := &APIError{StatusCode: status, RawBody: body, Message: trimmed}

	// Unsplash reports failures as {"errors": ["..."]}.
	if strings.HasPrefix(trimmed, "{") {
		var obj struct {
			Errors []string `json:"errors"`
		}
		if err := json.Unmarshal(body, &obj); err == nil && len(obj.Errors) > 0 {
			ae.Message = strings.Join(obj.Errors, "; ")
		}
	}
	return ae
}
