package wallet

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// ErrMissingParameter marks a request rejected before any upstream call.
var ErrMissingParameter = errors.New("missing required parameter")

// IsNotFound reports whether the issuer API rejected the call with 404.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// IsTimeout reports whether err came from an expired deadline on the outbound call.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ErrorMessage extracts the caller-facing message for err. Issuer API errors
// carry the platform's own message; short plain-text bodies are passed through.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	if body := strings.TrimSpace(apiErr.Body); body != "" && len(body) < 512 {
		return body
	}
	if text := http.StatusText(apiErr.Code); text != "" {
		return text
	}
	return apiErr.Error()
}

func statusOf(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
