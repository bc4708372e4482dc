package generation

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoCredentials is returned when zero valid credentials are configured.
// No network call is attempted in that case.
var ErrNoCredentials = errors.New("no generation credentials configured")

// ProviderError is a failed provider call carrying the HTTP status code.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Message)
}

// ExhaustedError is returned when every credential in the pool was tried and
// every attempt failed.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d credentials failed, last error: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// IsRateLimited reports whether err (or any wrapped error, including the last
// failure inside an ExhaustedError) is a provider rate-limit response.
func IsRateLimited(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusTooManyRequests
}
