package remote

import "fmt"

// ApiError is returned for every failure talking to the ingestion API:
// local transport failures (status code 0) and HTTP-level failures
// (status >= 400). It implements resilience.Retryable so the Backoff
// Driver retries every ApiError forever and nothing else.
type ApiError struct {
	StatusCode int
	Name       string
	Message    string
	Body       string
}

func (e *ApiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d: %s (%s)", e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Name)
}

// Retryable makes every ApiError retryable: any failure talking to the
// ingestion API is treated as transient, never as a reason to give up.
func (e *ApiError) Retryable() bool { return true }

func transportError(name string, err error) *ApiError {
	return &ApiError{StatusCode: 0, Name: name, Message: err.Error()}
}
