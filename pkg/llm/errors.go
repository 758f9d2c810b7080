// Error types and handling
package llm

import "errors"

// Common error codes reported by providers
const (
	ErrCodeMissingAPIKey = "missing_api_key"
	ErrCodeInvalidAPIKey = "invalid_api_key"
	ErrCodeUnknown       = "unknown_error"
)

// Common error types, matching the OpenAI wire taxonomy
const (
	ErrTypeAuthentication = "authentication_error"
	ErrTypeRateLimit      = "rate_limit_error"
	ErrTypeInvalidRequest = "invalid_request_error"
	ErrTypeAPI            = "api_error"
)

// Error represents a standardized LLM error
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	StatusCode int    `json:"status_code,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates a standardized error
func NewError(code, errType, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Type:    errType,
	}
}

// WithStatus attaches an HTTP status code to the error
func (e *Error) WithStatus(statusCode int) *Error {
	e.StatusCode = statusCode
	return e
}

// AsError unwraps err into a *Error if possible
func AsError(err error) (*Error, bool) {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr, true
	}
	return nil, false
}

// IsRateLimited reports whether err is a rate-limit error from a provider
func IsRateLimited(err error) bool {
	llmErr, ok := AsError(err)
	if !ok {
		return false
	}
	return llmErr.Type == ErrTypeRateLimit || llmErr.StatusCode == 429
}
