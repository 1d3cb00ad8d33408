package media

import "errors"

// ErrorCode aligns provider failures with retryability and fallback policy.
type ErrorCode string

const (
	ErrCodeInvalidRequest      ErrorCode = "MEDIA_INVALID_REQUEST"
	ErrCodeUnauthorized        ErrorCode = "MEDIA_UNAUTHORIZED"
	ErrCodeRateLimited         ErrorCode = "MEDIA_RATE_LIMITED"
	ErrCodeQuotaExceeded       ErrorCode = "MEDIA_QUOTA_EXCEEDED"
	ErrCodeProviderUnavailable ErrorCode = "MEDIA_PROVIDER_UNAVAILABLE"
	ErrCodeUpstreamError       ErrorCode = "MEDIA_UPSTREAM_ERROR"
	ErrCodeUpstreamTimeout     ErrorCode = "MEDIA_UPSTREAM_TIMEOUT"
	ErrCodeTaskNotFound        ErrorCode = "MEDIA_TASK_NOT_FOUND"
)

// Error is the typed error providers and the engine return.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider,omitempty"`
	Retryable bool      `json:"retryable"`
}

func (e *Error) Error() string { return e.Message }

var (
	// ErrUnknownProvider is returned when a provider id is not registered.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrProviderQuarantined is returned when a call targets a provider
	// whose quarantine cooldown has not expired.
	ErrProviderQuarantined = errors.New("provider is quarantined")
	// ErrNoSuchTask is returned by CheckStatus for an unknown task ref.
	ErrNoSuchTask = errors.New("no such task")
)
