package notifier

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gift-notify/internal/domain/entity"
	"gift-notify/internal/observability/metrics"
	"gift-notify/internal/resilience/retry"
)

// Typed gateway errors. They never leave this package: every public send
// converts them into an entity.DeliveryResult. Each unwraps to a
// retry.HTTPError so retry policies classify them by status code.

// RateLimitError represents a 429 answer from a provider.
type RateLimitError struct {
	RetryAfter time.Duration
	Code       string
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return &retry.HTTPError{StatusCode: http.StatusTooManyRequests, Message: e.Message}
}

// ClientError represents a 4xx answer from a provider.
type ClientError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return &retry.HTTPError{StatusCode: e.StatusCode, Message: e.Message}
}

// ServerError represents a 5xx answer from a provider.
type ServerError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

func (e *ServerError) Unwrap() error {
	return &retry.HTTPError{StatusCode: e.StatusCode, Message: e.Message}
}

// statusError classifies a non-2xx answer. code and message come from the
// provider's error body when it could be parsed.
func statusError(provider string, resp *http.Response, code, message string) error {
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	msg := fmt.Sprintf("%s API error %d: %s", provider, resp.StatusCode, message)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfter(resp), Code: code, Message: msg}
	case resp.StatusCode >= 500:
		return &ServerError{StatusCode: resp.StatusCode, Code: code, Message: msg}
	default:
		return &ClientError{StatusCode: resp.StatusCode, Code: code, Message: msg}
	}
}

// retryAfter reads the Retry-After header in seconds, defaulting to 5s.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 5 * time.Second
}

// failureResult converts a send error into a DeliveryResult for channel.
func failureResult(channel entity.Channel, err error) entity.DeliveryResult {
	res := entity.DeliveryResult{Channel: channel, Error: err.Error(), ErrorCode: entity.ErrCodeProvider}

	var (
		serverErr    *ServerError
		clientErr    *ClientError
		rateLimitErr *RateLimitError
	)
	switch {
	case errors.As(err, &serverErr):
		res.StatusCode = serverErr.StatusCode
		res.Status = serverErr.Code
	case errors.As(err, &clientErr):
		res.StatusCode = clientErr.StatusCode
		res.Status = clientErr.Code
	case errors.As(err, &rateLimitErr):
		res.StatusCode = http.StatusTooManyRequests
		res.Status = rateLimitErr.Code
	default:
		res.ErrorCode = entity.ErrCodeNetwork
	}
	return res
}

// RecordGateway classifies res for the gateway metrics. Exported for the
// push client, which shares the same metric families.
func RecordGateway(gateway string, start time.Time, res entity.DeliveryResult) {
	result := "success"
	switch {
	case res.Success:
	case res.ErrorCode == entity.ErrCodeSubscriptionExpired:
		result = "expired"
	case res.ErrorCode == entity.ErrCodeNetwork:
		result = "network_error"
	case res.StatusCode >= 500:
		result = "server_error"
	default:
		result = "client_error"
	}
	metrics.RecordGatewayRequest(gateway, result, time.Since(start))
}
