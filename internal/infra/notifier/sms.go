package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gift-notify/internal/domain/entity"
	"gift-notify/internal/domain/phone"
	"gift-notify/internal/observability/logging"
	"gift-notify/internal/observability/tracing"
	"gift-notify/internal/resilience/retry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultSMSBaseURL is the Twilio-compatible REST API host.
const DefaultSMSBaseURL = "https://api.twilio.com"

// SMSConfig contains credentials and tuning for the SMS gateway.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	// SenderID is the alphanumeric sender id or sending number used as From.
	SenderID string

	// BaseURL defaults to DefaultSMSBaseURL.
	BaseURL string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// RetryDelay is the fixed wait before the single retry (default 1s).
	RetryDelay time.Duration

	RequestsPerSecond float64
	Burst             int
}

// SMSOptions controls one SendSMS call.
type SMSOptions struct {
	// Truncate cuts the body to phone.DefaultSMSLength characters.
	Truncate bool
	// RetryOnce allows one retry after a network error or a 5xx answer.
	RetryOnce bool
}

// DefaultSMSOptions truncates and retries once.
func DefaultSMSOptions() SMSOptions {
	return SMSOptions{Truncate: true, RetryOnce: true}
}

// SMSClient sends single SMS messages through a Twilio-compatible API.
type SMSClient struct {
	config      SMSConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewSMSClient creates an SMSClient. Missing credentials are not an error
// here; sends short-circuit with CREDENTIALS_MISSING instead.
func NewSMSClient(config SMSConfig) *SMSClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultSMSBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 10
	}
	if config.Burst <= 0 {
		config.Burst = 20
	}

	return &SMSClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: NewRateLimiter("sms", config.RequestsPerSecond, config.Burst),
	}
}

// Enabled reports whether all credentials are present.
func (c *SMSClient) Enabled() bool {
	return c.config.AccountSID != "" && c.config.AuthToken != "" && c.config.SenderID != ""
}

// smsMessageResponse is the subset of the message resource we read.
type smsMessageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// smsErrorResponse is the provider's error document.
type smsErrorResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

// SendSMS sends message to the recipient.
//
// The number is normalized first and must have at least 10 digits. With
// opts.RetryOnce, a network failure or a 5xx answer is retried exactly once
// after the configured fixed delay; every other failure is final.
func (c *SMSClient) SendSMS(ctx context.Context, to, message string, opts SMSOptions) entity.DeliveryResult {
	ctx, span := tracing.GetTracer().Start(ctx, "notifier.SendSMS")
	defer span.End()

	if !c.Enabled() {
		return entity.Failed(entity.ChannelSMS, entity.ErrCodeCredentialsMissing, "SMS credentials are not configured")
	}

	normalized := phone.Normalize(to)
	if n := phone.DigitCount(normalized); n < 10 {
		return entity.Failed(entity.ChannelSMS, entity.ErrCodeInvalidPhoneNumber,
			fmt.Sprintf("invalid phone number: expected at least 10 digits, got %d", n))
	}

	if opts.Truncate {
		message = phone.Truncate(message, phone.DefaultSMSLength)
	}

	logger := logging.FromContext(ctx).With(
		slog.String("channel", string(entity.ChannelSMS)),
		slog.String("to", logging.MaskPhone(normalized)))

	if err := c.rateLimiter.Allow(ctx); err != nil {
		logger.Warn("SMS rate limiter error", slog.Any("error", err))
		return failureResult(entity.ChannelSMS, fmt.Errorf("rate limiter: %w", err))
	}

	cfg := retry.SMSConfig(c.config.RetryDelay)
	if !opts.RetryOnce {
		cfg.MaxAttempts = 1
	}

	var (
		resp     *smsMessageResponse
		attempts int
		start    = time.Now()
	)
	err := retry.WithBackoff(ctx, cfg, func() error {
		attempts++
		r, err := c.post(ctx, normalized, message)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	span.SetAttributes(attribute.Int("sms.attempts", attempts))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sms send failed")
		res := failureResult(entity.ChannelSMS, err)
		RecordGateway("sms", start, res)
		logger.Warn("SMS send failed",
			slog.Int("attempts", attempts),
			slog.Int("status_code", res.StatusCode),
			slog.String("error_code", string(res.ErrorCode)),
			slog.Any("error", err))
		return res
	}

	logger.Info("SMS sent",
		slog.String("sid", resp.SID),
		slog.String("status", resp.Status),
		slog.Int("attempts", attempts))

	res := entity.DeliveryResult{
		Success: true,
		Channel: entity.ChannelSMS,
		SID:     resp.SID,
		Status:  resp.Status,
	}
	RecordGateway("sms", start, res)
	return res
}

// post performs one send request.
func (c *SMSClient) post(ctx context.Context, to, message string) (*smsMessageResponse, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		c.config.BaseURL, url.PathEscape(c.config.AccountSID))

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.config.SenderID)
	form.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	req.SetBasicAuth(c.config.AccountSID, c.config.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr smsErrorResponse
		code := ""
		msg := ""
		if json.Unmarshal(body, &apiErr) == nil {
			if apiErr.Code != 0 {
				code = strconv.Itoa(apiErr.Code)
			}
			msg = apiErr.Message
		}
		return nil, statusError("SMS", resp, code, msg)
	}

	// The message was accepted; an unreadable body must not trigger a resend.
	var out smsMessageResponse
	if err := json.Unmarshal(body, &out); err != nil || out.Status == "" {
		out.Status = strconv.Itoa(resp.StatusCode)
	}
	return &out, nil
}
