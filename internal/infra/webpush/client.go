package webpush

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gift-notify/internal/domain/entity"
	"gift-notify/internal/infra/notifier"
	"gift-notify/internal/observability/logging"
	"gift-notify/internal/observability/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Config holds the VAPID identity and delivery tuning.
type Config struct {
	PublicKey  string
	PrivateKey string
	Subject    string

	Timeout time.Duration
	// TTL is how long the push service keeps an undelivered message.
	TTL time.Duration

	RequestsPerSecond float64
	Burst             int
}

// Client delivers encrypted messages to push service endpoints.
type Client struct {
	keys        *KeyMaterial
	ttl         time.Duration
	httpClient  *http.Client
	rateLimiter *notifier.RateLimiter
	now         func() time.Time
}

// NewClient creates a push client. Missing VAPID values yield a client whose
// sends fail with CREDENTIALS_MISSING; values that are present but invalid
// are a configuration error.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 100
	}

	c := &Client{
		ttl:         cfg.TTL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: notifier.NewRateLimiter("push", cfg.RequestsPerSecond, cfg.Burst),
		now:         time.Now,
	}

	if cfg.PublicKey != "" && cfg.PrivateKey != "" && cfg.Subject != "" {
		keys, err := NewKeyMaterial(cfg.PublicKey, cfg.PrivateKey, cfg.Subject)
		if err != nil {
			return nil, fmt.Errorf("load vapid keys: %w", err)
		}
		c.keys = keys
	}
	return c, nil
}

// NewClientWithKeys creates a push client around existing key material.
func NewClientWithKeys(keys *KeyMaterial, cfg Config) *Client {
	c, _ := NewClient(Config{Timeout: cfg.Timeout, TTL: cfg.TTL, RequestsPerSecond: cfg.RequestsPerSecond, Burst: cfg.Burst})
	c.keys = keys
	return c
}

// Enabled reports whether VAPID keys are configured.
func (c *Client) Enabled() bool {
	return c.keys != nil
}

// PublicKey returns the applicationServerKey browsers subscribe with.
func (c *Client) PublicKey() string {
	if c.keys == nil {
		return ""
	}
	return c.keys.PublicKey()
}

// Send encrypts payload for sub and posts it to the subscription endpoint.
// A 404 or 410 answer reports subscription_expired; nothing is retried.
func (c *Client) Send(ctx context.Context, sub Subscription, payload []byte) entity.DeliveryResult {
	ctx, span := tracing.GetTracer().Start(ctx, "webpush.Send")
	defer span.End()

	if c.keys == nil {
		return entity.Failed(entity.ChannelPush, entity.ErrCodeCredentialsMissing, "VAPID keys are not configured")
	}

	p256dhB64, authB64, ok := sub.ResolveKeys()
	if !ok {
		return entity.Failed(entity.ChannelPush, entity.ErrCodeMissingKeys, "subscription has no p256dh/auth keys")
	}

	record, err := c.encrypt(p256dhB64, authB64, payload)
	if err != nil {
		code := entity.ErrCodeEncryption
		if errors.Is(err, ErrPayloadTooLarge) {
			code = entity.ErrCodePayloadTooLarge
		}
		return entity.Failed(entity.ChannelPush, code, err.Error())
	}

	authz, err := c.keys.AuthorizationHeader(sub.Endpoint, c.now())
	if err != nil {
		return entity.Failed(entity.ChannelPush, entity.ErrCodeEncryption, err.Error())
	}

	logger := logging.FromContext(ctx).With(slog.String("channel", string(entity.ChannelPush)))
	if aud, err := audience(sub.Endpoint); err == nil {
		logger = logger.With(slog.String("push_service", aud))
		span.SetAttributes(attribute.String("webpush.service", aud))
	}

	if err := c.rateLimiter.Allow(ctx); err != nil {
		return entity.Failed(entity.ChannelPush, entity.ErrCodeNetwork, fmt.Sprintf("rate limiter: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(record.Bytes()))
	if err != nil {
		return entity.Failed(entity.ChannelPush, entity.ErrCodeProvider, fmt.Sprintf("create http request: %v", err))
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Content-Encoding", "aes128gcm")
	req.Header.Set("TTL", strconv.Itoa(int(c.ttl.Seconds())))
	req.Header.Set("Urgency", "high")
	req.Header.Set("Authorization", authz)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		res := entity.Failed(entity.ChannelPush, entity.ErrCodeNetwork, fmt.Sprintf("execute http request: %v", err))
		notifier.RecordGateway("push", start, res)
		span.RecordError(err)
		span.SetStatus(codes.Error, "push send failed")
		logger.Warn("push send failed", slog.Any("error", err))
		return res
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	var res entity.DeliveryResult
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		res = entity.DeliveryResult{
			Success:    true,
			Channel:    entity.ChannelPush,
			Status:     strconv.Itoa(resp.StatusCode),
			StatusCode: resp.StatusCode,
			SID:        resp.Header.Get("Location"),
		}
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		res = entity.Failed(entity.ChannelPush, entity.ErrCodeSubscriptionExpired, string(entity.ErrCodeSubscriptionExpired))
		res.StatusCode = resp.StatusCode
	default:
		res = entity.Failed(entity.ChannelPush, entity.ErrCodeProvider,
			fmt.Sprintf("push service error %d: %s", resp.StatusCode, bytes.TrimSpace(body)))
		res.StatusCode = resp.StatusCode
	}

	notifier.RecordGateway("push", start, res)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if res.Success {
		logger.Info("push delivered", slog.Int("status_code", resp.StatusCode))
	} else {
		span.SetStatus(codes.Error, string(res.ErrorCode))
		logger.Warn("push rejected",
			slog.Int("status_code", resp.StatusCode),
			slog.String("error_code", string(res.ErrorCode)))
	}
	return res
}

func (c *Client) encrypt(p256dhB64, authB64 string, payload []byte) (*EncryptedRecord, error) {
	clientKey, err := decodeBase64(p256dhB64)
	if err != nil {
		return nil, fmt.Errorf("%w: p256dh: %v", ErrInvalidKey, err)
	}
	auth, err := decodeBase64(authB64)
	if err != nil {
		return nil, fmt.Errorf("%w: auth: %v", ErrInvalidKey, err)
	}
	return Encrypt(clientKey, auth, payload)
}
