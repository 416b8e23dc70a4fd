// Package config assembles the runtime configuration of the notification
// service from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gift-notify/internal/infra/db"
	"gift-notify/internal/infra/notifier"
	"gift-notify/internal/infra/webpush"
	envcfg "gift-notify/internal/pkg/config"
	"gift-notify/internal/resilience/circuitbreaker"
)

// Dedup backends.
const (
	DedupPostgres = "postgres"
	DedupValkey   = "valkey"
	DedupNone     = "none"
)

const minJWTSecretLen = 32

// NotifyConfig is everything cmd/api needs to wire the service.
type NotifyConfig struct {
	SMS        notifier.SMSConfig
	WhatsApp   notifier.WhatsAppConfig
	Push       webpush.Config
	SMSOptions notifier.SMSOptions

	// DryRun replaces the SMS and WhatsApp gateways with a logging sender.
	DryRun          bool
	PushConcurrency int
	// PhoneRulesFile optionally replaces the embedded country rules.
	PhoneRulesFile string

	Breaker  BreakerConfig
	Dedup    DedupConfig
	Database DatabaseConfig
	API      APIConfig
	LogLevel string
	// TraceSampleRatio is the share of new traces recorded.
	TraceSampleRatio float64
}

// BreakerConfig tunes the per-channel circuit breakers.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// For returns the breaker settings for one channel.
func (b BreakerConfig) For(name string) circuitbreaker.Config {
	return circuitbreaker.Config{
		Name:             name,
		MaxRequests:      b.MaxRequests,
		Interval:         b.Interval,
		Timeout:          b.Timeout,
		FailureThreshold: b.FailureThreshold,
		MinRequests:      b.MinRequests,
	}
}

type DedupConfig struct {
	Backend        string
	ValkeyAddr     string
	ValkeyPassword string
}

type DatabaseConfig struct {
	URL  string
	Pool db.ConnectionConfig
}

type APIConfig struct {
	Port           int
	MetricsPort    int
	JWTSecret      string
	RequestTimeout time.Duration
	// CallerRateLimit is requests per second per token subject; 0 disables it.
	CallerRateLimit float64
	CallerRateBurst int
}

// LoadNotifyConfig reads the environment. Malformed optional values fall back
// to their defaults with a warning; the result is then validated.
func LoadNotifyConfig(logger *slog.Logger, metrics *envcfg.Metrics) (*NotifyConfig, error) {
	l := envcfg.NewLoader(logger, metrics)
	defer l.Done()

	cb := circuitbreaker.GatewayConfig("")
	pool := db.DefaultConnectionConfig()
	positive := envcfg.ValidatePositiveDuration
	atLeastOne := func(v int) error { return envcfg.ValidateIntRange(v, 1, 10000) }
	rps := func(v float64) error {
		if v <= 0 {
			return fmt.Errorf("rate must be positive, got %v", v)
		}
		return nil
	}
	ratio := func(v float64) error {
		if v <= 0 || v > 1 {
			return fmt.Errorf("threshold must be in (0, 1], got %v", v)
		}
		return nil
	}

	httpTimeout := envcfg.Apply(l, "notify_http_timeout", envcfg.LoadDuration("NOTIFY_HTTP_TIMEOUT", 10*time.Second,
		func(d time.Duration) error { return envcfg.ValidateDurationRange(d, time.Second, time.Minute) }))

	cfg := &NotifyConfig{
		SMS: notifier.SMSConfig{
			AccountSID: envcfg.LoadString("SMS_ACCOUNT_SID", ""),
			AuthToken:  envcfg.LoadString("SMS_AUTH_TOKEN", ""),
			SenderID:   envcfg.LoadString("SMS_SENDER_ID", ""),
			BaseURL: envcfg.Apply(l, "sms_base_url",
				envcfg.LoadStringValidated("SMS_BASE_URL", notifier.DefaultSMSBaseURL, envcfg.ValidateBaseURL)),
			Timeout: httpTimeout,
			RetryDelay: envcfg.Apply(l, "sms_retry_delay", envcfg.LoadDuration("SMS_RETRY_DELAY", time.Second,
				func(d time.Duration) error { return envcfg.ValidateDurationRange(d, 0, 30*time.Second) })),
			RequestsPerSecond: envcfg.Apply(l, "sms_rate_limit", envcfg.LoadFloat("SMS_RATE_LIMIT", 10, rps)),
			Burst:             envcfg.Apply(l, "sms_rate_burst", envcfg.LoadInt("SMS_RATE_BURST", 20, atLeastOne)),
		},
		WhatsApp: notifier.WhatsAppConfig{
			AccessToken:   envcfg.LoadString("WHATSAPP_ACCESS_TOKEN", ""),
			PhoneNumberID: envcfg.LoadString("WHATSAPP_PHONE_NUMBER_ID", ""),
			BaseURL: envcfg.Apply(l, "whatsapp_base_url",
				envcfg.LoadStringValidated("WHATSAPP_BASE_URL", notifier.DefaultWhatsAppBaseURL, envcfg.ValidateBaseURL)),
			Timeout:           httpTimeout,
			RequestsPerSecond: envcfg.Apply(l, "whatsapp_rate_limit", envcfg.LoadFloat("WHATSAPP_RATE_LIMIT", 20, rps)),
			Burst:             envcfg.Apply(l, "whatsapp_rate_burst", envcfg.LoadInt("WHATSAPP_RATE_BURST", 40, atLeastOne)),
		},
		Push: webpush.Config{
			PublicKey:         envcfg.LoadString("VAPID_PUBLIC_KEY", ""),
			PrivateKey:        envcfg.LoadString("VAPID_PRIVATE_KEY", ""),
			Subject:           envcfg.LoadString("VAPID_SUBJECT", ""),
			Timeout:           httpTimeout,
			TTL:               envcfg.Apply(l, "push_ttl", envcfg.LoadDuration("PUSH_TTL", 24*time.Hour, positive)),
			RequestsPerSecond: envcfg.Apply(l, "push_rate_limit", envcfg.LoadFloat("PUSH_RATE_LIMIT", 50, rps)),
			Burst:             envcfg.Apply(l, "push_rate_burst", envcfg.LoadInt("PUSH_RATE_BURST", 100, atLeastOne)),
		},
		SMSOptions: notifier.SMSOptions{
			Truncate:  envcfg.Apply(l, "sms_truncate", envcfg.LoadBool("SMS_TRUNCATE", true)),
			RetryOnce: envcfg.Apply(l, "sms_retry_once", envcfg.LoadBool("SMS_RETRY_ONCE", true)),
		},
		DryRun: envcfg.Apply(l, "notify_dry_run", envcfg.LoadBool("NOTIFY_DRY_RUN", false)),
		PushConcurrency: envcfg.Apply(l, "push_concurrency", envcfg.LoadInt("PUSH_CONCURRENCY", 4,
			func(v int) error { return envcfg.ValidateIntRange(v, 1, 32) })),
		PhoneRulesFile: envcfg.LoadString("PHONE_RULES_FILE", ""),
		Breaker: BreakerConfig{
			MaxRequests: uint32(envcfg.Apply(l, "cb_max_requests",
				envcfg.LoadInt("CB_MAX_REQUESTS", int(cb.MaxRequests), atLeastOne))),
			Interval:         envcfg.Apply(l, "cb_interval", envcfg.LoadDuration("CB_INTERVAL", cb.Interval, positive)),
			Timeout:          envcfg.Apply(l, "cb_timeout", envcfg.LoadDuration("CB_TIMEOUT", cb.Timeout, positive)),
			FailureThreshold: envcfg.Apply(l, "cb_failure_threshold", envcfg.LoadFloat("CB_FAILURE_THRESHOLD", cb.FailureThreshold, ratio)),
			MinRequests: uint32(envcfg.Apply(l, "cb_min_requests",
				envcfg.LoadInt("CB_MIN_REQUESTS", int(cb.MinRequests), atLeastOne))),
		},
		Dedup: DedupConfig{
			Backend: envcfg.Apply(l, "dedup_backend", envcfg.LoadStringValidated("DEDUP_BACKEND", DedupPostgres,
				envcfg.OneOf(DedupPostgres, DedupValkey, DedupNone))),
			ValkeyAddr:     envcfg.LoadString("VALKEY_ADDR", ""),
			ValkeyPassword: envcfg.LoadString("VALKEY_PASSWORD", ""),
		},
		Database: DatabaseConfig{
			URL: envcfg.LoadString("DATABASE_URL", ""),
			Pool: db.ConnectionConfig{
				MaxOpenConns:    envcfg.Apply(l, "db_max_open_conns", envcfg.LoadInt("DB_MAX_OPEN_CONNS", pool.MaxOpenConns, atLeastOne)),
				MaxIdleConns:    envcfg.Apply(l, "db_max_idle_conns", envcfg.LoadInt("DB_MAX_IDLE_CONNS", pool.MaxIdleConns, atLeastOne)),
				ConnMaxLifetime: envcfg.Apply(l, "db_conn_max_lifetime", envcfg.LoadDuration("DB_CONN_MAX_LIFETIME", pool.ConnMaxLifetime, positive)),
				ConnMaxIdleTime: envcfg.Apply(l, "db_conn_max_idle_time", envcfg.LoadDuration("DB_CONN_MAX_IDLE_TIME", pool.ConnMaxIdleTime, positive)),
			},
		},
		API: APIConfig{
			Port:           envcfg.Apply(l, "api_port", envcfg.LoadInt("API_PORT", 8080, envcfg.ValidatePort)),
			MetricsPort:    envcfg.Apply(l, "metrics_port", envcfg.LoadInt("METRICS_PORT", 9090, envcfg.ValidatePort)),
			JWTSecret:      envcfg.LoadString("API_JWT_SECRET", ""),
			RequestTimeout: envcfg.Apply(l, "api_request_timeout", envcfg.LoadDuration("API_REQUEST_TIMEOUT", 60*time.Second, positive)),
			CallerRateLimit: envcfg.Apply(l, "api_caller_rate_limit", envcfg.LoadFloat("API_CALLER_RATE_LIMIT", 50,
				func(v float64) error {
					if v < 0 {
						return fmt.Errorf("rate must not be negative, got %v", v)
					}
					return nil
				})),
			CallerRateBurst: envcfg.Apply(l, "api_caller_rate_burst", envcfg.LoadInt("API_CALLER_RATE_BURST", 100, atLeastOne)),
		},
		LogLevel:         envcfg.LoadString("LOG_LEVEL", "info"),
		TraceSampleRatio: envcfg.Apply(l, "trace_sample_ratio", envcfg.LoadFloat("TRACE_SAMPLE_RATIO", 0.1, ratio)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid notify configuration: %w", err)
	}
	return cfg, nil
}

// Validate reports every problem that must stop the process. Missing gateway
// credentials are not among them: the channel is then reported disabled and
// sends fail with CREDENTIALS_MISSING.
func (c *NotifyConfig) Validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Database.Pool.MaxIdleConns > c.Database.Pool.MaxOpenConns {
		errs = append(errs, fmt.Errorf("DB_MAX_IDLE_CONNS (%d) cannot exceed DB_MAX_OPEN_CONNS (%d)",
			c.Database.Pool.MaxIdleConns, c.Database.Pool.MaxOpenConns))
	}

	if c.Dedup.Backend == DedupValkey && c.Dedup.ValkeyAddr == "" {
		errs = append(errs, errors.New("VALKEY_ADDR is required when DEDUP_BACKEND=valkey"))
	}

	set := 0
	for _, v := range []string{c.Push.PublicKey, c.Push.PrivateKey, c.Push.Subject} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		errs = append(errs, errors.New("VAPID_PUBLIC_KEY, VAPID_PRIVATE_KEY and VAPID_SUBJECT must be set together"))
	}

	if c.API.JWTSecret != "" && len(c.API.JWTSecret) < minJWTSecretLen {
		errs = append(errs, fmt.Errorf("API_JWT_SECRET must be at least %d characters", minJWTSecretLen))
	}
	if c.API.Port == c.API.MetricsPort {
		errs = append(errs, errors.New("API_PORT and METRICS_PORT must differ"))
	}

	return errors.Join(errs...)
}

// ChannelsConfigured reports which gateways have credentials. In dry-run mode
// SMS and WhatsApp are always available.
func (c *NotifyConfig) ChannelsConfigured() map[string]bool {
	return map[string]bool{
		"sms":      c.DryRun || (c.SMS.AccountSID != "" && c.SMS.AuthToken != "" && c.SMS.SenderID != ""),
		"whatsapp": c.DryRun || (c.WhatsApp.AccessToken != "" && c.WhatsApp.PhoneNumberID != ""),
		"push":     c.Push.PublicKey != "" && c.Push.PrivateKey != "" && c.Push.Subject != "",
	}
}
