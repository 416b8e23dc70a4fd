package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gift-notify/internal/domain/entity"
	"gift-notify/internal/domain/phone"
	"gift-notify/internal/observability/logging"
	"gift-notify/internal/observability/tracing"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// DefaultWhatsAppBaseURL is the Graph API host.
	DefaultWhatsAppBaseURL = "https://graph.facebook.com"
	whatsAppAPIVersion     = "v18.0"
)

// WhatsAppConfig contains credentials and tuning for the WhatsApp Cloud API.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string

	// BaseURL defaults to DefaultWhatsAppBaseURL.
	BaseURL string
	Timeout time.Duration

	RequestsPerSecond float64
	Burst             int

	// Rules validates recipients; nil means phone.Default().
	Rules *phone.Rules
}

// WhatsAppClient sends free-form and template messages. Both entry points
// share one resty transport and are never retried.
type WhatsAppClient struct {
	config      WhatsAppConfig
	http        *resty.Client
	rateLimiter *RateLimiter
}

// NewWhatsAppClient creates a WhatsAppClient.
func NewWhatsAppClient(config WhatsAppConfig) *WhatsAppClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultWhatsAppBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 20
	}
	if config.Burst <= 0 {
		config.Burst = 40
	}
	if config.Rules == nil {
		config.Rules = phone.Default()
	}

	httpClient := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetAuthToken(config.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WhatsAppClient{
		config:      config,
		http:        httpClient,
		rateLimiter: NewRateLimiter("whatsapp", config.RequestsPerSecond, config.Burst),
	}
}

// Enabled reports whether the access token and phone number id are present.
func (c *WhatsAppClient) Enabled() bool {
	return c.config.AccessToken != "" && c.config.PhoneNumberID != ""
}

type waMessage struct {
	MessagingProduct string      `json:"messaging_product"`
	RecipientType    string      `json:"recipient_type"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             *waText     `json:"text,omitempty"`
	Template         *waTemplate `json:"template,omitempty"`
}

type waText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type waTemplate struct {
	Name       string        `json:"name"`
	Language   waLanguage    `json:"language"`
	Components []waComponent `json:"components,omitempty"`
}

type waLanguage struct {
	Code string `json:"code"`
}

type waComponent struct {
	Type       string        `json:"type"`
	SubType    string        `json:"sub_type,omitempty"`
	Index      string        `json:"index,omitempty"`
	Parameters []waParameter `json:"parameters"`
}

type waParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type waSendResponse struct {
	Messages []struct {
		ID            string `json:"id"`
		MessageStatus string `json:"message_status"`
	} `json:"messages"`
}

type waErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendFreeform sends a plain text message. It only reaches the recipient
// inside an open 24h conversation window; the window is not tracked here.
func (c *WhatsAppClient) SendFreeform(ctx context.Context, to, message string) entity.DeliveryResult {
	return c.send(ctx, "whatsapp_freeform", to, func(recipient string) waMessage {
		return waMessage{
			MessagingProduct: "whatsapp",
			RecipientType:    "individual",
			To:               recipient,
			Type:             "text",
			Text:             &waText{Body: message},
		}
	})
}

// SendTemplate sends a pre-approved template message.
func (c *WhatsAppClient) SendTemplate(ctx context.Context, to string, tmpl entity.TemplateMessage) entity.DeliveryResult {
	return c.send(ctx, "whatsapp_template", to, func(recipient string) waMessage {
		return waMessage{
			MessagingProduct: "whatsapp",
			RecipientType:    "individual",
			To:               recipient,
			Type:             "template",
			Template:         buildTemplate(tmpl),
		}
	})
}

// buildTemplate maps body parameters onto one body component and every
// button parameter onto a url button at the same index.
func buildTemplate(tmpl entity.TemplateMessage) *waTemplate {
	out := &waTemplate{
		Name:     tmpl.Name,
		Language: waLanguage{Code: tmpl.LanguageCode},
	}

	if len(tmpl.BodyParameters) > 0 {
		body := waComponent{Type: "body", Parameters: make([]waParameter, 0, len(tmpl.BodyParameters))}
		for _, p := range tmpl.BodyParameters {
			body.Parameters = append(body.Parameters, waParameter{Type: "text", Text: p})
		}
		out.Components = append(out.Components, body)
	}

	for i, p := range tmpl.ButtonParameters {
		out.Components = append(out.Components, waComponent{
			Type:       "button",
			SubType:    "url",
			Index:      strconv.Itoa(i),
			Parameters: []waParameter{{Type: "text", Text: p}},
		})
	}
	return out
}

func (c *WhatsAppClient) send(ctx context.Context, step, to string, build func(recipient string) waMessage) entity.DeliveryResult {
	ctx, span := tracing.GetTracer().Start(ctx, "notifier.WhatsApp")
	defer span.End()
	span.SetAttributes(attribute.String("whatsapp.step", step))

	if !c.Enabled() {
		return entity.Failed(entity.ChannelWhatsApp, entity.ErrCodeCredentialsMissing, "WhatsApp credentials are not configured")
	}

	normalized := phone.Normalize(to)
	if ok, reason := c.config.Rules.ValidateForWhatsApp(normalized); !ok {
		return entity.Failed(entity.ChannelWhatsApp, entity.ErrCodeInvalidPhoneNumber, reason)
	}

	logger := logging.FromContext(ctx).With(
		slog.String("channel", string(entity.ChannelWhatsApp)),
		slog.String("step", step),
		slog.String("to", logging.MaskPhone(normalized)))

	if err := c.rateLimiter.Allow(ctx); err != nil {
		logger.Warn("WhatsApp rate limiter error", slog.Any("error", err))
		return failureResult(entity.ChannelWhatsApp, fmt.Errorf("rate limiter: %w", err))
	}

	// The Cloud API takes the number without the leading "+".
	payload := build(strings.TrimPrefix(normalized, "+"))
	start := time.Now()

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&waSendResponse{}).
		SetError(&waErrorResponse{}).
		Post(fmt.Sprintf("/%s/%s/messages", whatsAppAPIVersion, c.config.PhoneNumberID))
	if err != nil {
		err = fmt.Errorf("execute http request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "whatsapp send failed")
		logger.Warn("WhatsApp send failed", slog.Any("error", err))
		res := failureResult(entity.ChannelWhatsApp, err)
		RecordGateway("whatsapp", start, res)
		return res
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		code, msg := "", ""
		if apiErr, ok := resp.Error().(*waErrorResponse); ok && apiErr != nil {
			if apiErr.Error.Code != 0 {
				code = strconv.Itoa(apiErr.Error.Code)
			}
			msg = apiErr.Error.Message
		}
		err := statusError("WhatsApp", resp.RawResponse, code, msg)
		span.RecordError(err)
		span.SetStatus(codes.Error, "whatsapp send failed")
		res := failureResult(entity.ChannelWhatsApp, err)
		RecordGateway("whatsapp", start, res)
		logger.Warn("WhatsApp send failed",
			slog.Int("status_code", res.StatusCode),
			slog.String("provider_code", code))
		return res
	}

	res := entity.DeliveryResult{
		Success:    true,
		Channel:    entity.ChannelWhatsApp,
		Status:     "accepted",
		StatusCode: resp.StatusCode(),
	}
	if out, ok := resp.Result().(*waSendResponse); ok && out != nil && len(out.Messages) > 0 {
		res.SID = out.Messages[0].ID
		if out.Messages[0].MessageStatus != "" {
			res.Status = out.Messages[0].MessageStatus
		}
	}

	RecordGateway("whatsapp", start, res)
	logger.Info("WhatsApp message sent", slog.String("sid", res.SID))
	return res
}
