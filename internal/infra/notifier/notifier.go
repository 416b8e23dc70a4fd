// Package notifier provides the outbound messaging gateway clients: an SMS
// client for a Twilio-compatible REST API and a WhatsApp Cloud API client.
//
// Every send returns an entity.DeliveryResult value. Configuration problems,
// invalid recipients and provider failures are reported through the result's
// ErrorCode; the clients never return Go errors or panic on bad input.
//
// Both clients apply a token bucket rate limiter per gateway and log each
// attempt with the request id and a masked recipient. Message bodies and
// credentials are never logged.
package notifier

import (
	"context"

	"gift-notify/internal/domain/entity"
)

// SMSSender sends single SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string, opts SMSOptions) entity.DeliveryResult
	Enabled() bool
}

// WhatsAppSender sends free-form and template WhatsApp messages.
type WhatsAppSender interface {
	SendFreeform(ctx context.Context, to, message string) entity.DeliveryResult
	SendTemplate(ctx context.Context, to string, tmpl entity.TemplateMessage) entity.DeliveryResult
	Enabled() bool
}

var (
	_ SMSSender      = (*SMSClient)(nil)
	_ WhatsAppSender = (*WhatsAppClient)(nil)
)
