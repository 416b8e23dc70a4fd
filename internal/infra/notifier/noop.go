package notifier

import (
	"context"
	"log/slog"

	"gift-notify/internal/domain/entity"
	"gift-notify/internal/domain/phone"
	"gift-notify/internal/observability/logging"

	"github.com/google/uuid"
)

// DryRunSender stands in for both gateways when NOTIFY_DRY_RUN is set.
// It validates recipients like the real clients but never calls a provider,
// so staging environments exercise the full fallback chain without cost.
type DryRunSender struct {
	rules *phone.Rules
}

// NewDryRunSender creates a DryRunSender that validates WhatsApp recipients
// against rules, or phone.Default() when rules is nil.
func NewDryRunSender(rules *phone.Rules) *DryRunSender {
	if rules == nil {
		rules = phone.Default()
	}
	return &DryRunSender{rules: rules}
}

// Enabled always returns true.
func (d *DryRunSender) Enabled() bool { return true }

// SendSMS logs the send and reports success.
func (d *DryRunSender) SendSMS(ctx context.Context, to, message string, opts SMSOptions) entity.DeliveryResult {
	normalized := phone.Normalize(to)
	if phone.DigitCount(normalized) < 10 {
		return entity.Failed(entity.ChannelSMS, entity.ErrCodeInvalidPhoneNumber, "invalid phone number")
	}
	return d.accept(ctx, entity.ChannelSMS, "sms", normalized)
}

// SendFreeform logs the send and reports success.
func (d *DryRunSender) SendFreeform(ctx context.Context, to, message string) entity.DeliveryResult {
	return d.whatsapp(ctx, "whatsapp_freeform", to)
}

// SendTemplate logs the send and reports success.
func (d *DryRunSender) SendTemplate(ctx context.Context, to string, tmpl entity.TemplateMessage) entity.DeliveryResult {
	return d.whatsapp(ctx, "whatsapp_template", to)
}

func (d *DryRunSender) whatsapp(ctx context.Context, step, to string) entity.DeliveryResult {
	normalized := phone.Normalize(to)
	if ok, reason := d.rules.ValidateForWhatsApp(normalized); !ok {
		return entity.Failed(entity.ChannelWhatsApp, entity.ErrCodeInvalidPhoneNumber, reason)
	}
	return d.accept(ctx, entity.ChannelWhatsApp, step, normalized)
}

func (d *DryRunSender) accept(ctx context.Context, channel entity.Channel, step, to string) entity.DeliveryResult {
	sid := "dryrun-" + uuid.NewString()
	logging.FromContext(ctx).Info("dry run send",
		slog.String("channel", string(channel)),
		slog.String("step", step),
		slog.String("to", logging.MaskPhone(to)),
		slog.String("sid", sid))
	return entity.DeliveryResult{Success: true, Channel: channel, SID: sid, Status: "dry_run"}
}

var (
	_ SMSSender      = (*DryRunSender)(nil)
	_ WhatsAppSender = (*DryRunSender)(nil)
)
