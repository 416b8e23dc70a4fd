// Package notify orchestrates outbound notifications: it plans which
// channels to try for a request, sends through them one at a time until one
// succeeds, suppresses duplicates per alert type and records every attempt
// in the delivery audit log.
package notify

import (
	"context"

	"gift-notify/internal/domain/entity"
)

// Delivery steps. A channel may contribute more than one step
// (WhatsApp tries an approved template before a free-form message).
const (
	StepWhatsAppTemplate = "whatsapp_template"
	StepWhatsAppFreeform = "whatsapp_freeform"
	StepSMS              = "sms"
	StepPush             = "push"
)

// ChannelAttempt is one planned step of a delivery plan.
//
// Send must not panic and reports every failure through the returned
// DeliveryResult. The dispatcher calls it at most once.
type ChannelAttempt struct {
	Channel entity.Channel
	Step    string
	Send    func(ctx context.Context) entity.DeliveryResult
}

// AttemptRecorder persists executed attempts.
type AttemptRecorder interface {
	Create(ctx context.Context, attempt *entity.DeliveryAttempt) error
}
