package entity

import (
	"strings"
	"time"
)

// Channel identifies an outbound delivery channel.
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelPush     Channel = "push"
)

// Valid reports whether c is one of the supported channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelWhatsApp, ChannelPush:
		return true
	}
	return false
}

// Outcome is the aggregate result of handling one NotificationRequest.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// TemplateMessage is a pre-approved WhatsApp template invocation.
// BodyParameters fill the body placeholders in order; each ButtonParameters
// entry becomes the dynamic URL suffix of the button at the same index.
type TemplateMessage struct {
	Name             string   `json:"name"`
	LanguageCode     string   `json:"language_code"`
	BodyParameters   []string `json:"body_parameters,omitempty"`
	ButtonParameters []string `json:"button_parameters,omitempty"`
}

// NotificationRequest is produced once per triggering event and consumed once.
// It is never persisted itself; only the resulting DeliveryAttempts are.
type NotificationRequest struct {
	// EventType names the alert kind (e.g. "contact_added"). Used for dedup.
	EventType string
	// EventKey optionally narrows dedup to one business object (fund id, order id).
	EventKey string

	Phone  string
	UserID string

	Body     string
	Template *TemplateMessage

	// PushPayload is the JSON document delivered to browsers. When empty the
	// Body is wrapped into a minimal payload.
	PushPayload []byte

	Urgent bool
	// ForcedChannel restricts delivery to a single channel when set.
	ForcedChannel Channel
}

// HasTemplate reports whether the request carries a usable WhatsApp template.
func (r *NotificationRequest) HasTemplate() bool {
	return r.Template != nil && strings.TrimSpace(r.Template.Name) != ""
}

// Recipient returns the identity used for dedup and audit: the phone when
// present, otherwise the platform user id.
func (r *NotificationRequest) Recipient() string {
	if r.Phone != "" {
		return r.Phone
	}
	return r.UserID
}

// Validate checks the request has a recipient and some content.
func (r *NotificationRequest) Validate() error {
	if strings.TrimSpace(r.Phone) == "" && strings.TrimSpace(r.UserID) == "" {
		return &ValidationError{Field: "recipient", Message: "phone or user_id is required"}
	}
	if strings.TrimSpace(r.Body) == "" && !r.HasTemplate() && len(r.PushPayload) == 0 {
		return &ValidationError{Field: "content", Message: "body, template or push payload is required"}
	}
	if r.ForcedChannel != "" && !r.ForcedChannel.Valid() {
		return &ValidationError{Field: "channel", Message: "invalid channel " + string(r.ForcedChannel)}
	}
	return nil
}

// DeliveryResult is the uniform value every gateway send returns.
type DeliveryResult struct {
	Success    bool
	Channel    Channel
	SID        string // provider message id
	Status     string // provider status (e.g. "queued", "accepted", "201")
	Error      string
	ErrorCode  ErrorCode
	StatusCode int
}

// Failed builds an unsuccessful result.
func Failed(channel Channel, code ErrorCode, msg string) DeliveryResult {
	return DeliveryResult{Channel: channel, ErrorCode: code, Error: msg}
}

// DeliveryAttempt is the append-only audit record of one gateway call.
type DeliveryAttempt struct {
	ID             string
	RequestID      string
	EventType      string
	Recipient      string
	Channel        Channel
	Step           string // "whatsapp_template", "whatsapp_freeform", "sms", "push"
	ExternalID     string
	ProviderStatus string
	ErrorCode      ErrorCode
	ErrorMessage   string
	Success        bool
	CreatedAt      time.Time
}
