package notification

import (
	"bytes"
	"encoding/json"
	"time"

	"gift-notify/internal/domain/entity"
	"gift-notify/internal/infra/webpush"
	"gift-notify/internal/observability/logging"
	"gift-notify/internal/usecase/notify"
)

// TemplateDTO is a WhatsApp template invocation.
type TemplateDTO struct {
	Name             string   `json:"name" validate:"required,max=512"`
	LanguageCode     string   `json:"language_code" validate:"omitempty,max=15"`
	BodyParameters   []string `json:"body_parameters" validate:"max=20,dive,max=1024"`
	ButtonParameters []string `json:"button_parameters" validate:"max=10,dive,max=2000"`
}

// SendRequest is the body of POST /v1/notifications.
type SendRequest struct {
	EventType   string          `json:"event_type" validate:"required,event_type"`
	EventKey    string          `json:"event_key" validate:"max=128"`
	Phone       string          `json:"phone" validate:"required_without=UserID,max=32"`
	UserID      string          `json:"user_id" validate:"required_without=Phone,max=128"`
	Body        string          `json:"body" validate:"max=4096"`
	Template    *TemplateDTO    `json:"template" validate:"omitempty"`
	PushPayload json.RawMessage `json:"push_payload"`
	Urgent      bool            `json:"urgent"`
	Channel     string          `json:"channel" validate:"omitempty,oneof=sms whatsapp push"`
}

func (r *SendRequest) toEntity() *entity.NotificationRequest {
	req := &entity.NotificationRequest{
		EventType:     r.EventType,
		EventKey:      r.EventKey,
		Phone:         r.Phone,
		UserID:        r.UserID,
		Body:          r.Body,
		Urgent:        r.Urgent,
		ForcedChannel: entity.Channel(r.Channel),
	}
	if p := bytes.TrimSpace(r.PushPayload); len(p) > 0 && !bytes.Equal(p, []byte("null")) {
		req.PushPayload = p
	}
	if r.Template != nil {
		req.Template = &entity.TemplateMessage{
			Name:             r.Template.Name,
			LanguageCode:     r.Template.LanguageCode,
			BodyParameters:   r.Template.BodyParameters,
			ButtonParameters: r.Template.ButtonParameters,
		}
	}
	return req
}

// AttemptDTO is one audited gateway call. Provider error text stays in the
// logs; callers get the code.
type AttemptDTO struct {
	ID             string    `json:"id"`
	RequestID      string    `json:"request_id"`
	EventType      string    `json:"event_type"`
	Recipient      string    `json:"recipient"`
	Channel        string    `json:"channel"`
	Step           string    `json:"step"`
	Success        bool      `json:"success"`
	ExternalID     string    `json:"external_id,omitempty"`
	ProviderStatus string    `json:"provider_status,omitempty"`
	ErrorCode      string    `json:"error_code,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func attemptDTO(a *entity.DeliveryAttempt) AttemptDTO {
	return AttemptDTO{
		ID:             a.ID,
		RequestID:      a.RequestID,
		EventType:      a.EventType,
		Recipient:      logging.MaskPhone(a.Recipient),
		Channel:        string(a.Channel),
		Step:           a.Step,
		Success:        a.Success,
		ExternalID:     a.ExternalID,
		ProviderStatus: a.ProviderStatus,
		ErrorCode:      string(a.ErrorCode),
		CreatedAt:      a.CreatedAt,
	}
}

// ReportDTO is the body returned by POST /v1/notifications.
type ReportDTO struct {
	RequestID  string       `json:"request_id"`
	Outcome    string       `json:"outcome"`
	Channel    string       `json:"channel,omitempty"`
	ExternalID string       `json:"external_id,omitempty"`
	ErrorCode  string       `json:"error_code,omitempty"`
	Attempts   []AttemptDTO `json:"attempts"`
}

func reportDTO(r notify.Report) ReportDTO {
	out := ReportDTO{
		RequestID: r.RequestID,
		Outcome:   string(r.Outcome),
		Attempts:  make([]AttemptDTO, 0, len(r.Attempts)),
	}
	switch r.Outcome {
	case entity.OutcomeSent:
		out.Channel = string(r.Result.Channel)
		out.ExternalID = r.Result.SID
	case entity.OutcomeFailed:
		out.ErrorCode = string(r.Result.ErrorCode)
	}
	for i := range r.Attempts {
		out.Attempts = append(out.Attempts, attemptDTO(&r.Attempts[i]))
	}
	return out
}

// SubscribeRequest is the body of POST /v1/push/subscriptions. The
// subscription accepts every key layout webpush.Subscription understands.
type SubscribeRequest struct {
	UserID       string               `json:"user_id" validate:"required,max=128"`
	Subscription webpush.Subscription `json:"subscription"`
}

// SubscriptionDTO describes a stored subscription without its keys.
type SubscriptionDTO struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func subscriptionDTO(s *entity.PushSubscription) SubscriptionDTO {
	return SubscriptionDTO{
		ID:        s.ID,
		UserID:    s.UserID,
		Endpoint:  s.Endpoint,
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
	}
}
