package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gift-notify/internal/domain/entity"
	"gift-notify/internal/domain/phone"
	"gift-notify/internal/handler/http/requestid"
	"gift-notify/internal/infra/notifier"
	"gift-notify/internal/infra/webpush"
	"gift-notify/internal/observability/logging"
	"gift-notify/internal/repository"
	"gift-notify/internal/resilience/circuitbreaker"
)

const (
	defaultPushConcurrency = 4
	releaseTimeout         = 3 * time.Second
)

// Service is the entry point for producers of notification events.
type Service interface {
	// Notify delivers one request and blocks until a channel succeeds or the
	// plan is exhausted. Only invalid requests return an error; delivery
	// failures are reported in the Report.
	Notify(ctx context.Context, req *entity.NotificationRequest) (Report, error)

	// RegisterSubscription stores (or refreshes) a browser push subscription
	// for a user. Any of the accepted key layouts may be used.
	RegisterSubscription(ctx context.Context, userID string, sub webpush.Subscription) (*entity.PushSubscription, error)

	// Attempts returns the audit trail of one request.
	Attempts(ctx context.Context, requestID string) ([]*entity.DeliveryAttempt, error)

	// GetChannelHealth reports configuration and circuit breaker state per channel.
	GetChannelHealth() []ChannelHealthStatus
}

// PushSender delivers one payload to one browser subscription.
type PushSender interface {
	Send(ctx context.Context, sub webpush.Subscription, payload []byte) entity.DeliveryResult
	Enabled() bool
}

var _ PushSender = (*webpush.Client)(nil)

// ChannelHealthStatus represents the health status of a notification channel.
type ChannelHealthStatus struct {
	Name               string `json:"name"`
	Enabled            bool   `json:"enabled"`
	CircuitBreakerOpen bool   `json:"circuit_breaker_open"`
	State              string `json:"state"`
}

// Dependencies wires the service. Nil senders disable their channel; a nil
// Dedup disables duplicate suppression.
type Dependencies struct {
	SMS      notifier.SMSSender
	WhatsApp notifier.WhatsAppSender
	Push     PushSender

	Attempts      repository.DeliveryAttemptRepository
	Subscriptions repository.PushSubscriptionRepository
	Dedup         repository.DedupRepository

	Breakers *circuitbreaker.Registry
	Rules    *phone.Rules

	SMSOptions      notifier.SMSOptions
	PushConcurrency int
}

type service struct {
	sms      notifier.SMSSender
	whatsapp notifier.WhatsAppSender
	push     PushSender

	attempts repository.DeliveryAttemptRepository
	subs     repository.PushSubscriptionRepository
	dedup    repository.DedupRepository

	breakers   *circuitbreaker.Registry
	rules      *phone.Rules
	dispatcher *Dispatcher

	smsOptions      notifier.SMSOptions
	pushConcurrency int
	now             func() time.Time
}

// NewService creates the notification service.
func NewService(deps Dependencies) Service {
	rules := deps.Rules
	if rules == nil {
		rules = phone.Default()
	}
	if deps.PushConcurrency <= 0 {
		deps.PushConcurrency = defaultPushConcurrency
	}

	var recorder AttemptRecorder
	if deps.Attempts != nil {
		recorder = deps.Attempts
	}

	s := &service{
		sms:             deps.SMS,
		whatsapp:        deps.WhatsApp,
		push:            deps.Push,
		attempts:        deps.Attempts,
		subs:            deps.Subscriptions,
		dedup:           deps.Dedup,
		breakers:        deps.Breakers,
		rules:           rules,
		dispatcher:      NewDispatcher(recorder, rules, deps.Breakers),
		smsOptions:      deps.SMSOptions,
		pushConcurrency: deps.PushConcurrency,
		now:             time.Now,
	}

	enabled := 0
	for _, h := range s.GetChannelHealth() {
		if h.Enabled {
			enabled++
		}
	}
	SetChannelsEnabled(float64(enabled))

	return s
}

// Notify implements Service.Notify.
func (s *service) Notify(ctx context.Context, req *entity.NotificationRequest) (Report, error) {
	if req == nil {
		return Report{}, ErrInvalidRequest
	}
	if err := req.Validate(); err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	r := *req
	if r.Phone != "" {
		r.Phone = phone.Normalize(r.Phone)
	}

	requestID := requestid.FromContext(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
		ctx = requestid.WithRequestID(ctx, requestID)
	}
	logger := logging.FromContext(ctx)

	key := entity.DedupKey{EventType: r.EventType, Recipient: r.Recipient(), EventKey: r.EventKey}
	window, dedupable := entity.DedupWindow(r.EventType)
	claimed := false
	if dedupable && s.dedup != nil {
		ok, err := s.dedup.Claim(ctx, key, window)
		switch {
		case err != nil:
			logger.Warn("dedup claim failed, delivering without suppression",
				slog.String("event_type", r.EventType),
				slog.Any("error", err))
		case !ok:
			RecordDropped("all", "duplicate")
			RecordOutcome(string(entity.OutcomeSkipped))
			logger.Info("duplicate notification suppressed",
				slog.String("event_type", r.EventType),
				slog.String("recipient", logging.MaskPhone(r.Recipient())),
				slog.Duration("window", window))
			return Report{RequestID: requestID, Outcome: entity.OutcomeSkipped}, nil
		default:
			claimed = true
		}
	}

	report := s.dispatcher.Dispatch(ctx, &r, s.plan(&r))
	RecordOutcome(string(report.Outcome))

	if claimed && report.Outcome != entity.OutcomeSent {
		// nothing reached the user; let the producer's retry through
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := s.dedup.Release(rctx, key, window); err != nil {
			logger.Warn("failed to release dedup claim", slog.Any("error", err))
		}
	}

	return report, nil
}

// plan builds the ordered attempts for r.
//
// The default order is WhatsApp template, WhatsApp free-form, SMS, with SMS
// moved first for countries where it is the preferred channel. Push comes
// last when the request names a user. A forced channel keeps only its own
// steps and is attempted even when its gateway is unconfigured, so the
// caller sees CREDENTIALS_MISSING instead of NO_CHANNELS.
func (s *service) plan(r *entity.NotificationRequest) []ChannelAttempt {
	forced := r.ForcedChannel
	use := func(ch entity.Channel, configured bool) bool {
		if forced != "" {
			return forced == ch
		}
		return configured
	}

	var whatsapp, sms, push []ChannelAttempt
	if r.Phone != "" {
		if s.whatsapp != nil && use(entity.ChannelWhatsApp, s.whatsapp.Enabled()) {
			if r.HasTemplate() {
				tmpl := *r.Template
				whatsapp = append(whatsapp, ChannelAttempt{
					Channel: entity.ChannelWhatsApp,
					Step:    StepWhatsAppTemplate,
					Send: func(ctx context.Context) entity.DeliveryResult {
						return s.whatsapp.SendTemplate(ctx, r.Phone, tmpl)
					},
				})
			}
			if r.Body != "" {
				whatsapp = append(whatsapp, ChannelAttempt{
					Channel: entity.ChannelWhatsApp,
					Step:    StepWhatsAppFreeform,
					Send: func(ctx context.Context) entity.DeliveryResult {
						return s.whatsapp.SendFreeform(ctx, r.Phone, r.Body)
					},
				})
			}
		}
		if s.sms != nil && r.Body != "" && use(entity.ChannelSMS, s.sms.Enabled()) {
			sms = append(sms, ChannelAttempt{
				Channel: entity.ChannelSMS,
				Step:    StepSMS,
				Send: func(ctx context.Context) entity.DeliveryResult {
					return s.sms.SendSMS(ctx, r.Phone, r.Body, s.smsOptions)
				},
			})
		}
	}
	if r.UserID != "" && s.push != nil && s.subs != nil && use(entity.ChannelPush, s.push.Enabled()) {
		push = append(push, ChannelAttempt{
			Channel: entity.ChannelPush,
			Step:    StepPush,
			Send: func(ctx context.Context) entity.DeliveryResult {
				return s.pushAll(ctx, r)
			},
		})
	}

	switch forced {
	case entity.ChannelWhatsApp:
		return whatsapp
	case entity.ChannelSMS:
		return sms
	case entity.ChannelPush:
		return push
	}

	plan := make([]ChannelAttempt, 0, len(whatsapp)+len(sms)+len(push))
	if r.Phone != "" && s.rules.PreferredChannel(r.Phone) == entity.ChannelSMS {
		plan = append(append(plan, sms...), whatsapp...)
	} else {
		plan = append(append(plan, whatsapp...), sms...)
	}
	return append(plan, push...)
}

// Attempts implements Service.Attempts.
func (s *service) Attempts(ctx context.Context, requestID string) ([]*entity.DeliveryAttempt, error) {
	if s.attempts == nil {
		return []*entity.DeliveryAttempt{}, nil
	}
	attempts, err := s.attempts.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}

// RegisterSubscription implements Service.RegisterSubscription.
func (s *service) RegisterSubscription(ctx context.Context, userID string, sub webpush.Subscription) (*entity.PushSubscription, error) {
	if s.subs == nil {
		return nil, ErrPushUnavailable
	}

	p256dh, auth, ok := sub.ResolveKeys()
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSubscription,
			&entity.ValidationError{Field: "keys", Message: "p256dh and auth keys are required"})
	}

	e := &entity.PushSubscription{
		UserID:   userID,
		Endpoint: sub.Endpoint,
		P256dh:   p256dh,
		Auth:     auth,
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSubscription, err)
	}

	if err := s.subs.Upsert(ctx, e); err != nil {
		return nil, fmt.Errorf("register subscription: %w", err)
	}

	logging.FromContext(ctx).Info("push subscription registered",
		slog.String("user_id", userID),
		slog.Int64("subscription_id", e.ID))
	return e, nil
}

// GetChannelHealth implements Service.GetChannelHealth.
func (s *service) GetChannelHealth() []ChannelHealthStatus {
	channels := []struct {
		ch      entity.Channel
		enabled bool
	}{
		{entity.ChannelWhatsApp, s.whatsapp != nil && s.whatsapp.Enabled()},
		{entity.ChannelSMS, s.sms != nil && s.sms.Enabled()},
		{entity.ChannelPush, s.push != nil && s.push.Enabled() && s.subs != nil},
	}

	statuses := make([]ChannelHealthStatus, 0, len(channels))
	for _, c := range channels {
		status := ChannelHealthStatus{Name: string(c.ch), Enabled: c.enabled, State: "closed"}
		if s.breakers != nil {
			cb := s.breakers.Get(string(c.ch))
			status.State = cb.State().String()
			status.CircuitBreakerOpen = cb.IsOpen()
		}
		statuses = append(statuses, status)
	}
	return statuses
}

type pushMessage struct {
	Body      string `json:"body"`
	EventType string `json:"event_type,omitempty"`
	Urgent    bool   `json:"urgent,omitempty"`
}

func pushPayload(r *entity.NotificationRequest) ([]byte, error) {
	if len(r.PushPayload) > 0 {
		return r.PushPayload, nil
	}
	return json.Marshal(pushMessage{Body: r.Body, EventType: r.EventType, Urgent: r.Urgent})
}
