package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"gift-notify/internal/domain/entity"
	"gift-notify/internal/domain/phone"
	"gift-notify/internal/handler/http/requestid"
	"gift-notify/internal/observability/logging"
	"gift-notify/internal/observability/tracing"
	"gift-notify/internal/resilience/circuitbreaker"
)

// recordTimeout bounds the audit write so a slow database cannot hold up the
// next fallback step.
const recordTimeout = 3 * time.Second

// Report is the aggregate result of dispatching one request.
type Report struct {
	RequestID string
	Outcome   entity.Outcome
	// Result is the last executed attempt's result: the success when
	// Outcome is sent, otherwise the final failure.
	Result   entity.DeliveryResult
	Attempts []entity.DeliveryAttempt
}

// Dispatcher runs a delivery plan strictly in order and stops at the first
// success. It never runs two attempts of the same request concurrently.
type Dispatcher struct {
	recorder AttemptRecorder
	rules    *phone.Rules
	breakers *circuitbreaker.Registry
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. recorder and breakers may be nil; a
// nil rules table falls back to the embedded country rules.
func NewDispatcher(recorder AttemptRecorder, rules *phone.Rules, breakers *circuitbreaker.Registry) *Dispatcher {
	if rules == nil {
		rules = phone.Default()
	}
	return &Dispatcher{
		recorder: recorder,
		rules:    rules,
		breakers: breakers,
		now:      time.Now,
	}
}

// Dispatch executes attempts in order.
//
// SMS attempts are skipped without calling the gateway when SMS to the
// recipient's country is unavailable. Every executed attempt is recorded;
// a recorder failure is logged and never changes the outcome. With nothing
// executed the report fails with NO_CHANNELS.
func (d *Dispatcher) Dispatch(ctx context.Context, req *entity.NotificationRequest, attempts []ChannelAttempt) Report {
	requestID := requestid.FromContext(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
		ctx = requestid.WithRequestID(ctx, requestID)
	}

	ctx, span := tracing.GetTracer().Start(ctx, "notify.Dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("notify.request_id", requestID),
		attribute.String("notify.event_type", req.EventType),
		attribute.Int("notify.planned_attempts", len(attempts)),
	)

	logger := logging.FromContext(ctx).With(
		slog.String("event_type", req.EventType),
		slog.String("recipient", logging.MaskPhone(req.Recipient())))

	report := Report{
		RequestID: requestID,
		Outcome:   entity.OutcomeFailed,
		Attempts:  make([]entity.DeliveryAttempt, 0, len(attempts)),
	}

	var lastStep string
	for _, a := range attempts {
		if a.Channel == entity.ChannelSMS && d.rules.SmsReliability(req.Phone) == phone.Unavailable {
			RecordDropped(string(a.Channel), "sms_unavailable")
			logger.Info("sms skipped: unavailable for destination", slog.String("step", a.Step))
			continue
		}

		if lastStep != "" {
			RecordFallback(lastStep, a.Step)
			logger.Info("falling back to next step",
				slog.String("from", lastStep),
				slog.String("to", a.Step))
		}
		lastStep = a.Step

		start := time.Now()
		RecordDispatch(string(a.Channel))
		res := d.execute(ctx, a)
		res.Channel = a.Channel
		if res.Success {
			RecordSuccess(string(a.Channel), time.Since(start))
		} else {
			RecordFailure(string(a.Channel), time.Since(start))
		}

		attempt := entity.DeliveryAttempt{
			ID:             uuid.New().String(),
			RequestID:      requestID,
			EventType:      req.EventType,
			Recipient:      req.Recipient(),
			Channel:        a.Channel,
			Step:           a.Step,
			ExternalID:     res.SID,
			ProviderStatus: res.Status,
			ErrorCode:      res.ErrorCode,
			ErrorMessage:   res.Error,
			Success:        res.Success,
			CreatedAt:      d.now().UTC(),
		}
		d.record(ctx, logger, &attempt)
		report.Attempts = append(report.Attempts, attempt)
		report.Result = res

		if res.Success {
			report.Outcome = entity.OutcomeSent
			span.SetAttributes(attribute.String("notify.delivered_by", a.Step))
			return report
		}
		logger.Warn("delivery step failed",
			slog.String("step", a.Step),
			slog.String("error_code", string(res.ErrorCode)),
			slog.Int("status_code", res.StatusCode))
	}

	if len(report.Attempts) == 0 {
		report.Result = entity.Failed("", entity.ErrCodeNoChannels, "no channel could be attempted")
	}
	span.SetStatus(codes.Error, string(report.Result.ErrorCode))
	return report
}

// execute runs one attempt behind its channel's circuit breaker. Network
// failures and 5xx answers count against the breaker; a 4xx or an invalid
// recipient says nothing about the gateway's health.
func (d *Dispatcher) execute(ctx context.Context, a ChannelAttempt) entity.DeliveryResult {
	if d.breakers == nil {
		return a.Send(ctx)
	}

	var res entity.DeliveryResult
	_, err := d.breakers.Get(string(a.Channel)).Execute(func() (interface{}, error) {
		res = a.Send(ctx)
		if isOutage(res) {
			return nil, errGatewayUnhealthy
		}
		return nil, nil
	})
	if circuitbreaker.IsRejected(err) {
		RecordDropped(string(a.Channel), "circuit_open")
		return entity.Failed(a.Channel, entity.ErrCodeCircuitOpen, "circuit breaker open for "+string(a.Channel))
	}
	return res
}

func isOutage(res entity.DeliveryResult) bool {
	if res.Success {
		return false
	}
	return res.ErrorCode == entity.ErrCodeNetwork || res.StatusCode >= 500
}

func (d *Dispatcher) record(ctx context.Context, logger *slog.Logger, attempt *entity.DeliveryAttempt) {
	if d.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := d.recorder.Create(ctx, attempt); err != nil {
		logger.Error("failed to record delivery attempt",
			slog.String("attempt_id", attempt.ID),
			slog.String("step", attempt.Step),
			slog.Any("error", err))
	}
}
