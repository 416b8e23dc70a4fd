package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"gift-notify/internal/domain/entity"
	"gift-notify/internal/infra/webpush"
	"gift-notify/internal/observability/logging"
)

// pushAll sends the request to every active subscription of the user.
//
// Subscriptions are one channel, so they are fanned out concurrently; the
// step succeeds when at least one browser accepted the message. Subscriptions
// reported expired are deactivated, never deleted.
func (s *service) pushAll(ctx context.Context, r *entity.NotificationRequest) entity.DeliveryResult {
	logger := logging.FromContext(ctx)

	payload, err := pushPayload(r)
	if err != nil {
		return entity.Failed(entity.ChannelPush, entity.ErrCodeInternal, "encode push payload: "+err.Error())
	}
	if len(payload) > webpush.MaxPlaintextLen {
		return entity.Failed(entity.ChannelPush, entity.ErrCodePayloadTooLarge,
			fmt.Sprintf("push payload is %d bytes, limit is %d", len(payload), webpush.MaxPlaintextLen))
	}

	subs, err := s.subs.ListActiveByUser(ctx, r.UserID)
	if err != nil {
		logger.Error("failed to load push subscriptions",
			slog.String("user_id", r.UserID),
			slog.Any("error", err))
		return entity.Failed(entity.ChannelPush, entity.ErrCodeInternal, "load push subscriptions failed")
	}
	if len(subs) == 0 {
		return entity.Failed(entity.ChannelPush, entity.ErrCodeNoSubscriptions,
			"user has no active push subscriptions")
	}

	results := make([]entity.DeliveryResult, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.pushConcurrency)
	for i, sub := range subs {
		g.Go(func() error {
			results[i] = s.push.Send(gctx, webpush.FromEntity(sub), payload)
			return nil
		})
	}
	_ = g.Wait()

	var (
		delivered int
		first     *entity.DeliveryResult
		failure   *entity.DeliveryResult
	)
	for i, res := range results {
		sub := subs[i]
		switch {
		case res.Success:
			delivered++
			if first == nil {
				first = &results[i]
			}
			if err := s.subs.TouchLastUsed(ctx, sub.ID, s.now().UTC()); err != nil {
				logger.Warn("failed to touch push subscription",
					slog.Int64("subscription_id", sub.ID),
					slog.Any("error", err))
			}
		case res.ErrorCode == entity.ErrCodeSubscriptionExpired:
			s.deactivate(ctx, logger, sub.ID)
		default:
			if failure == nil {
				failure = &results[i]
			}
		}
	}

	if delivered > 0 {
		return entity.DeliveryResult{
			Success:    true,
			Channel:    entity.ChannelPush,
			SID:        first.SID,
			Status:     fmt.Sprintf("delivered %d/%d", delivered, len(subs)),
			StatusCode: first.StatusCode,
		}
	}
	if failure != nil {
		return *failure
	}
	return entity.DeliveryResult{
		Channel:    entity.ChannelPush,
		ErrorCode:  entity.ErrCodeSubscriptionExpired,
		Error:      string(entity.ErrCodeSubscriptionExpired),
		StatusCode: results[0].StatusCode,
	}
}

func (s *service) deactivate(ctx context.Context, logger *slog.Logger, id int64) {
	RecordPushExpired()
	err := s.subs.Deactivate(ctx, id)
	if err != nil && !errors.Is(err, entity.ErrNotFound) {
		logger.Error("failed to deactivate expired push subscription",
			slog.Int64("subscription_id", id),
			slog.Any("error", err))
		return
	}
	logger.Info("push subscription expired and deactivated", slog.Int64("subscription_id", id))
}
