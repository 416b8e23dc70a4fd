package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for notification delivery
var (
	// notificationDispatchedTotal counts channel attempts actually executed
	notificationDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatched_total",
			Help: "Total number of channel attempts dispatched",
		},
		[]string{"channel"},
	)

	notificationSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_sent_total",
			Help: "Total number of channel attempts by result",
		},
		[]string{"channel", "status"}, // status: success|failure
	)

	notificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_duration_seconds",
			Help:    "Channel attempt duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"channel"},
	)

	notificationOutcomeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_outcome_total",
			Help: "Total number of notification requests by outcome",
		},
		[]string{"outcome"}, // sent|skipped|failed
	)

	notificationFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_fallback_total",
			Help: "Total number of fallbacks from one delivery step to the next",
		},
		[]string{"from", "to"},
	)

	// notificationDroppedTotal counts attempts that were planned but never sent
	notificationDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dropped_total",
			Help: "Total number of dropped channel attempts",
		},
		[]string{"channel", "reason"}, // reason: sms_unavailable|circuit_open|duplicate
	)

	pushSubscriptionsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_push_subscriptions_expired_total",
			Help: "Total number of push subscriptions deactivated after a 404/410",
		},
	)

	channelsEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_channels_enabled",
			Help: "Number of enabled notification channels",
		},
	)
)

// RecordDispatch records that an attempt is about to be sent to a channel.
func RecordDispatch(channel string) {
	notificationDispatchedTotal.WithLabelValues(channel).Inc()
}

// RecordSuccess records a successful channel attempt and its duration.
func RecordSuccess(channel string, duration time.Duration) {
	notificationSentTotal.WithLabelValues(channel, "success").Inc()
	notificationDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordFailure records a failed channel attempt and its duration.
func RecordFailure(channel string, duration time.Duration) {
	notificationSentTotal.WithLabelValues(channel, "failure").Inc()
	notificationDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordOutcome records the aggregate outcome of one request.
func RecordOutcome(outcome string) {
	notificationOutcomeTotal.WithLabelValues(outcome).Inc()
}

// RecordFallback records moving from one delivery step to the next.
func RecordFallback(from, to string) {
	notificationFallbackTotal.WithLabelValues(from, to).Inc()
}

// RecordDropped records an attempt that was skipped without calling the gateway.
//
// Reasons: sms_unavailable, circuit_open, duplicate.
func RecordDropped(channel string, reason string) {
	notificationDroppedTotal.WithLabelValues(channel, reason).Inc()
}

// RecordPushExpired records a push subscription deactivation.
func RecordPushExpired() {
	pushSubscriptionsExpiredTotal.Inc()
}

// SetChannelsEnabled sets the number of enabled notification channels.
func SetChannelsEnabled(count float64) {
	channelsEnabled.Set(count)
}
