// Package logging configures log/slog for the notification service and
// carries the request logger through context.
//
// Gateway clients and the orchestrator fetch their logger with FromContext,
// which adds the request id when one is set. Recipients are logged through
// MaskPhone; message bodies and credentials are never logged.
//
//	logger := logging.NewLogger()
//	ctx = logging.WithLogger(ctx, logger)
//	logging.FromContext(ctx).Info("sms sent", slog.String("to", logging.MaskPhone(to)))
package logging
