// Package resilience provides reliability and fault tolerance patterns for the
// delivery engine's outbound calls.
//
// The package supports:
//   - Circuit breakers around each gateway (SMS, WhatsApp, Web Push) and the audit database
//   - Bounded retry with a fixed or exponential delay
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.GatewayConfig("sms"))
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return callProvider()
//	})
//
//	err := retry.WithBackoff(ctx, retry.SMSConfig(time.Second), func() error {
//	    return performOperation()
//	})
package resilience
