package entity

import "time"

// PushSubscription is a browser push subscription owned by a user.
// The engine only flips Active to false when the push service reports the
// subscription as gone; rows are never deleted.
type PushSubscription struct {
	ID         int64
	UserID     string
	Endpoint   string
	P256dh     string // base64url client public key
	Auth       string // base64url auth secret
	Active     bool
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// Validate checks that the subscription can be used for delivery.
func (s *PushSubscription) Validate() error {
	if s.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "user_id is required"}
	}
	if err := ValidatePushEndpoint(s.Endpoint); err != nil {
		return err
	}
	if s.P256dh == "" || s.Auth == "" {
		return &ValidationError{Field: "keys", Message: "p256dh and auth keys are required"}
	}
	return nil
}
