package webpush

import (
	"gift-notify/internal/domain/entity"
)

// Subscription is a browser PushSubscription as received from clients.
// Upstream producers disagree on key field names, so three shapes are accepted:
//
//	{"endpoint": "...", "keys": {"p256dh": "...", "auth": "..."}}
//	{"endpoint": "...", "p256dh": "...", "auth": "..."}
//	{"endpoint": "...", "p256dh_key": "...", "auth_key": "..."}
type Subscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`

	P256dh string `json:"p256dh,omitempty"`
	Auth   string `json:"auth,omitempty"`

	P256dhKey string `json:"p256dh_key,omitempty"`
	AuthKey   string `json:"auth_key,omitempty"`
}

// SubscriptionKeys is the nested "keys" object of the standard shape.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// ResolveKeys returns the first variant carrying both keys.
func (s Subscription) ResolveKeys() (p256dh, auth string, ok bool) {
	switch {
	case s.Keys.P256dh != "" && s.Keys.Auth != "":
		return s.Keys.P256dh, s.Keys.Auth, true
	case s.P256dh != "" && s.Auth != "":
		return s.P256dh, s.Auth, true
	case s.P256dhKey != "" && s.AuthKey != "":
		return s.P256dhKey, s.AuthKey, true
	}
	return "", "", false
}

// FromEntity converts a stored subscription.
func FromEntity(sub *entity.PushSubscription) Subscription {
	return Subscription{
		Endpoint: sub.Endpoint,
		Keys:     SubscriptionKeys{P256dh: sub.P256dh, Auth: sub.Auth},
	}
}
