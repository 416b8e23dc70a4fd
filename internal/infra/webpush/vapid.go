package webpush

import (
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// vapidTokenTTL is the exp offset. Push services reject tokens valid for more than 24h.
const vapidTokenTTL = 12 * time.Hour

// AuthorizationHeader returns "vapid t=<jwt>, k=<public key>" for a push to
// endpoint. The token audience is the endpoint origin (scheme://host).
func (k *KeyMaterial) AuthorizationHeader(endpoint string, now time.Time) (string, error) {
	token, err := k.signToken(endpoint, now)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("vapid t=%s, k=%s", token, k.PublicKey()), nil
}

func (k *KeyMaterial) signToken(endpoint string, now time.Time) (string, error) {
	aud, err := audience(endpoint)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"aud": aud,
		"exp": jwt.NewNumericDate(now.Add(vapidTokenTTL)),
		"sub": k.subject,
	})

	signed, err := token.SignedString(k.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign vapid token: %w", err)
	}
	return signed, nil
}

func audience(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse push endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("push endpoint %q has no origin", endpoint)
	}
	return u.Scheme + "://" + u.Host, nil
}
