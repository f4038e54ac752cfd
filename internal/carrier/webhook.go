package carrier

import (
	"crypto/subtle"
	"strings"
)

// Update is a normalized status notification.
type Update struct {
	TrackingCode string
	Status       string
}

// ParseWebhook extracts the tracking code and raw status from a webhook
// body.
func ParseWebhook(body []byte) (Update, error) {
	s, err := parseShape(body)
	if err != nil {
		return Update{}, ErrMalformedWebhook
	}
	u := Update{
		TrackingCode: strings.TrimSpace(s.tracking()),
		Status:       strings.TrimSpace(s.status()),
	}
	if u.TrackingCode == "" || u.Status == "" {
		return Update{}, ErrMalformedWebhook
	}
	return u, nil
}

// VerifyToken reports whether got matches the configured shared secret.
// An empty expected token disables the check.
func VerifyToken(expected, got string) bool {
	if expected == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
