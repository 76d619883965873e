package api

import (
	"errors"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// IssueToken signs an HS256 token whose subject is userID, as accepted by a
// router configured with the same secret.
func IssueToken(secret, userID string, now time.Time, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("no jwt secret configured")
	}
	if userID == "" {
		return "", errors.New("user id is required")
	}
	tok, err := jwt.NewBuilder().
		Subject(userID).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(secret)))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}
