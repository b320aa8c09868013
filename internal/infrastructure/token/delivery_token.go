package token

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"sociomart/pkg/errors"
)

// DeliveryTokenService issues and verifies the short-lived credential the
// websocket channel authenticates with. It is distinct from the session
// credential: the channel can verify it without cookie access and a leaked
// token has a tight blast radius.
type DeliveryTokenService struct {
	secret []byte
	ttl    time.Duration
}

type deliveryClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

const deliveryScope = "chat:deliver"

func NewDeliveryTokenService(secret string, ttl time.Duration) *DeliveryTokenService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &DeliveryTokenService{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue mints a delivery token for userID.
func (s *DeliveryTokenService) Issue(userID string) (string, error) {
	now := time.Now()
	claims := deliveryClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Scope: deliveryScope,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Internal("Failed to sign delivery token", err)
	}
	return signed, nil
}

// Verify checks the token signature, expiry and scope and returns the
// user id it was issued for.
func (s *DeliveryTokenService) Verify(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &deliveryClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return "", errors.Unauthorized("Invalid or expired delivery token", err)
	}

	claims, ok := parsed.Claims.(*deliveryClaims)
	if !ok || !parsed.Valid || claims.Scope != deliveryScope || claims.Subject == "" {
		return "", errors.Unauthorized("Invalid delivery token", nil)
	}
	return claims.Subject, nil
}
