package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService issues and validates the stateless bearer tokens used by
// the API. Tokens are compact HS256 JWTs carrying sub/iat/exp; there is no
// server-side token record and no early revocation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the time source, used by expiry tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue creates a signed token for the given subject, expiring after the
// configured TTL.
func (s *TokenService) Issue(subject string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate reports whether the token has a valid signature and has not
// expired. Malformed input, a wrong signing method, a bad signature, and an
// expired token all yield false; Validate never returns an error.
func (s *TokenService) Validate(tokenStr string) bool {
	token, err := s.parse(tokenStr)
	return err == nil && token.Valid
}

// Subject extracts the subject claim. Callers must Validate first; the
// subject of an invalid token is meaningless.
func (s *TokenService) Subject(tokenStr string) (string, error) {
	token, err := s.parse(tokenStr)
	if err != nil {
		return "", err
	}
	return token.Claims.GetSubject()
}

func (s *TokenService) parse(tokenStr string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
}
