// Package auth issues and verifies the session tokens that identify the
// signed-in profile.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for malformed, expired or wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid session token")

// Identity is the authenticated profile a session hydrates for.
type Identity struct {
	UserID  string
	IsAdmin bool
}

// IsZero reports whether no profile is signed in.
func (i Identity) IsZero() bool {
	return i.UserID == ""
}

type claims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// Authenticator signs and parses HS256 session tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Authenticator)

// WithTTL sets the lifetime of issued tokens.
func WithTTL(ttl time.Duration) Option {
	return func(a *Authenticator) { a.ttl = ttl }
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

func NewAuthenticator(secret string, opts ...Option) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("auth secret must not be empty")
	}
	a := &Authenticator{secret: []byte(secret), ttl: 24 * time.Hour, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Issue returns a signed token for the identity.
func (a *Authenticator) Issue(id Identity) (string, error) {
	if id.IsZero() {
		return "", errors.New("issuing token: user id is required")
	}
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Admin: id.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Parse verifies the token and returns the identity it carries.
func (a *Authenticator) Parse(tokenStr string) (Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Identity{UserID: c.Subject, IsAdmin: c.Admin}, nil
}
