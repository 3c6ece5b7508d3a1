// Package token issues and verifies the signed identity tokens shared between
// the authentication service and the services that trust it.
//
// Tokens are HS256 JWTs carrying sub, email, role, iat and exp. The signing
// secret is passed in at construction so that codecs with different secrets
// can coexist in one process.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/qbridge/chat-service/internal/core/domain"
)

// DefaultTTL matches the lifetime of the auth cookie set at login.
const DefaultTTL = 7 * 24 * time.Hour

// ErrEmptySecret is returned by NewCodec when no secret is supplied.
var ErrEmptySecret = errors.New("token: signing secret must not be empty")

type claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Codec signs and verifies identity tokens with one shared secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option customises a Codec.
type Option func(*Codec)

// WithTTL sets the lifetime applied by Issue when the identity has no expiry.
func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec returns a Codec bound to secret.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue signs identity. A zero ExpiresAt is replaced by now plus the codec TTL.
// Expiry is kept at second precision.
func (c *Codec) Issue(identity domain.Identity) (string, error) {
	if identity.SubjectID == "" {
		return "", fmt.Errorf("issue token: %w: missing subject", domain.ErrTokenInvalid)
	}

	now := c.now()
	exp := identity.ExpiresAt
	if exp.IsZero() {
		exp = now.Add(c.ttl)
	}

	cl := claims{
		Email: identity.Email,
		Role:  identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return signed, nil
}

// Verify recomputes the signature of raw and decodes its identity.
// It returns domain.ErrTokenExpired once exp has passed and
// domain.ErrTokenInvalid for anything else that does not check out.
func (c *Codec) Verify(raw string) (domain.Identity, error) {
	var cl claims
	_, err := jwt.ParseWithClaims(raw, &cl, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, domain.ErrTokenExpired
		}
		return domain.Identity{}, domain.ErrTokenInvalid
	}
	if cl.Subject == "" {
		return domain.Identity{}, domain.ErrTokenInvalid
	}

	return domain.Identity{
		SubjectID: cl.Subject,
		Email:     cl.Email,
		Role:      cl.Role,
		ExpiresAt: cl.ExpiresAt.Time.UTC(),
	}, nil
}
