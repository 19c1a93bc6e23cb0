// Package token mints and verifies HS512 session tokens.
package token

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
)

const (
	DefaultIssuer = "dpc-auth"

	// UsernameClaim carries the login name next to the user id in "sub"
	UsernameClaim = "username"
)

type Issuer struct {
	key      []byte
	issuer   string
	audience []string
	now      func() time.Time
}

var _ interfaces.TokenIssuer = &Issuer{}

type Option func(*Issuer)

func WithIssuer(iss string) Option {
	return func(x *Issuer) {
		x.issuer = iss
	}
}

func WithAudience(aud ...string) Option {
	return func(x *Issuer) {
		x.audience = aud
	}
}

func WithClock(now func() time.Time) Option {
	return func(x *Issuer) {
		x.now = now
	}
}

// New creates an Issuer signing with secret
func New(secret []byte, opts ...Option) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, goerr.New("token signing secret is required")
	}
	x := &Issuer{
		key:    secret,
		issuer: DefaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

func (x *Issuer) Issue(ctx context.Context, user *model.User, ttl time.Duration) (string, error) {
	if user == nil || user.ID == "" {
		return "", goerr.New("user id is required to issue a token")
	}
	if ttl <= 0 {
		return "", goerr.New("token lifetime must be positive", goerr.V("ttl", ttl))
	}

	now := x.now()
	builder := jwt.NewBuilder().
		Subject(user.ID).
		Issuer(x.issuer).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(ttl)).
		JwtID(uuid.NewString()).
		Claim(UsernameClaim, user.Username)
	if len(x.audience) > 0 {
		builder = builder.Audience(x.audience)
	}

	tok, err := builder.Build()
	if err != nil {
		return "", goerr.Wrap(err, "failed to build token")
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS512, x.key))
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign token")
	}
	return string(signed), nil
}

// Verify checks signature, issuer, audience and validity period. It is the
// counterpart of Issue for services and tests that consume these tokens.
func (x *Issuer) Verify(raw string) (jwt.Token, error) {
	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS512, x.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(x.issuer),
		jwt.WithClock(jwt.ClockFunc(x.now)),
	}
	if len(x.audience) > 0 {
		opts = append(opts, jwt.WithAudience(x.audience[0]))
	}

	tok, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid token")
	}
	return tok, nil
}
