package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformedToken   = errors.New("token: malformed")
	ErrInvalidSignature = errors.New("token: invalid signature")
	ErrTokenExpired     = errors.New("token: expired")
)

// Identity is what a verified token proves.
type Identity struct {
	Subject   string
	ExpiresAt time.Time
}

// claims is the wire payload: {"sub": accountID, "exp": epoch millis}.
// exp is milliseconds, not the registered seconds claim, so expiry is
// checked here instead of by the jwt validator.
type claims struct {
	Subject   string `json:"sub"`
	ExpiresAt int64  `json:"exp"`
}

func (c claims) GetExpirationTime() (*jwt.NumericDate, error) { return nil, nil }
func (c claims) GetIssuedAt() (*jwt.NumericDate, error) { return nil, nil }
func (c claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c claims) GetIssuer() (string, error) { return "", nil }
func (c claims) GetSubject() (string, error) { return c.Subject, nil }
func (c claims) GetAudience() (jwt.ClaimStrings, error) { return nil, nil }

// Codec issues and verifies HS256 identity tokens.
type Codec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token: empty signing secret")
	}
	return &Codec{
		secret: []byte(secret),
		now:    time.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// WithClock returns a copy of the codec reading time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

func (c *Codec) Issue(accountID string, ttl time.Duration) (string, time.Time, error) {
	if accountID == "" {
		return "", time.Time{}, errors.New("token: empty subject")
	}
	exp := c.now().Add(ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Subject:   accountID,
		ExpiresAt: exp.UnixMilli(),
	})
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (c *Codec) Verify(raw string) (Identity, error) {
	if strings.Count(raw, ".") != 2 {
		return Identity{}, ErrMalformedToken
	}

	var cl claims
	_, err := c.parser.ParseWithClaims(raw, &cl, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return Identity{}, ErrInvalidSignature
	default:
		return Identity{}, ErrMalformedToken
	}

	if cl.Subject == "" || cl.ExpiresAt == 0 {
		return Identity{}, ErrMalformedToken
	}
	exp := time.UnixMilli(cl.ExpiresAt)
	if !c.now().Before(exp) {
		return Identity{}, ErrTokenExpired
	}
	return Identity{Subject: cl.Subject, ExpiresAt: exp}, nil
}
