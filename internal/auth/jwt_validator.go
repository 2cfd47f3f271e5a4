package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenValidator checks the registered claims of an actor token and that it
// was signed with the expected algorithm.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
	// Required lists private claims every token must carry.
	Required []string
}

func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	switch {
	case tok == nil:
		return errors.New("auth: token is nil")
	case algorithm == "":
		return errors.New("auth: token missing algorithm")
	case v.Algorithm != "" && algorithm != v.Algorithm:
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}

	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithAcceptableSkew(v.ClockSkew),
		jwt.WithRequiredClaim(jwt.SubjectKey),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	for _, claim := range v.Required {
		opts = append(opts, jwt.WithRequiredClaim(claim))
	}
	return jwt.Validate(tok, opts...)
}
