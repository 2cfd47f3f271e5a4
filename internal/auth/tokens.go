package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/grocery-pos/internal/common"
)

const (
	claimRole        = "role"
	claimPermissions = "perms"
)

// Tokens signs and verifies the HS256 actor tokens issued to registers and
// back-office users. Role and permissions travel as private claims.
type Tokens struct {
	secret    []byte
	validator TokenValidator
	ttl       time.Duration
	now       func() time.Time
}

// TokensConfig configures Tokens.
type TokensConfig struct {
	Secret    string
	Issuer    string
	Audience  string
	TTL       time.Duration
	ClockSkew time.Duration
	Now       func() time.Time
}

// NewTokens validates cfg and builds a Tokens.
func NewTokens(cfg TokensConfig) (*Tokens, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth: secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Tokens{
		secret: []byte(cfg.Secret),
		validator: TokenValidator{
			Issuer:    cfg.Issuer,
			Audience:  cfg.Audience,
			ClockSkew: cfg.ClockSkew,
			Algorithm: jwa.HS256,
			Required:  []string{claimRole},
		},
		ttl: cfg.TTL,
		now: cfg.Now,
	}, nil
}

// Sign issues a token for the actor.
func (t *Tokens) Sign(actor common.Actor) (string, time.Time, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return "", time.Time{}, errors.New("auth: actor id is required")
	}
	now := t.now()
	expiresAt := now.Add(t.ttl)
	builder := jwt.NewBuilder().
		Subject(actor.ID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(expiresAt).
		Claim(claimRole, actor.Role).
		Claim(claimPermissions, actor.Permissions)
	if t.validator.Issuer != "" {
		builder = builder.Issuer(t.validator.Issuer)
	}
	if t.validator.Audience != "" {
		builder = builder.Audience([]string{t.validator.Audience})
	}
	tok, err := builder.Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, t.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

// Parse verifies a token and returns the actor it names.
func (t *Tokens) Parse(token string) (common.Actor, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.Actor{}, unauthorized("missing token", nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return common.Actor{}, unauthorized("invalid token", err)
	}
	if algorithm != t.validator.Algorithm {
		return common.Actor{}, unauthorized("invalid token", fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, t.secret), jwt.WithValidate(false))
	if err != nil {
		return common.Actor{}, unauthorized("invalid token", err)
	}
	if err := t.validator.Validate(parsed, algorithm, t.now()); err != nil {
		return common.Actor{}, unauthorized("invalid token", err)
	}
	actor := common.Actor{ID: parsed.Subject()}
	if v, ok := parsed.Get(claimRole); ok {
		actor.Role, _ = v.(string)
	}
	if v, ok := parsed.Get(claimPermissions); ok {
		actor.Permissions = stringList(v)
	}
	return actor, nil
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Fields(list)
	}
	return nil
}

func unauthorized(message string, err error) error {
	return common.NewAppError("UNAUTHORIZED", message, http.StatusUnauthorized, err)
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("auth: token must carry exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	switch alg {
	case "":
		return "", errors.New("auth: token missing algorithm")
	case jwa.NoSignature:
		return "", errors.New("auth: token uses none algorithm")
	}
	return alg, nil
}
