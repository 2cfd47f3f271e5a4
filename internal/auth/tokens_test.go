package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grocery-pos/internal/common"
)

func newTestTokens(t *testing.T, now time.Time) *Tokens {
	t.Helper()
	tokens, err := NewTokens(TokensConfig{
		Secret:    "test-secret",
		Issuer:    "grocery-pos",
		Audience:  "registers",
		TTL:       time.Hour,
		ClockSkew: time.Second,
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)
	return tokens
}

func TestTokensRoundTripActor(t *testing.T) {
	tokens := newTestTokens(t, time.Now())
	actor := common.Actor{ID: "cashier-7", Role: "cashier", Permissions: []string{common.PermTransactionsCreate}}

	signed, expiresAt, err := tokens.Sign(actor)
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	parsed, err := tokens.Parse(signed)
	require.NoError(t, err)
	require.Equal(t, actor, parsed)
}

func TestTokensRejectExpired(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	signed, _, err := newTestTokens(t, issued).Sign(common.Actor{ID: "cashier-7", Role: "cashier"})
	require.NoError(t, err)

	_, err = newTestTokens(t, time.Now()).Parse(signed)
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "UNAUTHORIZED", appErr.Code)
}

func TestTokensRejectWrongSecret(t *testing.T) {
	other, err := NewTokens(TokensConfig{Secret: "another", Issuer: "grocery-pos", Audience: "registers"})
	require.NoError(t, err)
	signed, _, err := other.Sign(common.Actor{ID: "x"})
	require.NoError(t, err)

	_, err = newTestTokens(t, time.Now()).Parse(signed)
	require.Error(t, err)
}

func TestTokensRejectForeignAudience(t *testing.T) {
	other, err := NewTokens(TokensConfig{Secret: "test-secret", Issuer: "grocery-pos", Audience: "kiosk"})
	require.NoError(t, err)
	signed, _, err := other.Sign(common.Actor{ID: "x"})
	require.NoError(t, err)

	_, err = newTestTokens(t, time.Now()).Parse(signed)
	require.Error(t, err)
}

func TestTokensRejectUnexpectedAlgorithm(t *testing.T) {
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Subject("x").
		Issuer("grocery-pos").
		Audience([]string{"registers"}).
		IssuedAt(now).
		Expiration(now.Add(time.Minute)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS512, []byte("test-secret")))
	require.NoError(t, err)

	_, err = newTestTokens(t, now).Parse(string(signed))
	require.Error(t, err)
}

func TestTokensRejectGarbage(t *testing.T) {
	tokens := newTestTokens(t, time.Now())
	for _, raw := range []string{"", "   ", "not-a-token", "a.b.c"} {
		_, err := tokens.Parse(raw)
		require.Error(t, err, raw)
	}
}

func TestNewTokensRequiresSecret(t *testing.T) {
	_, err := NewTokens(TokensConfig{})
	require.Error(t, err)
}

func TestStringListAcceptsClaimShapes(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, stringList([]any{"a", "", "b", 3}))
	require.Equal(t, []string{"a", "b"}, stringList("a b"))
	require.Nil(t, stringList(12))
}
