package jwtoken

import (
	"testing"
	"time"

	golangjwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterop_DecodeGolangJWT(t *testing.T) {
	now := time.Now()
	signed, err := golangjwt.NewWithClaims(golangjwt.SigningMethodHS256, golangjwt.MapClaims{
		"sub":  "user-1",
		"iat":  now.Add(-time.Minute).Unix(),
		"exp":  now.Add(time.Hour).Unix(),
		"aud":  "api",
		"iss":  "https://issuer.example",
		"jti":  "token-1",
		"role": "admin",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	token, err := Decode(signed, testSecret, "HS256", WithAudience("api"), WithIssuer("https://issuer.example"))
	require.NoError(t, err)
	assert.Equal(t, "user-1", token.Subject())
	assert.Equal(t, "api", token.Audience())
	assert.Equal(t, "token-1", token.TokenID())
	assert.Equal(t, now.Add(time.Hour).Unix(), token.ExpiresAt().Unix())
	assert.Equal(t, map[string]any{"role": "admin"}, token.ExtraClaims())
}

func TestInterop_GolangJWTParsesEncode(t *testing.T) {
	now := time.Now()
	token, err := NewToken(Claims{
		ExpiresAt:   now.Add(time.Hour),
		Subject:     "user-1",
		Audience:    "api",
		ExtraClaims: map[string]any{"role": "admin"},
	}, nil)
	require.NoError(t, err)

	encoded, err := token.Encode(testSecret, "HS256")
	require.NoError(t, err)

	claims := golangjwt.MapClaims{}
	parsed, err := golangjwt.ParseWithClaims(encoded, claims, func(*golangjwt.Token) (any, error) {
		return []byte(testSecret), nil
	},
		golangjwt.WithValidMethods([]string{"HS256"}),
		golangjwt.WithAudience("api"),
		golangjwt.WithIssuedAt(),
	)
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	sub, err := claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
	assert.Equal(t, "admin", claims["role"])
	assert.Equal(t, "api", claims["aud"])
}

func TestInterop_GolangJWTRejectedWithoutIssuedAt(t *testing.T) {
	signed, err := golangjwt.NewWithClaims(golangjwt.SigningMethodHS256, golangjwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	token, err := Decode(signed, testSecret, "HS256")
	requireInvalidToken(t, token, err)
}
