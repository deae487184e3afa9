package jwtoken

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newECKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := parseAlgorithm(" ES256 ")
	require.NoError(t, err)
	assert.Equal(t, jwa.ES256, alg)

	_, err = parseAlgorithm("none")
	require.Error(t, err)

	_, err = parseAlgorithm("HS1")
	require.Error(t, err)
}

func TestParseKey_PEM(t *testing.T) {
	private := newECKey(t)
	der, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	require.NoError(t, err)
	data := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	key, err := ParseKey(data)
	require.NoError(t, err)
	assert.Equal(t, jwa.EC, key.KeyType())

	encoded, err := newTestToken(t, nil).Encode(private, "ES256")
	require.NoError(t, err)
	token, err := Decode(encoded, key, "ES256", WithClock(FixedClock(testNow)))
	require.NoError(t, err)
	assert.Equal(t, "user-1", token.Subject())
}

func TestParseKeySet_JWKS(t *testing.T) {
	private := newECKey(t)
	pub, err := jwk.PublicKeyOf(private)
	require.NoError(t, err)
	require.NoError(t, pub.Set(jwk.KeyIDKey, "key-1"))

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	data, err := json.Marshal(set)
	require.NoError(t, err)

	parsed, err := ParseKeySet(data)
	require.NoError(t, err)
	assert.Equal(t, 1, parsed.Len())

	encoded, err := newTestToken(t, nil).Encode(private, "ES256")
	require.NoError(t, err)
	_, err = Decode(encoded, parsed, "ES256", WithClock(FixedClock(testNow)))
	require.NoError(t, err)
}

func TestSigningKey_SingleKeySet(t *testing.T) {
	private, err := jwk.FromRaw(newECKey(t))
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(private))

	token, err := NewToken(Claims{ExpiresAt: time.Now().Add(time.Hour), Subject: "user-1"}, nil)
	require.NoError(t, err)
	encoded, err := token.Encode(set, "ES256")
	require.NoError(t, err)

	public, err := jwk.PublicSetOf(set)
	require.NoError(t, err)
	_, err = Decode(encoded, public, "ES256")
	require.NoError(t, err)

	require.NoError(t, set.AddKey(mustJWK(t, newECKey(t))))
	_, err = token.Encode(set, "ES256")
	assert.True(t, IsImproperlyConfigured(err))
}

func mustJWK(t *testing.T, raw any) jwk.Key {
	t.Helper()
	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	return key
}

func TestSingleKey(t *testing.T) {
	key, err := singleKey("secret")
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), key)

	_, err = singleKey("")
	require.Error(t, err)
	_, err = singleKey([]byte{})
	require.Error(t, err)
	_, err = singleKey(nil)
	require.Error(t, err)
}
