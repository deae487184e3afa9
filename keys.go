package jwtoken

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ParseKey reads a single key from a JWK document or a PEM block.
func ParseKey(data []byte) (jwk.Key, error) {
	if looksLikePEM(data) {
		return jwk.ParseKey(data, jwk.WithPEM(true))
	}
	return jwk.ParseKey(data)
}

// ParseKeySet reads a JWKS document. A single JWK or PEM data yields a set of one.
func ParseKeySet(data []byte) (jwk.Set, error) {
	if looksLikePEM(data) {
		return jwk.Parse(data, jwk.WithPEM(true))
	}
	return jwk.Parse(data)
}

func looksLikePEM(data []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(data)), "-----BEGIN")
}

// parseAlgorithm resolves a signature algorithm name. "none" is never accepted.
func parseAlgorithm(name string) (jwa.SignatureAlgorithm, error) {
	var alg jwa.SignatureAlgorithm
	if err := alg.Accept(strings.TrimSpace(name)); err != nil {
		return "", fmt.Errorf("algorithm %q: %w", name, err)
	}
	if alg == jwa.NoSignature {
		return "", errors.New(`algorithm "none" is not allowed`)
	}
	return alg, nil
}

// verifyOptions turns key material into jwt.Parse options. Every key of a
// set is offered; verification succeeds when any of them matches.
func verifyOptions(alg jwa.SignatureAlgorithm, key any) ([]jwt.ParseOption, error) {
	switch k := key.(type) {
	case nil:
		return nil, errors.New("key is required")
	case jwk.Set:
		if k.Len() == 0 {
			return nil, errors.New("key set is empty")
		}
		opts := make([]jwt.ParseOption, 0, k.Len())
		for i := 0; i < k.Len(); i++ {
			member, ok := k.Key(i)
			if !ok {
				continue
			}
			opts = append(opts, jwt.WithKey(alg, member))
		}
		return opts, nil
	}
	raw, err := singleKey(key)
	if err != nil {
		return nil, err
	}
	return []jwt.ParseOption{jwt.WithKey(alg, raw)}, nil
}

// signingKey resolves key material for signing. Sets must hold exactly one key.
func signingKey(key any) (any, error) {
	if set, ok := key.(jwk.Set); ok {
		if set.Len() != 1 {
			return nil, fmt.Errorf("key set must hold exactly one key to sign, got %d", set.Len())
		}
		member, _ := set.Key(0)
		return member, nil
	}
	return singleKey(key)
}

func singleKey(key any) (any, error) {
	switch k := key.(type) {
	case nil:
		return nil, errors.New("key is required")
	case string:
		if k == "" {
			return nil, errors.New("secret is empty")
		}
		return []byte(k), nil
	case []byte:
		if len(k) == 0 {
			return nil, errors.New("secret is empty")
		}
		return k, nil
	default:
		return key, nil
	}
}
