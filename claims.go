package jwtoken

import "time"

// Standard claim names used on the wire.
const (
	ExpirationKey = "exp"
	SubjectKey    = "sub"
	IssuedAtKey   = "iat"
	IssuerKey     = "iss"
	AudienceKey   = "aud"
	TokenIDKey    = "jti"

	// extrasKey is accepted on decode as a container of extension claims.
	extrasKey = "extras"
)

var reservedClaims = map[string]struct{}{
	ExpirationKey: {},
	SubjectKey:    {},
	IssuedAtKey:   {},
	IssuerKey:     {},
	AudienceKey:   {},
	TokenIDKey:    {},
	extrasKey:     {},
}

// Claims is the claim set a Token is built from.
// Empty strings mean the optional claim is absent.
type Claims struct {
	ExpiresAt time.Time
	Subject   string
	IssuedAt  time.Time
	Issuer    string
	Audience  string
	TokenID   string

	// ExtraClaims holds every claim outside the named fields above.
	ExtraClaims map[string]any
}

func (c Claims) clone() Claims {
	out := c
	out.ExtraClaims = cloneMap(c.ExtraClaims)
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IsReservedClaim reports whether name maps to a named Claims field.
func IsReservedClaim(name string) bool {
	_, ok := reservedClaims[name]
	return ok
}
