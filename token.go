package jwtoken

import (
	"fmt"
	"time"
)

// Token is a validated, immutable JWT claim set.
type Token struct {
	claims Claims
}

// NewToken validates c against clock and returns a Token. A nil clock reads
// the system time. A zero IssuedAt defaults to now.
func NewToken(c Claims, clock Clock) (*Token, error) {
	now := normalizeTime(clockOrDefault(clock).Now())
	c = c.clone()

	if len(c.Subject) < 1 {
		return nil, configError("sub must be a string with a length greater than 0")
	}

	if c.ExpiresAt.IsZero() {
		return nil, configError("exp value must be a datetime in the future")
	}
	c.ExpiresAt = normalizeTime(c.ExpiresAt)
	if !c.ExpiresAt.After(now) {
		return nil, configError("exp value must be a datetime in the future")
	}

	if c.IssuedAt.IsZero() {
		c.IssuedAt = now
	}
	c.IssuedAt = normalizeTime(c.IssuedAt)
	if c.IssuedAt.After(now) {
		return nil, configError("iat must be a current or past time")
	}

	for name := range c.ExtraClaims {
		if IsReservedClaim(name) {
			return nil, configError(fmt.Sprintf("extra claim %q collides with a reserved claim", name))
		}
	}

	return &Token{claims: c}, nil
}

// ExpiresAt returns the expiry in UTC at second precision.
func (t *Token) ExpiresAt() time.Time { return t.claims.ExpiresAt }

// Subject returns the sub claim.
func (t *Token) Subject() string { return t.claims.Subject }

// IssuedAt returns the issue time in UTC at second precision.
func (t *Token) IssuedAt() time.Time { return t.claims.IssuedAt }

// Issuer returns the iss claim, or "" when absent.
func (t *Token) Issuer() string { return t.claims.Issuer }

// Audience returns the aud claim, or "" when absent.
func (t *Token) Audience() string { return t.claims.Audience }

// TokenID returns the jti claim, or "" when absent.
func (t *Token) TokenID() string { return t.claims.TokenID }

// ExtraClaim returns a single extension claim.
func (t *Token) ExtraClaim(name string) (any, bool) {
	v, ok := t.claims.ExtraClaims[name]
	return v, ok
}

// ExtraClaims returns a copy of the extension claims.
func (t *Token) ExtraClaims() map[string]any {
	return cloneMap(t.claims.ExtraClaims)
}

// Claims returns a copy of the full claim set.
func (t *Token) Claims() Claims {
	return t.claims.clone()
}
