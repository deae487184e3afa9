package jwtoken

import "context"

type tokenKey struct{}

// BindToken stores a decoded token inside the context for downstream consumers.
func BindToken(ctx context.Context, t *Token) context.Context {
	return context.WithValue(ctx, tokenKey{}, t)
}

// TokenFromContext retrieves a token previously stored in the context.
func TokenFromContext(ctx context.Context) (*Token, bool) {
	if ctx == nil {
		return nil, false
	}
	t, ok := ctx.Value(tokenKey{}).(*Token)
	return t, ok && t != nil
}
