package jwtoken

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	json "github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// registeredClaims are the claim names jwx maps onto jwt.Token fields.
var registeredClaims = map[string]struct{}{
	jwt.IssuerKey:     {},
	jwt.SubjectKey:    {},
	jwt.AudienceKey:   {},
	jwt.ExpirationKey: {},
	jwt.NotBeforeKey:  {},
	jwt.IssuedAtKey:   {},
	jwt.JwtIDKey:      {},
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// DecodeOption customizes a single Decode call.
type DecodeOption func(*decodeParams)

type decodeParams struct {
	audience []string
	issuer   []string
	clock    Clock
	logger   *slog.Logger
}

// WithAudience restricts accepted aud values. Without it aud is not checked.
func WithAudience(values ...string) DecodeOption {
	return func(p *decodeParams) {
		p.audience = nonEmpty(values)
	}
}

// WithIssuer restricts accepted iss values. Without it iss is not checked.
func WithIssuer(values ...string) DecodeOption {
	return func(p *decodeParams) {
		p.issuer = nonEmpty(values)
	}
}

// WithClock sets the time source used for expiry and issued-at checks.
func WithClock(c Clock) DecodeOption {
	return func(p *decodeParams) {
		p.clock = c
	}
}

// WithLogger receives the cause of rejected tokens at debug level.
func WithLogger(l *slog.Logger) DecodeOption {
	return func(p *decodeParams) {
		p.logger = l
	}
}

// Decode verifies encoded with key and algorithm and returns the validated Token.
// Every failure yields the same *Error with code ErrCodeNotAuthorized and no cause.
func Decode(encoded string, key any, algorithm string, opts ...DecodeOption) (*Token, error) {
	params := decodeParams{logger: discardLogger}
	for _, opt := range opts {
		opt(&params)
	}
	if params.logger == nil {
		params.logger = discardLogger
	}

	alg, err := parseAlgorithm(algorithm)
	if err != nil {
		return nil, rejectToken(params.logger, err)
	}
	keyOpts, err := verifyOptions(alg, key)
	if err != nil {
		return nil, rejectToken(params.logger, err)
	}
	return decode(encoded, keyOpts, params)
}

func decode(encoded string, keyOpts []jwt.ParseOption, params decodeParams) (*Token, error) {
	if encoded == "" {
		return nil, rejectToken(params.logger, errors.New("token is empty"))
	}
	clock := clockOrDefault(params.clock)

	parseOpts := append([]jwt.ParseOption{}, keyOpts...)
	parseOpts = append(parseOpts,
		jwt.WithValidate(true),
		jwt.WithClock(clock),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
		jwt.WithRequiredClaim(jwt.IssuedAtKey),
		jwt.WithRequiredClaim(jwt.SubjectKey),
	)
	if len(params.issuer) > 0 {
		parseOpts = append(parseOpts, jwt.WithValidator(issuerIn(params.issuer)))
	}
	if len(params.audience) > 0 {
		parseOpts = append(parseOpts, jwt.WithValidator(audienceIn(params.audience)))
	}

	parsed, err := jwt.ParseString(encoded, parseOpts...)
	if err != nil {
		return nil, rejectToken(params.logger, err)
	}

	private, err := privateClaims(encoded)
	if err != nil {
		return nil, rejectToken(params.logger, err)
	}

	claims, err := claimsFromJWT(parsed, private)
	if err != nil {
		return nil, rejectToken(params.logger, err)
	}

	token, err := NewToken(claims, clock)
	if err != nil {
		return nil, rejectToken(params.logger, err)
	}
	return token, nil
}

func rejectToken(logger *slog.Logger, cause error) error {
	logger.Debug("token rejected", slog.String("cause", cause.Error()))
	return errInvalidToken()
}

func issuerIn(accepted []string) jwt.Validator {
	set := toSet(accepted)
	return jwt.ValidatorFunc(func(_ context.Context, t jwt.Token) jwt.ValidationError {
		if _, ok := set[t.Issuer()]; !ok {
			return jwt.ErrInvalidIssuer()
		}
		return nil
	})
}

func audienceIn(accepted []string) jwt.Validator {
	set := toSet(accepted)
	return jwt.ValidatorFunc(func(_ context.Context, t jwt.Token) jwt.ValidationError {
		for _, aud := range t.Audience() {
			if _, ok := set[aud]; ok {
				return nil
			}
		}
		return jwt.ErrInvalidAudience()
	})
}

// privateClaims decodes the non-registered claims of an already verified
// token. Numbers stay json.Number so integers beyond 2^53 keep every digit.
func privateClaims(encoded string) (map[string]any, error) {
	msg, err := jws.ParseString(encoded)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(msg.Payload()))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	for k := range registeredClaims {
		delete(payload, k)
	}
	return payload, nil
}

// claimsFromJWT maps a verified jwt.Token onto Claims. Anything outside the
// named claims, including nbf, is kept in ExtraClaims.
func claimsFromJWT(t jwt.Token, private map[string]any) (Claims, error) {
	claims := Claims{
		ExpiresAt: normalizeTime(t.Expiration()),
		Subject:   t.Subject(),
		IssuedAt:  normalizeTime(t.IssuedAt()),
		Issuer:    t.Issuer(),
		TokenID:   t.JwtID(),
	}

	switch aud := t.Audience(); len(aud) {
	case 0:
	case 1:
		claims.Audience = aud[0]
	default:
		return Claims{}, fmt.Errorf("aud holds %d values, expected one", len(aud))
	}

	extra := make(map[string]any)
	if nested, ok := private[extrasKey]; ok {
		m, ok := nested.(map[string]any)
		if !ok {
			return Claims{}, fmt.Errorf("%s claim must be an object, got %T", extrasKey, nested)
		}
		for k, v := range m {
			extra[k] = v
		}
	}
	for k, v := range private {
		if k == extrasKey {
			continue
		}
		extra[k] = v
	}
	if nbf := t.NotBefore(); !nbf.IsZero() {
		extra[jwt.NotBeforeKey] = nbf.Unix()
	}
	for k := range extra {
		if IsReservedClaim(k) {
			return Claims{}, fmt.Errorf("nested claim %q shadows a reserved claim", k)
		}
	}
	if len(extra) > 0 {
		claims.ExtraClaims = extra
	}
	return claims, nil
}

// Encode signs the token with key using algorithm and returns the compact form.
// Absent optional claims are left out of the payload.
func (t *Token) Encode(key any, algorithm string) (string, error) {
	alg, err := parseAlgorithm(algorithm)
	if err != nil {
		return "", encodeError(err)
	}
	signKey, err := signingKey(key)
	if err != nil {
		return "", encodeError(err)
	}
	return t.encode(alg, signKey)
}

func (t *Token) encode(alg jwa.SignatureAlgorithm, key any) (string, error) {
	tok, err := t.toJWT()
	if err != nil {
		return "", encodeError(err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(alg, key))
	if err != nil {
		return "", encodeError(err)
	}
	return string(signed), nil
}

func (t *Token) toJWT() (jwt.Token, error) {
	c := t.claims
	builder := jwt.NewBuilder().
		Expiration(c.ExpiresAt).
		IssuedAt(c.IssuedAt).
		Subject(c.Subject)
	if c.Issuer != "" {
		builder = builder.Issuer(c.Issuer)
	}
	if c.Audience != "" {
		builder = builder.Audience([]string{c.Audience})
	}
	if c.TokenID != "" {
		builder = builder.JwtID(c.TokenID)
	}
	for k, v := range c.ExtraClaims {
		if v == nil {
			continue
		}
		builder = builder.Claim(k, v)
	}

	tok, err := builder.Build()
	if err != nil {
		return nil, err
	}
	tok.Options().Enable(jwt.FlattenAudience)
	return tok, nil
}

func encodeError(err error) error {
	return &Error{Code: ErrCodeImproperlyConfigured, Message: "Failed to encode token", Err: err}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

