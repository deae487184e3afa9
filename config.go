package jwtoken

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const defaultAlgorithm = "HS256"

// CodecConfig describes how tokens are signed and which claims are accepted.
// Field tags allow loading it with github.com/caarlos0/env.
type CodecConfig struct {
	Secret    string   `env:"JWTOKEN_SECRET"`
	Algorithm string   `env:"JWTOKEN_ALGORITHM" envDefault:"HS256"`
	Audience  []string `env:"JWTOKEN_AUDIENCE" envSeparator:","`
	Issuer    []string `env:"JWTOKEN_ISSUER" envSeparator:","`

	// Key overrides Secret with arbitrary key material (jwk.Key, jwk.Set,
	// or a crypto key). Not loaded from the environment.
	Key any `env:"-"`
}

// normalize sets default values for optional fields.
func (c *CodecConfig) normalize() {
	c.Algorithm = strings.ToUpper(strings.TrimSpace(c.Algorithm))
	if c.Algorithm == "" {
		c.Algorithm = defaultAlgorithm
	}
	c.Audience = nonEmpty(trimAll(c.Audience))
	c.Issuer = nonEmpty(trimAll(c.Issuer))
}

// validate ensures the configuration is usable.
func (c CodecConfig) validate() error {
	if c.Key == nil && c.Secret == "" {
		return errors.New("secret or key is required")
	}
	return nil
}

func (c CodecConfig) key() any {
	if c.Key != nil {
		return c.Key
	}
	return c.Secret
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

// Codec binds key material, algorithm and claim filters for repeated use.
// It is immutable and safe for concurrent use.
type Codec struct {
	alg        jwa.SignatureAlgorithm
	verifyKeys []jwt.ParseOption
	signKey    any
	params     decodeParams
}

// CodecOption customizes NewCodec.
type CodecOption func(*Codec)

// WithCodecClock sets the clock used by Decode.
func WithCodecClock(c Clock) CodecOption {
	return func(codec *Codec) {
		codec.params.clock = c
	}
}

// WithCodecLogger sets the logger that receives decode rejection causes.
func WithCodecLogger(l *slog.Logger) CodecOption {
	return func(codec *Codec) {
		if l != nil {
			codec.params.logger = l
		}
	}
}

// NewCodec validates cfg and resolves its algorithm and key once.
func NewCodec(cfg CodecConfig, opts ...CodecOption) (*Codec, error) {
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, newError(ErrCodeImproperlyConfigured, err)
	}
	alg, err := parseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, newError(ErrCodeImproperlyConfigured, err)
	}
	verifyKeys, err := verifyOptions(alg, cfg.key())
	if err != nil {
		return nil, newError(ErrCodeImproperlyConfigured, err)
	}
	// A multi-key set can still verify, so signing errors surface from Encode.
	signKey, _ := signingKey(cfg.key())

	codec := &Codec{
		alg:        alg,
		verifyKeys: verifyKeys,
		signKey:    signKey,
		params: decodeParams{
			audience: cfg.Audience,
			issuer:   cfg.Issuer,
			logger:   discardLogger,
		},
	}
	for _, opt := range opts {
		opt(codec)
	}
	return codec, nil
}

// Algorithm returns the bound signature algorithm name.
func (c *Codec) Algorithm() string {
	return c.alg.String()
}

// Decode verifies encoded with the bound key and claim filters.
func (c *Codec) Decode(encoded string) (*Token, error) {
	return decode(encoded, c.verifyKeys, c.params)
}

// Encode signs t with the bound key.
func (c *Codec) Encode(t *Token) (string, error) {
	if t == nil {
		return "", encodeError(errors.New("token is nil"))
	}
	if c.signKey == nil {
		return "", encodeError(errors.New("key set must hold exactly one key to sign"))
	}
	return t.encode(c.alg, c.signKey)
}

