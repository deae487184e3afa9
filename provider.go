package jwtoken

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	defaultTokenTTL    = 15 * time.Minute
	defaultEarlyExpiry = 30 * time.Second
)

// TokenFactory allows callers to override how token sources are built.
type TokenFactory func(context.Context, string, ProviderParams) (oauth2.TokenSource, error)

// ProviderConfig defines how tokens should be issued by default.
type ProviderConfig struct {
	Codec       *Codec
	Subject     string
	Issuer      string
	TTL         time.Duration
	EarlyExpiry time.Duration
	ExtraClaims map[string]any

	// Clock stamps exp and iat. Cached tokens are refreshed once the lifetime
	// measured on Clock, less EarlyExpiry, has elapsed in wall time.
	Clock Clock

	TokenFactory TokenFactory
}

// Provider issues self-signed tokens for service-to-service calls.
// It caches token sources per (audience, subject, extra claims) combination.
type Provider struct {
	mu       sync.RWMutex
	cfg      ProviderConfig
	factory  TokenFactory
	entries  map[providerKey]*tokenSourceEntry
	defaults ProviderParams
}

type providerKey struct {
	Audience string
	Subject  string
	Claims   string
}

type tokenSourceEntry struct {
	source oauth2.TokenSource
}

// ProviderParams holds the per-call claim template.
type ProviderParams struct {
	Subject     string
	ExtraClaims map[string]any
}

// TokenOption customizes the behaviour for a single Token call.
type TokenOption func(*ProviderParams)

// WithSubject overrides the subject of the minted token.
func WithSubject(subject string) TokenOption {
	return func(p *ProviderParams) {
		p.Subject = subject
	}
}

// WithClaim adds an extension claim to the minted token.
func WithClaim(name string, value any) TokenOption {
	return func(p *ProviderParams) {
		if p.ExtraClaims == nil {
			p.ExtraClaims = make(map[string]any)
		}
		p.ExtraClaims[name] = value
	}
}

// NewProvider constructs a Provider using the supplied defaults.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.TokenFactory == nil && cfg.Codec == nil {
		return nil, newError(ErrCodeImproperlyConfigured, errors.New("codec is required"))
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTokenTTL
	}
	if cfg.EarlyExpiry <= 0 {
		cfg.EarlyExpiry = defaultEarlyExpiry
	}
	p := &Provider{
		cfg:     cfg,
		entries: make(map[providerKey]*tokenSourceEntry),
		defaults: ProviderParams{
			Subject:     cfg.Subject,
			ExtraClaims: cloneMap(cfg.ExtraClaims),
		},
	}
	p.factory = cfg.TokenFactory
	if p.factory == nil {
		p.factory = p.defaultFactory
	}
	return p, nil
}

// Token returns a signed token for the given audience.
func (p *Provider) Token(ctx context.Context, audience string, opts ...TokenOption) (string, error) {
	if strings.TrimSpace(audience) == "" {
		return "", errors.New("audience is required")
	}

	params := cloneParams(p.defaults)
	for _, opt := range opts {
		opt(&params)
	}

	claims, err := fingerprint(params.ExtraClaims)
	if err != nil {
		return "", err
	}
	key := providerKey{
		Audience: audience,
		Subject:  params.Subject,
		Claims:   claims,
	}

	entry, err := p.getOrCreate(ctx, key, params)
	if err != nil {
		return "", err
	}

	tok, err := entry.source.Token()
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("empty access token returned")
	}
	return tok.AccessToken, nil
}

func (p *Provider) getOrCreate(ctx context.Context, key providerKey, params ProviderParams) (*tokenSourceEntry, error) {
	p.mu.RLock()
	entry, ok := p.entries[key]
	p.mu.RUnlock()
	if ok {
		return entry, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok = p.entries[key]; ok {
		return entry, nil
	}

	ts, err := p.factory(persistentContext(ctx), key.Audience, params)
	if err != nil {
		return nil, err
	}
	entry = &tokenSourceEntry{source: oauth2.ReuseTokenSourceWithExpiry(nil, ts, p.cfg.EarlyExpiry)}
	p.entries[key] = entry
	return entry, nil
}

func (p *Provider) defaultFactory(_ context.Context, audience string, params ProviderParams) (oauth2.TokenSource, error) {
	if params.Subject == "" {
		return nil, newError(ErrCodeImproperlyConfigured, errors.New("subject is required"))
	}
	return &selfSignedSource{
		codec:    p.cfg.Codec,
		clock:    clockOrDefault(p.cfg.Clock),
		ttl:      p.cfg.TTL,
		issuer:   p.cfg.Issuer,
		audience: audience,
		params:   params,
	}, nil
}

// selfSignedSource mints a fresh token with a random jti on every call.
type selfSignedSource struct {
	codec    *Codec
	clock    Clock
	ttl      time.Duration
	issuer   string
	audience string
	params   ProviderParams
}

func (s *selfSignedSource) Token() (*oauth2.Token, error) {
	now := s.clock.Now()
	t, err := NewToken(Claims{
		ExpiresAt:   now.Add(s.ttl),
		Subject:     s.params.Subject,
		IssuedAt:    now,
		Issuer:      s.issuer,
		Audience:    s.audience,
		TokenID:     uuid.NewString(),
		ExtraClaims: s.params.ExtraClaims,
	}, s.clock)
	if err != nil {
		return nil, err
	}
	encoded, err := s.codec.Encode(t)
	if err != nil {
		return nil, err
	}
	// oauth2 judges reuse against time.Now, so carry over the remaining lifetime.
	return &oauth2.Token{
		AccessToken: encoded,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(t.ExpiresAt().Sub(now)),
	}, nil
}

func cloneParams(in ProviderParams) ProviderParams {
	out := in
	out.ExtraClaims = cloneMap(in.ExtraClaims)
	return out
}

// fingerprint encodes claims as JSON with sorted keys, so distinct claim sets
// never share a cache entry.
func fingerprint(claims map[string]any) (string, error) {
	if len(claims) == 0 {
		return "", nil
	}
	data, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("fingerprint claims: %w", err)
	}
	return string(data), nil
}

func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	if _, ok := ctx.(*detachedContext); ok {
		return ctx
	}
	return &detachedContext{parent: ctx}
}

// detachedContext keeps parent values but never expires, so a cached source
// outlives the request that created it.
type detachedContext struct {
	parent context.Context
}

func (d *detachedContext) Deadline() (time.Time, bool) {
	return time.Time{}, false
}

func (d *detachedContext) Done() <-chan struct{} {
	return nil
}

func (d *detachedContext) Err() error {
	return nil
}

func (d *detachedContext) Value(key any) any {
	if d.parent == nil {
		return nil
	}
	return d.parent.Value(key)
}
