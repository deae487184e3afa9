package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"

	"github.com/bionicotaku/lingo-utils-jwtoken"
)

type config struct {
	Codec    jwtoken.CodecConfig
	KeyFile  string `env:"JWTOKEN_KEY_FILE"`
	LogLevel string `env:"JWTOKEN_LOG_LEVEL" envDefault:"info"`
	EnvFile  string `env:"JWTOKEN_ENV_FILE" envDefault:".env"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr, environ()); err != nil {
		fmt.Fprintf(os.Stderr, "jwtoken: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: jwtoken <encode|decode> [flags]")
}

func run(args []string, stdout, stderr io.Writer, vars map[string]string) error {
	if len(args) == 0 {
		usage(stderr)
		return errors.New("command is required")
	}

	cfg, err := loadConfig(vars)
	if err != nil {
		return err
	}

	switch args[0] {
	case "encode":
		return runEncode(cfg, args[1:], stdout, stderr)
	case "decode":
		return runDecode(cfg, args[1:], stdout, stderr)
	default:
		usage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// loadConfig merges the .env file under vars (process values win) and parses the result.
func loadConfig(vars map[string]string) (config, error) {
	merged := make(map[string]string, len(vars))
	envFile := vars["JWTOKEN_ENV_FILE"]
	if envFile == "" {
		envFile = ".env"
	}
	fileVars, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return config{}, fmt.Errorf("load %s: %w", envFile, err)
	}
	for k, v := range fileVars {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}

	var cfg config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: merged}); err != nil {
		return config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func environ() map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return vars
}

func newLogger(w io.Writer, level string, verbose bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

type commonFlags struct {
	secret    *string
	algorithm *string
	keyFile   *string
	verbose   *bool
}

func bindCommon(fs *flag.FlagSet, cfg config) commonFlags {
	return commonFlags{
		secret:    fs.String("secret", cfg.Codec.Secret, "HMAC secret (env JWTOKEN_SECRET)"),
		algorithm: fs.String("alg", cfg.Codec.Algorithm, "Signature algorithm (env JWTOKEN_ALGORITHM)"),
		keyFile:   fs.String("key-file", cfg.KeyFile, "JWK, JWKS or PEM key file (env JWTOKEN_KEY_FILE)"),
		verbose:   fs.Bool("v", false, "Log debug output"),
	}
}

func (f commonFlags) codecConfig(base jwtoken.CodecConfig) (jwtoken.CodecConfig, error) {
	cfg := base
	cfg.Secret = *f.secret
	cfg.Algorithm = *f.algorithm
	if *f.keyFile != "" {
		data, err := os.ReadFile(*f.keyFile)
		if err != nil {
			return cfg, fmt.Errorf("read key file: %w", err)
		}
		set, err := jwtoken.ParseKeySet(data)
		if err != nil {
			return cfg, fmt.Errorf("parse key file: %w", err)
		}
		cfg.Key = set
	}
	return cfg, nil
}

type claimFlags map[string]any

func (c claimFlags) String() string {
	return fmt.Sprint(map[string]any(c))
}

// Set parses name=value; value is read as JSON when it parses, else as a string.
func (c claimFlags) Set(s string) error {
	name, raw, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("claim %q must be name=value", s)
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		v = raw
	}
	c[name] = v
	return nil
}

func runEncode(cfg config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := bindCommon(fs, cfg)
	subject := fs.String("sub", "", "Subject claim")
	ttl := fs.Duration("ttl", 15*time.Minute, "Token lifetime")
	audience := fs.String("aud", "", "Audience claim")
	issuer := fs.String("iss", "", "Issuer claim")
	tokenID := fs.String("jti", "", "Token id claim")
	extra := claimFlags{}
	fs.Var(extra, "claim", "Extension claim name=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := newLogger(stderr, cfg.LogLevel, *common.verbose)

	codecCfg, err := common.codecConfig(cfg.Codec)
	if err != nil {
		return err
	}
	codec, err := jwtoken.NewCodec(codecCfg, jwtoken.WithCodecLogger(logger))
	if err != nil {
		return err
	}

	now := time.Now()
	token, err := jwtoken.NewToken(jwtoken.Claims{
		ExpiresAt:   now.Add(*ttl),
		Subject:     *subject,
		IssuedAt:    now,
		Issuer:      *issuer,
		Audience:    *audience,
		TokenID:     *tokenID,
		ExtraClaims: extra,
	}, nil)
	if err != nil {
		return err
	}
	encoded, err := codec.Encode(token)
	if err != nil {
		return err
	}
	logger.Debug("token encoded", slog.String("sub", token.Subject()), slog.Time("exp", token.ExpiresAt()))
	_, err = fmt.Fprintln(stdout, encoded)
	return err
}

func runDecode(cfg config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common := bindCommon(fs, cfg)
	raw := fs.String("token", "", "Token to decode (default: first argument)")
	audience := fs.String("aud", strings.Join(cfg.Codec.Audience, ","), "Accepted audiences, comma separated (env JWTOKEN_AUDIENCE)")
	issuer := fs.String("iss", strings.Join(cfg.Codec.Issuer, ","), "Accepted issuers, comma separated (env JWTOKEN_ISSUER)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := newLogger(stderr, cfg.LogLevel, *common.verbose)

	encoded := *raw
	if encoded == "" && fs.NArg() > 0 {
		encoded = fs.Arg(0)
	}
	if encoded == "" {
		return errors.New("token is required")
	}

	codecCfg, err := common.codecConfig(cfg.Codec)
	if err != nil {
		return err
	}
	codecCfg.Audience = splitList(*audience)
	codecCfg.Issuer = splitList(*issuer)
	codec, err := jwtoken.NewCodec(codecCfg, jwtoken.WithCodecLogger(logger))
	if err != nil {
		return err
	}

	token, err := codec.Decode(encoded)
	if err != nil {
		return err
	}
	return printClaims(stdout, token)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

type claimsView struct {
	Subject     string         `json:"sub"`
	ExpiresAt   string         `json:"exp"`
	IssuedAt    string         `json:"iat"`
	Issuer      string         `json:"iss,omitempty"`
	Audience    string         `json:"aud,omitempty"`
	TokenID     string         `json:"jti,omitempty"`
	ExtraClaims map[string]any `json:"extra_claims,omitempty"`
}

func printClaims(w io.Writer, t *jwtoken.Token) error {
	view := claimsView{
		Subject:     t.Subject(),
		ExpiresAt:   t.ExpiresAt().Format(time.RFC3339),
		IssuedAt:    t.IssuedAt().Format(time.RFC3339),
		Issuer:      t.Issuer(),
		Audience:    t.Audience(),
		TokenID:     t.TokenID(),
		ExtraClaims: t.ExtraClaims(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
