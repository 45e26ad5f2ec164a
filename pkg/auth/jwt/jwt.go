// Package jwt authenticates bearer JWTs signed with a static key: an
// HMAC secret (HS256/384/512) or an RSA public key (RS256/384/512).
package jwt

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/tradelens/pkg/auth"
)

// Config holds JWT validation settings.
type Config struct {
	// Issuer and Audience are checked when set.
	Issuer   string
	Audience string

	// Exactly one of HMACSecret or PublicKeyPEM must be set.
	HMACSecret   string
	PublicKeyPEM string

	// Claim names. Defaults: "sub", "tenant_id", "tier".
	SubjectClaim string
	TenantClaim  string
	TierClaim    string
}

func (c *Config) applyDefaults() {
	if c.SubjectClaim == "" {
		c.SubjectClaim = "sub"
	}
	if c.TenantClaim == "" {
		c.TenantClaim = "tenant_id"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
}

// Authenticator validates JWT bearer tokens.
type Authenticator struct {
	cfg     Config
	key     any
	methods []string
}

var _ auth.Authenticator = (*Authenticator)(nil)

// New builds an Authenticator from cfg.
func New(cfg Config) (*Authenticator, error) {
	cfg.applyDefaults()

	a := &Authenticator{cfg: cfg}
	switch {
	case cfg.HMACSecret != "" && cfg.PublicKeyPEM != "":
		return nil, errors.New("jwt: hmac_secret and public_key are mutually exclusive")
	case cfg.HMACSecret != "":
		a.key = []byte(cfg.HMACSecret)
		a.methods = []string{"HS256", "HS384", "HS512"}
	case cfg.PublicKeyPEM != "":
		pub, err := jwtlib.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("jwt: parsing public key: %w", err)
		}
		a.key = pub
		a.methods = []string{"RS256", "RS384", "RS512"}
	default:
		return nil, errors.New("jwt: hmac_secret or public_key is required")
	}
	return a, nil
}

// Authenticate abstains for non-bearer requests and for bearer tokens
// that are not JWTs, so an API key authenticator later in the chain can
// handle them.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	tokenStr, ok := auth.BearerToken(r)
	if !ok || strings.Count(tokenStr, ".") != 2 {
		return auth.Result{Decision: auth.Abstain}
	}

	token, err := jwtlib.Parse(tokenStr, a.keyFunc, a.parserOptions()...)
	if err != nil {
		slog.Debug("JWT validation failed", "error", err)
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("invalid JWT: %w", err)}
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return auth.Result{Decision: auth.No, Err: errors.New("invalid JWT claims")}
	}

	subject := claimString(claims, a.cfg.SubjectClaim)
	if subject == "" {
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("JWT missing %q claim", a.cfg.SubjectClaim)}
	}

	return auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject: subject,
			Tenant:  claimString(claims, a.cfg.TenantClaim),
			Tier:    claimString(claims, a.cfg.TierClaim),
		},
	}
}

func (a *Authenticator) keyFunc(token *jwtlib.Token) (any, error) {
	switch a.key.(type) {
	case []byte:
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
	case *rsa.PublicKey:
		if _, ok := token.Method.(*jwtlib.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
	}
	return a.key, nil
}

func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{jwtlib.WithValidMethods(a.methods)}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.cfg.Audience))
	}
	return opts
}

func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}
