// Package auth implements bearer JWT validation and API-key validation,
// both producing a ctxutil.Principal the rest of the stack reads off the
// request context. HS256 signing/parsing with golang-jwt/jwt/v5 and the
// RegisteredClaims shape carry over from a typical JWT auth service; the
// session-token-lookup and OAuth flows do not, since this service has no
// login/register surface of its own, only bearer/API-key verification at
// the edge.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clipstream/timeline-core/internal/ctxutil"
)

// Claims is the JWT payload minted for and presented by human callers.
// UserName is non-standard and carried for display purposes only — it is
// never trusted for authorization decisions, only UserID (Subject) is.
type Claims struct {
	jwt.RegisteredClaims
	UserName string `json:"user_name,omitempty"`
}

// APIKeyRecord is what an APIKeyStore returns for a known key prefix.
type APIKeyRecord struct {
	Prefix    string
	HashedKey string // sha256 hex of prefix+"."+secret+pepper
	Revoked   bool
}

// APIKeyStore resolves a presented key's prefix to its stored hash.
type APIKeyStore interface {
	Lookup(ctx context.Context, prefix string) (*APIKeyRecord, error)
}

// Provider validates bearer tokens and API keys into a ctxutil.Principal.
type Provider struct {
	jwtSecret []byte
	pepper    string
	keys      APIKeyStore
}

func NewProvider(jwtSecret, pepper string, keys APIKeyStore) *Provider {
	return &Provider{jwtSecret: []byte(jwtSecret), pepper: pepper, keys: keys}
}

// IssueBearerToken mints a short-lived HS256 token for a human caller.
// Not part of A5's read surface proper, but the counterpart any bearer
// issuer (an upstream identity service, or a dev/test harness) needs.
func (p *Provider) IssueBearerToken(userID, userName string, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		UserName: userName,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.jwtSecret)
}

// ValidateBearerToken parses and verifies an HS256 JWT, returning the
// caller's principal. A malformed, expired, or mis-signed token is an error
// — callers must reject the request rather than treat it as anonymous.
func (p *Provider) ValidateBearerToken(ctx context.Context, token string) (*ctxutil.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("empty bearer token")
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse bearer token: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid or expired bearer token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("bearer token missing subject")
	}
	return &ctxutil.Principal{UserID: claims.Subject, UserName: claims.UserName, IsAPIKey: false}, nil
}

// splitAPIKey divides a "prefix_secret" presented key into its lookup
// prefix and secret. The prefix is stored in the clear so the store can
// index by it; only the combined hash is ever persisted.
func splitAPIKey(presented string) (prefix, secret string, ok bool) {
	idx := strings.IndexByte(presented, '_')
	if idx <= 0 || idx == len(presented)-1 {
		return "", "", false
	}
	return presented[:idx], presented[idx+1:], true
}

func hashAPIKey(prefix, secret, pepper string) string {
	sum := sha256.Sum256([]byte(prefix + "." + secret + pepper))
	return hex.EncodeToString(sum[:])
}

// ValidateAPIKey validates a programmatic caller's key against the stored
// hash for its prefix, comparing in constant time. A valid API key
// resolves to a principal with no user id — API-key callers bypass
// lock-holder verification on writes, since they don't participate in the
// cooperative locking protocol.
func (p *Provider) ValidateAPIKey(ctx context.Context, presented string) (*ctxutil.Principal, error) {
	prefix, secret, ok := splitAPIKey(strings.TrimSpace(presented))
	if !ok {
		return nil, fmt.Errorf("malformed api key")
	}
	rec, err := p.keys.Lookup(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}
	if rec == nil || rec.Revoked {
		return nil, fmt.Errorf("unknown or revoked api key")
	}
	want := hashAPIKey(prefix, secret, p.pepper)
	if subtle.ConstantTimeCompare([]byte(want), []byte(rec.HashedKey)) != 1 {
		return nil, fmt.Errorf("api key mismatch")
	}
	return &ctxutil.Principal{IsAPIKey: true}, nil
}

// Authenticate dispatches an Authorization header value to bearer or
// API-key validation based on its scheme.
func (p *Provider) Authenticate(ctx context.Context, authorizationHeader string) (*ctxutil.Principal, error) {
	h := strings.TrimSpace(authorizationHeader)
	switch {
	case strings.HasPrefix(h, "Bearer "):
		return p.ValidateBearerToken(ctx, strings.TrimPrefix(h, "Bearer "))
	case strings.HasPrefix(h, "ApiKey "):
		return p.ValidateAPIKey(ctx, strings.TrimPrefix(h, "ApiKey "))
	default:
		return nil, fmt.Errorf("missing or unsupported authorization scheme")
	}
}
