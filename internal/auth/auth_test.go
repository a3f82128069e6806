package auth

import (
	"context"
	"testing"
	"time"
)

type memKeyStore struct {
	records map[string]*APIKeyRecord
}

func (m *memKeyStore) Lookup(ctx context.Context, prefix string) (*APIKeyRecord, error) {
	return m.records[prefix], nil
}

func TestBearerTokenRoundTrip(t *testing.T) {
	p := NewProvider("test-secret", "pepper", &memKeyStore{})
	token, err := p.IssueBearerToken("user-1", "Ada", time.Hour)
	if err != nil {
		t.Fatalf("IssueBearerToken: %v", err)
	}
	principal, err := p.ValidateBearerToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateBearerToken: %v", err)
	}
	if principal.UserID != "user-1" || principal.IsAPIKey {
		t.Fatalf("ValidateBearerToken: want user-1 non-api-key principal, got %+v", principal)
	}
}

func TestBearerTokenExpired(t *testing.T) {
	p := NewProvider("test-secret", "pepper", &memKeyStore{})
	token, err := p.IssueBearerToken("user-1", "Ada", -time.Minute)
	if err != nil {
		t.Fatalf("IssueBearerToken: %v", err)
	}
	if _, err := p.ValidateBearerToken(context.Background(), token); err == nil {
		t.Fatalf("ValidateBearerToken: want error for expired token")
	}
}

func TestBearerTokenWrongSecretRejected(t *testing.T) {
	p1 := NewProvider("secret-a", "pepper", &memKeyStore{})
	p2 := NewProvider("secret-b", "pepper", &memKeyStore{})
	token, _ := p1.IssueBearerToken("user-1", "Ada", time.Hour)
	if _, err := p2.ValidateBearerToken(context.Background(), token); err == nil {
		t.Fatalf("ValidateBearerToken: want error for token signed with a different secret")
	}
}

func TestValidateAPIKeyAcceptsKnownKey(t *testing.T) {
	store := &memKeyStore{records: map[string]*APIKeyRecord{
		"k1": {Prefix: "k1", HashedKey: hashAPIKey("k1", "supersecret", "pepper")},
	}}
	p := NewProvider("test-secret", "pepper", store)
	principal, err := p.ValidateAPIKey(context.Background(), "k1_supersecret")
	if err != nil {
		t.Fatalf("ValidateAPIKey: %v", err)
	}
	if !principal.IsAPIKey || principal.UserID != "" {
		t.Fatalf("ValidateAPIKey: want api-key principal with no user id, got %+v", principal)
	}
}

func TestValidateAPIKeyRejectsWrongSecret(t *testing.T) {
	store := &memKeyStore{records: map[string]*APIKeyRecord{
		"k1": {Prefix: "k1", HashedKey: hashAPIKey("k1", "supersecret", "pepper")},
	}}
	p := NewProvider("test-secret", "pepper", store)
	if _, err := p.ValidateAPIKey(context.Background(), "k1_wrongsecret"); err == nil {
		t.Fatalf("ValidateAPIKey: want error for wrong secret")
	}
}

func TestValidateAPIKeyRejectsRevoked(t *testing.T) {
	store := &memKeyStore{records: map[string]*APIKeyRecord{
		"k1": {Prefix: "k1", HashedKey: hashAPIKey("k1", "supersecret", "pepper"), Revoked: true},
	}}
	p := NewProvider("test-secret", "pepper", store)
	if _, err := p.ValidateAPIKey(context.Background(), "k1_supersecret"); err == nil {
		t.Fatalf("ValidateAPIKey: want error for revoked key")
	}
}

func TestValidateAPIKeyMalformedRejected(t *testing.T) {
	p := NewProvider("test-secret", "pepper", &memKeyStore{})
	if _, err := p.ValidateAPIKey(context.Background(), "no-underscore"); err == nil {
		t.Fatalf("ValidateAPIKey: want error for malformed key")
	}
}

func TestAuthenticateDispatchesByScheme(t *testing.T) {
	store := &memKeyStore{records: map[string]*APIKeyRecord{
		"k1": {Prefix: "k1", HashedKey: hashAPIKey("k1", "supersecret", "pepper")},
	}}
	p := NewProvider("test-secret", "pepper", store)
	token, _ := p.IssueBearerToken("user-1", "Ada", time.Hour)

	if _, err := p.Authenticate(context.Background(), "Bearer "+token); err != nil {
		t.Fatalf("Authenticate bearer: %v", err)
	}
	if _, err := p.Authenticate(context.Background(), "ApiKey k1_supersecret"); err != nil {
		t.Fatalf("Authenticate api key: %v", err)
	}
	if _, err := p.Authenticate(context.Background(), "Basic foo"); err == nil {
		t.Fatalf("Authenticate: want error for unsupported scheme")
	}
}
