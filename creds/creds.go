package creds

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSecret is returned when a service token signer has no signing secret.
var ErrNoSecret = errors.New("creds: signing secret is required")

// Credentials applies an authentication credential to an outbound request.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Apply must not mutate the request on failure.
type Credentials interface {
	Apply(req *http.Request) error
}

// APIKey is a static API key sent in the X-API-Key header.
type APIKey struct {
	// Key is the raw API key value.
	Key string

	// HeaderName overrides the header the key is sent in.
	// Default: "X-API-Key"
	HeaderName string
}

// Apply sets the API key header.
func (a APIKey) Apply(req *http.Request) error {
	header := a.HeaderName
	if header == "" {
		header = "X-API-Key"
	}
	req.Header.Set(header, a.Key)
	return nil
}

// BearerToken is a static token sent as an Authorization bearer credential.
type BearerToken struct {
	Token string
}

// Apply sets the Authorization header.
func (b BearerToken) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// ServiceTokenConfig configures a service token signer.
type ServiceTokenConfig struct {
	// Secret is the HMAC signing secret shared with the store gateway.
	Secret []byte

	// Subject identifies the calling service.
	// Default: "vectorgate"
	Subject string

	// Audience is the expected token audience, typically the store
	// endpoint host.
	Audience string

	// TTL is how long each minted token stays valid. Tokens are reused
	// until 20% of the TTL remains, then re-minted.
	// Default: 5 minutes
	TTL time.Duration
}

// ServiceToken mints short-lived HS256 tokens and sends them as bearer
// credentials. Tokens are cached and refreshed before expiry so signing
// stays off the per-request hot path.
type ServiceToken struct {
	config ServiceTokenConfig

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewServiceToken creates a new service token signer.
func NewServiceToken(config ServiceTokenConfig) (*ServiceToken, error) {
	if len(config.Secret) == 0 {
		return nil, ErrNoSecret
	}
	if config.Subject == "" {
		config.Subject = "vectorgate"
	}
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	return &ServiceToken{config: config}, nil
}

// Apply sets a freshly signed (or cached, still-valid) bearer token.
func (s *ServiceToken) Apply(req *http.Request) error {
	token, err := s.current()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (s *ServiceToken) current() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Refresh once less than 20% of the TTL remains.
	if s.token != "" && time.Until(s.expires) > s.config.TTL/5 {
		return s.token, nil
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   s.config.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
	}
	if s.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
	if err != nil {
		return "", err
	}

	s.token = signed
	s.expires = now.Add(s.config.TTL)
	return signed, nil
}
