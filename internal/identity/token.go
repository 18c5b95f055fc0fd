package identity

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// KeySource supplies the provider's token-signing public keys by key id.
type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// TokenVerifier validates provider-issued RS256 ID tokens locally, the same
// checks the provider's admin SDK performs: signature, expiry, and audience.
type TokenVerifier struct {
	projectID string
	keys      KeySource
}

func NewTokenVerifier(projectID string, keys KeySource) *TokenVerifier {
	return &TokenVerifier{projectID: projectID, keys: keys}
}

type tokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

// Verify decodes and validates a bearer token. Every failure collapses to
// ErrInvalidToken; callers must treat it as fatal, never as anonymous.
func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		return v.keys.Key(ctx, kid)
	}, jwt.WithAudience(v.projectID))
	if err != nil {
		log.Printf("[Identity] token verification failed: %v", err)
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" || claims.Email == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{
		ExternalID:    claims.Subject,
		Email:         claims.Email,
		DisplayName:   claims.Name,
		EmailVerified: claims.EmailVerified,
	}, nil
}

// CertKeySource fetches the provider's X.509 signing certificates and caches
// them until the Cache-Control max-age expires, refetching on unknown kids.
type CertKeySource struct {
	certsURL string
	client   *http.Client

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

func NewCertKeySource(certsURL string) *CertKeySource {
	return &CertKeySource{
		certsURL: certsURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		keys:     make(map[string]*rsa.PublicKey),
	}
}

func (s *CertKeySource) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.keys[kid]; ok && time.Now().Before(s.expires) {
		return key, nil
	}
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	key, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("no signing certificate for kid %q", kid)
	}
	return key, nil
}

// refresh replaces the cached key set. Caller must hold the lock.
func (s *CertKeySource) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", s.certsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create certs request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch signing certificates: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("certs endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read certs response: %w", err)
	}

	var certs map[string]string
	if err := json.Unmarshal(body, &certs); err != nil {
		return fmt.Errorf("failed to decode certs response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pemCert := range certs {
		key, err := parseCert(pemCert)
		if err != nil {
			log.Printf("[Identity] skipping unparseable certificate %s: %v", kid, err)
			continue
		}
		keys[kid] = key
	}
	if len(keys) == 0 {
		return fmt.Errorf("certs endpoint returned no usable keys")
	}

	s.keys = keys
	s.expires = time.Now().Add(cacheMaxAge(resp.Header.Get("Cache-Control")))
	return nil
}

func parseCert(pemCert string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemCert))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate does not hold an RSA key")
	}
	return key, nil
}

// cacheMaxAge extracts max-age from a Cache-Control header, defaulting to an
// hour when absent.
func cacheMaxAge(header string) time.Duration {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "max-age=") {
			if secs, err := strconv.Atoi(strings.TrimPrefix(part, "max-age=")); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return time.Hour
}
