package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// HTTPProvider talks to a Firebase Identity Toolkit compatible REST API.
type HTTPProvider struct {
	apiKey   string
	baseURL  string
	client   *http.Client
	verifier *TokenVerifier
}

// NewHTTPProvider creates a provider client. baseURL is the Identity Toolkit
// v1 root, e.g. https://identitytoolkit.googleapis.com/v1.
func NewHTTPProvider(apiKey, baseURL string, verifier *TokenVerifier) *HTTPProvider {
	return &HTTPProvider{
		apiKey:   apiKey,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		verifier: verifier,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type accountResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
	Users       []struct {
		LocalID       string `json:"localId"`
		Email         string `json:"email"`
		DisplayName   string `json:"displayName"`
		EmailVerified bool   `json:"emailVerified"`
	} `json:"users"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *HTTPProvider) SignUp(ctx context.Context, email, password, displayName string) (*Identity, string, error) {
	resp, err := p.post(ctx, "accounts:signUp", map[string]interface{}{
		"email":             email,
		"password":          password,
		"displayName":       displayName,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, "", err
	}
	return &Identity{
		ExternalID:  resp.LocalID,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
	}, resp.IDToken, nil
}

func (p *HTTPProvider) SignIn(ctx context.Context, email, password string) (*Identity, string, error) {
	resp, err := p.post(ctx, "accounts:signInWithPassword", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, "", err
	}
	return &Identity{
		ExternalID:  resp.LocalID,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
	}, resp.IDToken, nil
}

func (p *HTTPProvider) LookupByEmail(ctx context.Context, email string) (*Identity, error) {
	resp, err := p.post(ctx, "accounts:lookup", map[string]interface{}{
		"email": []string{email},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, ErrUserNotFound
	}
	u := resp.Users[0]
	return &Identity{
		ExternalID:    u.LocalID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		EmailVerified: u.EmailVerified,
	}, nil
}

func (p *HTTPProvider) Delete(ctx context.Context, externalID string) error {
	_, err := p.post(ctx, "accounts:delete", map[string]interface{}{
		"localId": externalID,
	})
	return err
}

func (p *HTTPProvider) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	if p.verifier == nil {
		return nil, ErrProviderDisabled
	}
	return p.verifier.Verify(ctx, token)
}

func (p *HTTPProvider) post(ctx context.Context, endpoint string, payload interface{}) (*accountResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s?key=%s", p.baseURL, endpoint, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth provider request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read auth provider response: %w", err)
	}

	var parsed accountResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode auth provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, mapProviderError(parsed.Error.Message)
		}
		return nil, fmt.Errorf("auth provider returned status %d", resp.StatusCode)
	}
	return &parsed, nil
}

// mapProviderError translates Identity Toolkit error codes into the sentinel
// errors the reconciler distinguishes. Unknown codes are logged and wrapped.
func mapProviderError(code string) error {
	switch {
	case strings.HasPrefix(code, "EMAIL_EXISTS"):
		return ErrEmailExists
	case strings.HasPrefix(code, "EMAIL_NOT_FOUND"):
		return ErrUserNotFound
	case strings.HasPrefix(code, "INVALID_PASSWORD"),
		strings.HasPrefix(code, "INVALID_LOGIN_CREDENTIALS"):
		return ErrInvalidCredential
	case strings.HasPrefix(code, "TOO_MANY_ATTEMPTS_TRY_LATER"):
		return ErrTooManyAttempts
	case strings.HasPrefix(code, "WEAK_PASSWORD"):
		return ErrWeakPassword
	case strings.HasPrefix(code, "INVALID_ID_TOKEN"),
		strings.HasPrefix(code, "TOKEN_EXPIRED"):
		return ErrInvalidToken
	default:
		log.Printf("[Identity] unrecognized provider error code: %s", code)
		return fmt.Errorf("auth provider error: %s", code)
	}
}
