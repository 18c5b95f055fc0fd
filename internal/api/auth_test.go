package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammachi-ai/backend/internal/identity"
	"github.com/ammachi-ai/backend/internal/service"
	"github.com/ammachi-ai/backend/internal/store"
)

// stubProvider is a map-backed auth provider for handler tests.
type stubProvider struct {
	accounts map[string]stubAccount
	nextID   int
}

type stubAccount struct {
	id       string
	password string
}

func newStubProvider() *stubProvider {
	return &stubProvider{accounts: map[string]stubAccount{}}
}

func (p *stubProvider) SignUp(_ context.Context, email, password, _ string) (*identity.Identity, string, error) {
	if _, exists := p.accounts[email]; exists {
		return nil, "", identity.ErrEmailExists
	}
	p.nextID++
	acct := stubAccount{id: fmt.Sprintf("ext-%d", p.nextID), password: password}
	p.accounts[email] = acct
	return &identity.Identity{ExternalID: acct.id, Email: email}, "token-" + acct.id, nil
}

func (p *stubProvider) SignIn(_ context.Context, email, password string) (*identity.Identity, string, error) {
	acct, ok := p.accounts[email]
	if !ok || acct.password != password {
		return nil, "", identity.ErrInvalidCredential
	}
	return &identity.Identity{ExternalID: acct.id, Email: email}, "token-" + acct.id, nil
}

func (p *stubProvider) LookupByEmail(_ context.Context, email string) (*identity.Identity, error) {
	acct, ok := p.accounts[email]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return &identity.Identity{ExternalID: acct.id, Email: email}, nil
}

func (p *stubProvider) Delete(_ context.Context, externalID string) error {
	for email, acct := range p.accounts {
		if acct.id == externalID {
			delete(p.accounts, email)
		}
	}
	return nil
}

func (p *stubProvider) VerifyToken(_ context.Context, token string) (*identity.Identity, error) {
	for email, acct := range p.accounts {
		if token == "token-"+acct.id {
			return &identity.Identity{ExternalID: acct.id, Email: email}, nil
		}
	}
	return nil, identity.ErrInvalidToken
}

func setupAuthRouter(provider identity.Provider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewAuthHandler(service.NewReconciler(store.NewMemoryStore(), provider))
	handler.RegisterRoutes(router.Group(""))
	return router
}

func doJSON(router *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	var body []byte
	if payload != nil {
		body, _ = json.Marshal(payload)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func registerBody(email string) map[string]interface{} {
	return map[string]interface{}{
		"email":       email,
		"password":    "secret123",
		"displayName": "Test Farmer",
		"district":    "Ernakulam",
		"state":       "Kerala",
	}
}

func TestRegisterEndpoint(t *testing.T) {
	router := setupAuthRouter(newStubProvider())

	w := doJSON(router, "POST", "/auth/register", registerBody("farmer@example.com"))
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decodeBody(t, w)
	assert.NotEmpty(t, resp["token"])
	user := resp["user"].(map[string]interface{})
	assert.Equal(t, "farmer@example.com", user["email"])
	assert.Equal(t, "farmer", user["role"])
}

func TestRegisterRejectsInvalidBody(t *testing.T) {
	router := setupAuthRouter(newStubProvider())

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"bad email", map[string]interface{}{"email": "not-an-email", "password": "secret123", "displayName": "X"}},
		{"short password", map[string]interface{}{"email": "a@example.com", "password": "123", "displayName": "X"}},
		{"missing display name", map[string]interface{}{"email": "a@example.com", "password": "secret123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, "POST", "/auth/register", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VALIDATION", decodeBody(t, w)["errorCode"])
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	router := setupAuthRouter(newStubProvider())

	w := doJSON(router, "POST", "/auth/register", registerBody("dup@example.com"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, "POST", "/auth/register", registerBody("dup@example.com"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "DUPLICATE_USER", decodeBody(t, w)["errorCode"])
}

func TestLoginEndpoint(t *testing.T) {
	router := setupAuthRouter(newStubProvider())
	doJSON(router, "POST", "/auth/register", registerBody("login@example.com"))

	w := doJSON(router, "POST", "/auth/login", map[string]interface{}{
		"email": "login@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.NotEmpty(t, resp["token"])
}

func TestLoginDistinguishesUnknownFromWrongPassword(t *testing.T) {
	router := setupAuthRouter(newStubProvider())
	doJSON(router, "POST", "/auth/register", registerBody("known@example.com"))

	w := doJSON(router, "POST", "/auth/login", map[string]interface{}{
		"email": "nobody@example.com", "password": "whatever1",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "NO_SUCH_ACCOUNT", decodeBody(t, w)["errorCode"])

	w = doJSON(router, "POST", "/auth/login", map[string]interface{}{
		"email": "known@example.com", "password": "wrongpass",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIAL", decodeBody(t, w)["errorCode"])
}

func TestLoginWithProviderDisabled(t *testing.T) {
	router := setupAuthRouter(identity.Disabled{})

	w := doJSON(router, "POST", "/auth/login", map[string]interface{}{
		"email": "a@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "Authentication service unavailable", resp["error"])
	assert.Equal(t, "AUTH_UNAVAILABLE", resp["errorCode"])
}

func TestVerifyTokenEndpoint(t *testing.T) {
	provider := newStubProvider()
	router := setupAuthRouter(provider)
	w := doJSON(router, "POST", "/auth/register", registerBody("verify@example.com"))
	token := decodeBody(t, w)["token"].(string)

	// No header at all.
	req := httptest.NewRequest("POST", "/auth/verify-token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Garbage token is forbidden, never anonymous.
	req = httptest.NewRequest("POST", "/auth/verify-token", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", decodeBody(t, rec)["errorCode"])

	req = httptest.NewRequest("POST", "/auth/verify-token", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeBody(t, rec)["user"].(map[string]interface{})
	assert.Equal(t, "verify@example.com", user["email"])
}

func TestGetProfileByEmailAndExternalID(t *testing.T) {
	router := setupAuthRouter(newStubProvider())
	doJSON(router, "POST", "/auth/register", registerBody("profile@example.com"))

	w := doJSON(router, "GET", "/auth/profile/profile@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	user := decodeBody(t, w)["user"].(map[string]interface{})
	extID := user["externalId"].(string)

	w = doJSON(router, "GET", "/auth/profile/"+extID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, "GET", "/auth/profile/ghost@example.com", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeBody(t, w)["errorCode"])
}

func TestUpdateProfileWhitelist(t *testing.T) {
	router := setupAuthRouter(newStubProvider())
	doJSON(router, "POST", "/auth/register", registerBody("update@example.com"))

	w := doJSON(router, "PUT", "/auth/profile/update@example.com", map[string]interface{}{
		"displayName":  "Renamed Farmer",
		"district":     "Thrissur",
		"primaryCrops": []string{"Banana", "Coconut"},
		"experience":   12,
		// Attempted privilege escalation must be silently dropped.
		"role":    "admin",
		"isAdmin": true,
		"email":   "hijack@example.com",
	})
	require.Equal(t, http.StatusOK, w.Code)

	user := decodeBody(t, w)["user"].(map[string]interface{})
	assert.Equal(t, "Renamed Farmer", user["displayName"])
	assert.Equal(t, "Thrissur", user["district"])
	assert.Equal(t, float64(12), user["experience"])
	assert.Equal(t, "farmer", user["role"])
	assert.Equal(t, "update@example.com", user["email"])
}

func TestUpdateProfileUnknownUser(t *testing.T) {
	router := setupAuthRouter(newStubProvider())

	w := doJSON(router, "PUT", "/auth/profile/ghost@example.com", map[string]interface{}{
		"district": "Kollam",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
