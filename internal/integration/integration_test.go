package integration

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
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ammachi-ai/backend/config"
	"github.com/ammachi-ai/backend/internal/identity"
	"github.com/ammachi-ai/backend/internal/models"
	"github.com/ammachi-ai/backend/internal/router"
	"github.com/ammachi-ai/backend/internal/service"
	"github.com/ammachi-ai/backend/internal/store"
)

// memProvider backs the auth provider with a map so the whole HTTP stack runs
// without network access.
type memProvider struct {
	accounts map[string]memAccount
	nextID   int
}

type memAccount struct {
	id       string
	password string
}

func newMemProvider() *memProvider {
	return &memProvider{accounts: map[string]memAccount{}}
}

func (p *memProvider) SignUp(_ context.Context, email, password, _ string) (*identity.Identity, string, error) {
	if _, exists := p.accounts[email]; exists {
		return nil, "", identity.ErrEmailExists
	}
	p.nextID++
	acct := memAccount{id: fmt.Sprintf("uid-%d", p.nextID), password: password}
	p.accounts[email] = acct
	return &identity.Identity{ExternalID: acct.id, Email: email}, "token-" + acct.id, nil
}

func (p *memProvider) SignIn(_ context.Context, email, password string) (*identity.Identity, string, error) {
	acct, ok := p.accounts[email]
	if !ok || acct.password != password {
		return nil, "", identity.ErrInvalidCredential
	}
	return &identity.Identity{ExternalID: acct.id, Email: email}, "token-" + acct.id, nil
}

func (p *memProvider) LookupByEmail(_ context.Context, email string) (*identity.Identity, error) {
	acct, ok := p.accounts[email]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return &identity.Identity{ExternalID: acct.id, Email: email}, nil
}

func (p *memProvider) Delete(_ context.Context, externalID string) error {
	for email, acct := range p.accounts {
		if acct.id == externalID {
			delete(p.accounts, email)
		}
	}
	return nil
}

func (p *memProvider) VerifyToken(_ context.Context, token string) (*identity.Identity, error) {
	for email, acct := range p.accounts {
		if token == "token-"+acct.id {
			return &identity.Identity{ExternalID: acct.id, Email: email}, nil
		}
	}
	return nil, identity.ErrInvalidToken
}

// setupApp assembles the full application against sqlite and in-memory fakes,
// mirroring the production wiring in internal/server.
func setupApp(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	cfg := &config.Config{AllowedOrigins: []string{"http://localhost:5173"}}
	reconciler := service.NewReconciler(store.NewPostgresStore(db), newMemProvider())

	app := router.Setup(
		cfg,
		reconciler,
		service.NewMarketService("", ""),
		service.NewWeatherService("", ""),
		service.NewDiseaseService("", ""),
		service.NewChatService("", "", nil),
		nil,
	)
	return app, db
}

func postJSON(app *gin.Engine, path string, payload map[string]interface{}, header http.Header) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	app.ServeHTTP(w, req)
	return w
}

func get(app *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func body(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestFullAuthFlow(t *testing.T) {
	app, _ := setupApp(t)

	// Register.
	w := postJSON(app, "/auth/register", map[string]interface{}{
		"email":       "flow@example.com",
		"password":    "secret123",
		"displayName": "Flow Farmer",
		"district":    "Palakkad",
		"state":       "Kerala",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token := body(t, w)["token"].(string)
	require.NotEmpty(t, token)

	// Login with the same credentials.
	w = postJSON(app, "/auth/login", map[string]interface{}{
		"email": "flow@example.com", "password": "secret123",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	user := body(t, w)["user"].(map[string]interface{})
	assert.Equal(t, "Palakkad", user["district"])

	// Verify the token the provider issued.
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+token)
	w = postJSON(app, "/auth/verify-token", nil, hdr)
	require.Equal(t, http.StatusOK, w.Code)
	verified := body(t, w)["user"].(map[string]interface{})
	assert.Equal(t, user["id"], verified["id"], "verify must resolve the registered record, not create a second one")
}

func TestTokenHolderWithoutRegistrationGetsRecord(t *testing.T) {
	app, db := setupApp(t)

	// Register once to mint a token, then wipe the application record to
	// simulate a token holder the application has never seen.
	w := postJSON(app, "/auth/register", map[string]interface{}{
		"email":       "mobile@example.com",
		"password":    "secret123",
		"displayName": "Mobile First",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	token := body(t, w)["token"].(string)
	oldID := body(t, w)["user"].(map[string]interface{})["id"].(string)
	require.NoError(t, db.Unscoped().Where("email = ?", "mobile@example.com").Delete(&models.User{}).Error)

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+token)
	w = postJSON(app, "/auth/verify-token", nil, hdr)
	require.Equal(t, http.StatusOK, w.Code)

	user := body(t, w)["user"].(map[string]interface{})
	assert.Equal(t, "mobile@example.com", user["email"])
	assert.NotEqual(t, oldID, user["id"], "a fresh record should be created on first sight")
	assert.Equal(t, "farmer", user["role"])
}

func TestProfileLifecycle(t *testing.T) {
	app, _ := setupApp(t)

	w := postJSON(app, "/auth/register", map[string]interface{}{
		"email":       "lifecycle@example.com",
		"password":    "secret123",
		"displayName": "Before",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	// Update through the whitelist.
	payload, _ := json.Marshal(map[string]interface{}{
		"displayName": "After",
		"farms": []map[string]interface{}{
			{"name": "River plot", "acres": 1.5, "location": "Palakkad", "crops": []string{"Rice"}},
		},
		"role": "admin",
	})
	req := httptest.NewRequest("PUT", "/auth/profile/lifecycle@example.com", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	w = get(app, "/auth/profile/lifecycle@example.com")
	require.Equal(t, http.StatusOK, w.Code)
	user := body(t, w)["user"].(map[string]interface{})
	assert.Equal(t, "After", user["displayName"])
	assert.Equal(t, "farmer", user["role"])
	farms := user["farms"].([]interface{})
	require.Len(t, farms, 1)
	assert.Equal(t, "River plot", farms[0].(map[string]interface{})["name"])
}

func TestUnconfiguredFeaturesStillRespond(t *testing.T) {
	app, _ := setupApp(t)

	w := get(app, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body(t, w)["status"])

	w = get(app, "/market/prices")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body(t, w)["demo"])

	w = get(app, "/weather/current?lat=10.52&lon=76.21")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get("X-Demo-Data"))

	w = postJSON(app, "/chatbot/chat", map[string]interface{}{
		"message": "When should I plant rice?",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fallback", body(t, w)["source"])
}

func TestCORSPreflightAllowsConfiguredOrigin(t *testing.T) {
	app, _ := setupApp(t)

	req := httptest.NewRequest("OPTIONS", "/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	app.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
