package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ammachi-ai/backend/internal/identity"
	"github.com/ammachi-ai/backend/internal/middleware"
	"github.com/ammachi-ai/backend/internal/service"
	"github.com/ammachi-ai/backend/internal/store"
)

type RegisterRequest struct {
	Email        string   `json:"email" binding:"required,email"`
	Password     string   `json:"password" binding:"required,min=6"`
	DisplayName  string   `json:"displayName" binding:"required"`
	Language     string   `json:"language"`
	District     string   `json:"district"`
	State        string   `json:"state"`
	PhoneNumber  string   `json:"phoneNumber"`
	PrimaryCrops []string `json:"primaryCrops"`
	Experience   int      `json:"experience"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthHandler exposes the reconciler over HTTP.
type AuthHandler struct {
	reconciler *service.Reconciler
}

func NewAuthHandler(reconciler *service.Reconciler) *AuthHandler {
	return &AuthHandler{reconciler: reconciler}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/verify-token", h.VerifyToken)
		auth.GET("/profile/:userId", h.GetProfile)
		auth.PUT("/profile/:userId", h.UpdateProfile)
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "errorCode": "VALIDATION"})
		return
	}

	user, token, err := h.reconciler.Register(c.Request.Context(), service.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		DisplayName:  req.DisplayName,
		Language:     req.Language,
		District:     req.District,
		State:        req.State,
		PhoneNumber:  req.PhoneNumber,
		PrimaryCrops: req.PrimaryCrops,
		Experience:   req.Experience,
	})
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required", "errorCode": "VALIDATION"})
		return
	}

	user, token, err := h.reconciler.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

func (h *AuthHandler) VerifyToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" || len(header) < 8 || header[:7] != "Bearer " {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     "missing or malformed authorization header",
			"errorCode": "MISSING_TOKEN",
		})
		return
	}

	user, err := h.reconciler.VerifyToken(c.Request.Context(), header[7:])
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, err := h.reconciler.GetProfile(c.Request.Context(), c.Param("userId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found", "errorCode": "NOT_FOUND"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile", "errorCode": "INTERNAL"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "errorCode": "VALIDATION"})
		return
	}

	user, err := h.reconciler.UpdateProfile(c.Request.Context(), c.Param("userId"), updates)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found", "errorCode": "NOT_FOUND"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile", "errorCode": "INTERNAL"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// writeAuthError maps reconciler errors onto the stable HTTP contract. The
// NO_SUCH_ACCOUNT / INVALID_CREDENTIAL split is load-bearing for the SPA.
func (h *AuthHandler) writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrProviderDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "Authentication service unavailable",
			"errorCode": "AUTH_UNAVAILABLE",
		})
	case errors.Is(err, service.ErrDuplicateUser):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"errorCode": "DUPLICATE_USER",
		})
	case errors.Is(err, identity.ErrUserNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     identity.ErrUserNotFound.Error(),
			"errorCode": "NO_SUCH_ACCOUNT",
		})
	case errors.Is(err, identity.ErrInvalidCredential):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     identity.ErrInvalidCredential.Error(),
			"errorCode": "INVALID_CREDENTIAL",
		})
	case errors.Is(err, identity.ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":     identity.ErrTooManyAttempts.Error(),
			"errorCode": "TOO_MANY_ATTEMPTS",
		})
	case errors.Is(err, identity.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     identity.ErrWeakPassword.Error(),
			"errorCode": "WEAK_PASSWORD",
		})
	case errors.Is(err, identity.ErrInvalidToken):
		c.JSON(http.StatusForbidden, gin.H{
			"error":     "Invalid or expired token",
			"errorCode": "INVALID_TOKEN",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Something went wrong, please try again",
			"errorCode": "INTERNAL",
		})
	}
}

// currentUserKey returns the lookup key for the authenticated user, if any.
func currentUserKey(c *gin.Context) (string, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return "", false
	}
	return user.Email, true
}
