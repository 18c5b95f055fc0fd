package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ammachi-ai/backend/internal/service"
)

// maxUploadSize bounds disease-scan uploads (10 MB).
const maxUploadSize = 10 << 20

// DiseaseHandler accepts a plant photo, forwards it for health assessment,
// and records the scan against the authenticated user when one is present.
type DiseaseHandler struct {
	disease    *service.DiseaseService
	reconciler *service.Reconciler
}

func NewDiseaseHandler(disease *service.DiseaseService, reconciler *service.Reconciler) *DiseaseHandler {
	return &DiseaseHandler{disease: disease, reconciler: reconciler}
}

func (h *DiseaseHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/disease/detect", h.Detect)
}

func (h *DiseaseHandler) Detect(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "An image file is required"})
		return
	}
	if file.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Image is too large (max 10MB)"})
		return
	}

	// The upload lives in the temp dir only for the duration of the
	// upstream call; the service removes it on every path.
	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("scan-%s%s", uuid.New().String(), filepath.Ext(file.Filename)))
	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to store uploaded image"})
		return
	}

	assessment, err := h.disease.DetectFromFile(c.Request.Context(), tmpPath)
	if err != nil {
		status := diseaseErrorStatus(err)
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	if key, ok := currentUserKey(c); ok {
		h.reconciler.RecordScan(c.Request.Context(), key)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"is_healthy": assessment.IsHealthy,
		"result":     assessment.Result,
	})
}

func diseaseErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrDiseaseUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrBadImage):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrBadAPIKey):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrQuotaExceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrUpstreamTimeout):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
