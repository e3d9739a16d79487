package drive

import (
	"errors"
	"net/http"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service  *Service
	source   *ForecastSource
	folderID string
}

func NewHandler(service *Service, source *ForecastSource, folderID string) *Handler {
	return &Handler{
		service:  service,
		source:   source,
		folderID: folderID,
	}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/drive/files", h.ListFiles)
	router.POST("/drive/import", h.ImportFile)
}

func (h *Handler) ListFiles(c *gin.Context) {
	folderID := c.DefaultQuery("folder_id", h.folderID)

	if folderPath := c.Query("path"); folderPath != "" {
		id, err := h.service.FindFolderByPath(c.Request.Context(), folderPath)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "folder not found", "details": err.Error()})
			return
		}
		folderID = id
	}

	files, err := h.source.ListForecastFiles(c.Request.Context(), folderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list drive files", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, files)
}

func (h *Handler) ImportFile(c *gin.Context) {
	fileID := c.Query("file_id")
	if fileID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_id parameter is required"})
		return
	}

	result, err := h.source.ImportFile(c.Request.Context(), fileID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidUpload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload", "details": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
