package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"listing-composer/internal/repository"
)

// PhotoReader reads photos stored in GridFS.
type PhotoReader interface {
	DownloadPhoto(ctx context.Context, photoID string) ([]byte, string, error)
}

type PhotoHandler struct {
	Repo PhotoReader
}

func (h *PhotoHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/photos/:id", h.DownloadPhoto)
}

// GET /api/photos/:id
func (h *PhotoHandler) DownloadPhoto(c *gin.Context) {
	data, contentType, err := h.Repo.DownloadPhoto(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrObjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "download failed"})
		return
	}

	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, contentType, data)
}
