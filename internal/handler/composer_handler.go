package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"listing-composer/internal/logger"
	"listing-composer/internal/middleware"
	"listing-composer/internal/model"
	"listing-composer/internal/service"
)

// ComposerHandler exposes draft sessions to the signed-in user.
type ComposerHandler struct {
	Composer *service.Composer
}

// RegisterRoutes expects rg to be behind JWTAuthMiddleware.
func (h *ComposerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/drafts", h.NewDraft)
	rg.GET("/drafts/:id", h.GetDraft)
	rg.DELETE("/drafts/:id", h.DiscardDraft)
	rg.POST("/drafts/:id/images", h.UploadImages)
	rg.DELETE("/drafts/:id/images/:index", h.RemoveImage)
	rg.PATCH("/drafts/:id/fields", h.UpdateField)
	rg.PUT("/drafts/:id/type", h.SetPropertyType)
	rg.POST("/drafts/:id/flags/:flag", h.ToggleFlag)
	rg.POST("/drafts/:id/submit", h.Submit)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrDraftNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrOperationInProgress), errors.Is(err, service.ErrUploadInProgress),
		errors.Is(err, service.ErrDraftSubmitted):
		return http.StatusConflict
	case errors.Is(err, service.ErrValidationRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrUploadTransferFailed), errors.Is(err, service.ErrTransportFailed):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrTooManyImages),
		errors.Is(err, service.ErrIndexOutOfRange),
		errors.Is(err, service.ErrUnknownField),
		errors.Is(err, service.ErrFieldType),
		errors.Is(err, service.ErrNonFiniteNumber),
		errors.Is(err, service.ErrInvalidPropertyType),
		errors.Is(err, service.ErrUnknownFlag):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the draft view when there is one.
func respondError(c *gin.Context, err error, message string, view *service.SessionView) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("Draft operation failed", err, logger.Fields{"path": c.FullPath()})
		message = "internal error"
	} else if message == "" {
		message = err.Error()
	}
	body := gin.H{"error": message}
	if view != nil && view.ID != "" {
		body["draft"] = view
	}
	c.JSON(status, body)
}

func (h *ComposerHandler) respond(c *gin.Context, view service.SessionView, err error) {
	if err != nil {
		respondError(c, err, "", &view)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/drafts
func (h *ComposerHandler) NewDraft(c *gin.Context) {
	view, err := h.Composer.NewDraft(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err, "", nil)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GET /api/drafts/:id
func (h *ComposerHandler) GetDraft(c *gin.Context) {
	view, err := h.Composer.Get(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	h.respond(c, view, err)
}

// DELETE /api/drafts/:id
func (h *ComposerHandler) DiscardDraft(c *gin.Context) {
	if err := h.Composer.Discard(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		respondError(c, err, "", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// formFile adapts an uploaded multipart part to service.File.
type formFile struct {
	h *multipart.FileHeader
}

func (f formFile) Name() string                 { return f.h.Filename }
func (f formFile) Size() int64                  { return f.h.Size }
func (f formFile) ContentType() string          { return f.h.Header.Get("Content-Type") }
func (f formFile) Open() (io.ReadCloser, error) { return f.h.Open() }

// POST /api/drafts/:id/images (multipart, field "images")
func (h *ComposerHandler) UploadImages(c *gin.Context) {
	var headers []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		headers = form.File["images"]
	}
	files := make([]service.File, len(headers))
	for i, fh := range headers {
		files[i] = formFile{h: fh}
	}

	view, err := h.Composer.UploadImages(c.Request.Context(), c.Param("id"), middleware.UserID(c), files)
	if err != nil {
		respondError(c, err, view.ImageUploadError, &view)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DELETE /api/drafts/:id/images/:index
func (h *ComposerHandler) RemoveImage(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return
	}
	view, err := h.Composer.RemoveImage(c.Request.Context(), c.Param("id"), middleware.UserID(c), index)
	h.respond(c, view, err)
}

type updateFieldRequest struct {
	Field string          `json:"field" binding:"required"`
	Value json.RawMessage `json:"value" binding:"required"`
}

// PATCH /api/drafts/:id/fields
func (h *ComposerHandler) UpdateField(c *gin.Context) {
	var req updateFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	update, err := service.ParseFieldUpdate(req.Field, req.Value)
	if err != nil {
		respondError(c, err, "", nil)
		return
	}
	view, err := h.Composer.UpdateField(c.Request.Context(), c.Param("id"), middleware.UserID(c), update)
	h.respond(c, view, err)
}

type setTypeRequest struct {
	Type string `json:"type" binding:"required"`
}

// PUT /api/drafts/:id/type
func (h *ComposerHandler) SetPropertyType(c *gin.Context) {
	var req setTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	view, err := h.Composer.SetPropertyType(c.Request.Context(), c.Param("id"), middleware.UserID(c), model.PropertyType(req.Type))
	h.respond(c, view, err)
}

// POST /api/drafts/:id/flags/:flag
func (h *ComposerHandler) ToggleFlag(c *gin.Context) {
	view, err := h.Composer.ToggleFlag(c.Request.Context(), c.Param("id"), middleware.UserID(c), model.Flag(c.Param("flag")))
	h.respond(c, view, err)
}

// POST /api/drafts/:id/submit
func (h *ComposerHandler) Submit(c *gin.Context) {
	result, view, err := h.Composer.Submit(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err, result.Message, &view)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"listingId": result.ListingID,
		"location":  "/listing/" + result.ListingID,
	})
}
