package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"listing-composer/internal/logger"
	"listing-composer/internal/model"
	"listing-composer/internal/repository"
)

// ListingStore is the persistence ListingHandler needs.
type ListingStore interface {
	Create(ctx context.Context, l *model.Listing) error
	GetByID(ctx context.Context, id string) (*model.Listing, error)
	ListByUser(ctx context.Context, userRef string, limit, offset int) ([]model.Listing, error)
	GetFiltered(ctx context.Context, f model.ListingFilter) ([]model.Listing, error)
}

// ListingHandler управляет созданием и чтением объявлений.
type ListingHandler struct {
	Repo ListingStore
	Now  func() time.Time
}

// RegisterRoutes регистрирует все роуты для Listings.
func (h *ListingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/listing/create", h.CreateListing)
	rg.GET("/listing/get", h.GetListings)
	rg.GET("/listing/get/:id", h.GetListingByID)
	rg.GET("/listing/user/:userRef", h.GetUserListings)
}

func failure(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "statusCode": status, "message": message})
}

// POST /api/listing/create
func (h *ListingHandler) CreateListing(c *gin.Context) {
	log := logger.FromContext(c.Request.Context()).WithFields(logger.Fields{"component": "ListingHandler"})

	var req model.ListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.ImageURLs == nil {
		req.ImageURLs = []string{}
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	ts := now().UTC()
	listing := &model.Listing{
		ID:             ulid.Make().String(),
		ListingRequest: req,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}

	if err := h.Repo.Create(c.Request.Context(), listing); err != nil {
		log.Error("Failed to store listing", err, nil)
		failure(c, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info("Listing stored", logger.Fields{"listing_id": listing.ID, "user_ref": listing.UserRef})
	c.JSON(http.StatusCreated, listing)
}

// GET /api/listing/get/:id
func (h *ListingHandler) GetListingByID(c *gin.Context) {
	listing, err := h.Repo.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrListingNotFound) {
		failure(c, http.StatusNotFound, "Listing not found!")
		return
	}
	if err != nil {
		failure(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, listing)
}

// GET /api/listing/user/:userRef?limit=...&offset=...
func (h *ListingHandler) GetUserListings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	list, err := h.Repo.ListByUser(c.Request.Context(), c.Param("userRef"), limit, offset)
	if err != nil {
		failure(c, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []model.Listing{}
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/listing/get?offer=true&parking=...&furnished=...&type=rent&limit=4&offset=0
func (h *ListingHandler) GetListings(c *gin.Context) {
	f := model.ListingFilter{Limit: 9}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > 100 {
			failure(c, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		f.Limit = limit
	}
	if v := c.Query("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			failure(c, http.StatusBadRequest, "offset must not be negative")
			return
		}
		f.Offset = offset
	}

	switch t := c.DefaultQuery("type", "all"); t {
	case "all":
	case string(model.PropertyTypeSale), string(model.PropertyTypeRent):
		f.Type = t
	default:
		failure(c, http.StatusBadRequest, "type must be sale, rent or all")
		return
	}

	for name, dst := range map[string]**bool{"offer": &f.Offer, "parking": &f.Parking, "furnished": &f.Furnished} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			failure(c, http.StatusBadRequest, name+" must be true or false")
			return
		}
		*dst = &b
	}

	list, err := h.Repo.GetFiltered(c.Request.Context(), f)
	if err != nil {
		failure(c, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []model.Listing{}
	}
	c.JSON(http.StatusOK, list)
}
