package controllers

import (
	"net/http"
	"strings"

	"listing-service/images"
	"listing-service/models"
	"listing-service/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

const productNotFound = "Product not found"

// ListingController serves the /api/products endpoints and friends.
type ListingController struct {
	service   ListingServiceAPI
	validator *RequestValidator
	cache     *CacheManager
}

func NewListingController(s ListingServiceAPI, redisClient *redis.Client) *ListingController {
	return &ListingController{
		service:   s,
		validator: NewRequestValidator(),
		cache:     NewCacheManager(redisClient),
	}
}

// GetListings handles GET /api/products
func (ctrl *ListingController) GetListings(c *gin.Context) {
	q, err := ctrl.validator.ParseQuery(c)
	if err != nil {
		handleServiceError(c, err, productNotFound)
		return
	}
	ctrl.respondWithListings(c, q)
}

// SearchListings handles GET /api/products/search?q=
func (ctrl *ListingController) SearchListings(c *gin.Context) {
	q, err := ctrl.validator.ParseQuery(c)
	if err != nil {
		handleServiceError(c, err, productNotFound)
		return
	}
	if term := strings.TrimSpace(c.Query("q")); term != "" {
		q.Search = term
	}
	ctrl.respondWithListings(c, q)
}

func (ctrl *ListingController) respondWithListings(c *gin.Context, q models.ListingQuery) {
	cached, version, ok := ctrl.cache.GetListings(c.Request.Context(), q)
	if ok {
		c.Header("X-Cache", "HIT")
		c.JSON(http.StatusOK, cached)
		return
	}

	listings, err := ctrl.service.ListListings(c.Request.Context(), q)
	if err != nil {
		handleServiceError(c, err, productNotFound)
		return
	}
	ctrl.cache.SetListingsAsync(version, q, listings)
	c.JSON(http.StatusOK, listings)
}

// GetListingByID handles GET /api/products/:id
func (ctrl *ListingController) GetListingByID(c *gin.Context) {
	listing, err := ctrl.service.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err, productNotFound)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// CreateListing handles POST /api/products. Multipart bodies carry an image
// file; JSON bodies reference an already hosted imagePath.
func (ctrl *ListingController) CreateListing(c *gin.Context) {
	var (
		req services.ListingCreateRequest
		img *images.Image
		err error
	)
	if strings.HasPrefix(c.ContentType(), "application/json") {
		req, err = ctrl.validator.ParseJSONCreate(c)
	} else {
		req, img, err = ctrl.validator.ParseMultipartCreate(c)
	}
	if err != nil {
		handleServiceError(c, err, productNotFound)
		return
	}
	ctrl.create(c, req, img)
}

// CreateListingBase64 handles POST /api/products/base64
func (ctrl *ListingController) CreateListingBase64(c *gin.Context) {
	req, img, err := ctrl.validator.ParseBase64Create(c)
	if err != nil {
		handleServiceError(c, err, productNotFound)
		return
	}
	ctrl.create(c, req, img)
}

func (ctrl *ListingController) create(c *gin.Context, req services.ListingCreateRequest, img *images.Image) {
	listing, err := ctrl.service.CreateListing(c.Request.Context(), req, img)
	if err != nil {
		handleServiceError(c, err, productNotFound)
		return
	}
	ctrl.cache.Invalidate(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{
		"message": "Product created successfully",
		"product": listing,
	})
}

// UpdateListing handles PUT /api/products/:id
func (ctrl *ListingController) UpdateListing(c *gin.Context) {
	req, err := ctrl.validator.ParseUpdate(c)
	if err != nil {
		handleServiceError(c, err, productNotFound)
		return
	}
	listing, err := ctrl.service.UpdateListing(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		handleServiceError(c, err, productNotFound)
		return
	}
	ctrl.cache.Invalidate(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"message": "Product updated successfully",
		"product": listing,
	})
}

// DeleteListing handles DELETE /api/products/:id
func (ctrl *ListingController) DeleteListing(c *gin.Context) {
	id := c.Param("id")
	if _, err := ctrl.service.DeleteListing(c.Request.Context(), id); err != nil {
		handleServiceError(c, err, productNotFound)
		return
	}
	ctrl.cache.Invalidate(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"message": "Product deleted successfully",
		"id":      id,
	})
}

// GetStats handles GET /api/stats
func (ctrl *ListingController) GetStats(c *gin.Context) {
	cached, version, ok := ctrl.cache.GetStats(c.Request.Context())
	if ok {
		c.Header("X-Cache", "HIT")
		c.JSON(http.StatusOK, cached)
		return
	}
	stats, err := ctrl.service.Stats(c.Request.Context())
	if err != nil {
		handleServiceError(c, err, productNotFound)
		return
	}
	ctrl.cache.SetStatsAsync(version, stats)
	c.JSON(http.StatusOK, stats)
}

// UploadImage handles POST /api/upload-image
func (ctrl *ListingController) UploadImage(c *gin.Context) {
	img, err := ctrl.validator.ParseImageUpload(c)
	if err != nil {
		handleServiceError(c, err, productNotFound)
		return
	}
	uploaded, err := ctrl.service.UploadImage(c.Request.Context(), img)
	if err != nil {
		handleServiceError(c, err, productNotFound)
		return
	}
	c.JSON(http.StatusOK, uploaded)
}
