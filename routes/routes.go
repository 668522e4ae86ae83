package routes

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"listing-service/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes sets up all API routes plus the static fallback.
func RegisterRoutes(r *gin.Engine, lc *controllers.ListingController, hc *controllers.HealthController, staticDir string) {
	api := r.Group("/api")
	{
		products := api.Group("/products")
		{
			products.GET("", lc.GetListings)
			products.GET("/search", lc.SearchListings)
			products.POST("", lc.CreateListing)
			products.POST("/base64", lc.CreateListingBase64)
			products.GET("/:id", lc.GetListingByID)
			products.PUT("/:id", lc.UpdateListing)
			products.DELETE("/:id", lc.DeleteListing)
		}

		api.GET("/health", hc.Health)
		api.GET("/stats", lc.GetStats)
		api.POST("/upload-image", lc.UploadImage)
	}

	r.NoRoute(staticFallback(staticDir))
}

// staticFallback serves files below dir for GET requests that match no route.
// The site root maps to index.html.
func staticFallback(dir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if dir != "" && (c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead) &&
			!strings.HasPrefix(c.Request.URL.Path, "/api/") {
			rel := filepath.Clean("/" + c.Request.URL.Path)
			if rel == "/" {
				rel = "/index.html"
			}
			full := filepath.Join(dir, filepath.FromSlash(rel))
			if info, err := os.Stat(full); err == nil && !info.IsDir() {
				c.File(full)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "Route not found"})
	}
}
