package catalog

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"foodcourt/internal/logger"
	"foodcourt/internal/middleware"
	"foodcourt/internal/models"
	"foodcourt/internal/storage"
)

// Handler exposes catalog reads and favorites over HTTP.
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a catalog handler.
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// RegisterPublic mounts the unauthenticated catalog routes.
func (h *Handler) RegisterPublic(r *gin.RouterGroup) {
	r.GET("/restaurants", h.ListRestaurants)
	r.GET("/restaurants/:id", h.GetRestaurant)
	r.GET("/restaurants/:id/menu", h.ListMenu)
	r.GET("/menu/trending", h.ListTrending)
	r.GET("/offers", h.ListOffers)
}

// RegisterAuthed mounts the favorites routes on an authenticated group.
func (h *Handler) RegisterAuthed(r *gin.RouterGroup) {
	r.GET("/favorites", h.ListFavorites)
	r.POST("/favorites/:menuItemID", h.AddFavorite)
	r.DELETE("/favorites/:menuItemID", h.RemoveFavorite)
}

// ListRestaurants handles GET /restaurants
func (h *Handler) ListRestaurants(c *gin.Context) {
	restaurants, err := h.service.ListRestaurants(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if restaurants == nil {
		restaurants = []models.Restaurant{}
	}
	c.JSON(http.StatusOK, restaurants)
}

// GetRestaurant handles GET /restaurants/:id
func (h *Handler) GetRestaurant(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid restaurant ID"})
		return
	}

	restaurant, err := h.service.GetRestaurant(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, restaurant)
}

// ListMenu handles GET /restaurants/:id/menu
func (h *Handler) ListMenu(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid restaurant ID"})
		return
	}

	items, err := h.service.ListMenu(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if items == nil {
		items = []models.MenuItem{}
	}
	c.JSON(http.StatusOK, items)
}

// ListTrending handles GET /menu/trending
func (h *Handler) ListTrending(c *gin.Context) {
	items, err := h.service.ListTrending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if items == nil {
		items = []models.MenuItem{}
	}
	c.JSON(http.StatusOK, items)
}

// ListOffers handles GET /offers
func (h *Handler) ListOffers(c *gin.Context) {
	offers, err := h.service.ListActiveOffers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if offers == nil {
		offers = []models.Offer{}
	}
	c.JSON(http.StatusOK, offers)
}

// ListFavorites handles GET /favorites
func (h *Handler) ListFavorites(c *gin.Context) {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	items, err := h.service.ListFavorites(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if items == nil {
		items = []models.MenuItem{}
	}
	c.JSON(http.StatusOK, items)
}

// AddFavorite handles POST /favorites/:menuItemID
func (h *Handler) AddFavorite(c *gin.Context) {
	h.mutateFavorite(c, "Added to favorites", h.service.AddFavorite)
}

// RemoveFavorite handles DELETE /favorites/:menuItemID
func (h *Handler) RemoveFavorite(c *gin.Context) {
	h.mutateFavorite(c, "Removed from favorites", h.service.RemoveFavorite)
}

func (h *Handler) mutateFavorite(c *gin.Context, message string, fn func(ctx context.Context, userID, menuItemID int64) error) {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	menuItemID, err := strconv.ParseInt(c.Param("menuItemID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid menu item ID"})
		return
	}

	if err := fn(c.Request.Context(), userID, menuItemID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "redirect": "/favorites"})
}
