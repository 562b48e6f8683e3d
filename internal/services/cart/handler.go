package cart

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"foodcourt/internal/logger"
	"foodcourt/internal/middleware"
	"foodcourt/internal/storage"
)

// Handler exposes the cart operations over HTTP. Responses carry a
// redirect target for the page flow instead of a machine API contract.
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a cart handler.
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// Register mounts the cart routes on an authenticated router group.
func (h *Handler) Register(r *gin.RouterGroup) {
	r.GET("/cart", h.ViewCart)
	r.POST("/cart/items/:menuItemID", h.AddItem)
	r.DELETE("/cart/items/:menuItemID", h.RemoveItem)
	r.POST("/cart/items/:menuItemID/increment", h.IncrementQuantity)
	r.POST("/cart/items/:menuItemID/decrement", h.DecrementQuantity)
}

// AddItem handles POST /cart/items/:menuItemID
func (h *Handler) AddItem(c *gin.Context) {
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

	requestID := logger.GenerateRequestID()
	line, err := h.service.AddItem(c.Request.Context(), userID, menuItemID, requestID)
	if errors.Is(err, storage.ErrNotFound) {
		middleware.RecordOrderOperation("cart_add", false)
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}
	if err != nil {
		middleware.RecordOrderOperation("cart_add", false)
		h.logger.Error("cart_add_failed", "Failed to add item to cart", requestID, err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	middleware.RecordOrderOperation("cart_add", true)
	c.JSON(http.StatusOK, gin.H{
		"message":  line.Name + " added to cart",
		"item":     line,
		"redirect": "/cart",
	})
}

// ViewCart handles GET /cart
func (h *Handler) ViewCart(c *gin.Context) {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	view, err := h.service.ViewCart(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// RemoveItem handles DELETE /cart/items/:menuItemID
func (h *Handler) RemoveItem(c *gin.Context) {
	h.mutate(c, "cart_remove", "Item removed from cart", h.service.RemoveItem)
}

// IncrementQuantity handles POST /cart/items/:menuItemID/increment
func (h *Handler) IncrementQuantity(c *gin.Context) {
	h.mutate(c, "cart_increment", "Quantity updated", h.service.IncrementQuantity)
}

// DecrementQuantity handles POST /cart/items/:menuItemID/decrement
func (h *Handler) DecrementQuantity(c *gin.Context) {
	h.mutate(c, "cart_decrement", "Quantity updated", h.service.DecrementQuantity)
}

func (h *Handler) mutate(c *gin.Context, operation, message string, fn func(ctx context.Context, userID, menuItemID int64) error) {
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
		middleware.RecordOrderOperation(operation, false)
		h.logger.Error(operation+"_failed", "Cart mutation failed", "", err, map[string]interface{}{
			"user_id":      userID,
			"menu_item_id": menuItemID,
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	middleware.RecordOrderOperation(operation, true)
	c.JSON(http.StatusOK, gin.H{"message": message, "redirect": "/cart"})
}
