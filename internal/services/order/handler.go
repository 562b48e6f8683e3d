package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"foodcourt/internal/logger"
	"foodcourt/internal/middleware"
	"foodcourt/internal/models"
	"foodcourt/internal/storage"
)

// Handler exposes checkout and order tracking over HTTP.
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates an order handler.
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// Register mounts the order routes on an authenticated router group.
func (h *Handler) Register(r *gin.RouterGroup) {
	r.POST("/checkout", h.Checkout)
	r.POST("/menu/:menuItemID/order-now", h.OrderNow)
	r.GET("/orders", h.MyOrders)
	r.GET("/orders/:id", h.Detail)
	r.GET("/orders/:id/history", h.History)
	r.POST("/orders/:id/cancel", h.Cancel)
	r.PUT("/orders/:id/status", h.AdvanceStatus)
}

// Checkout handles POST /checkout
func (h *Handler) Checkout(c *gin.Context) {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var details models.CustomerDetails
	if err := c.ShouldBindJSON(&details); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID := logger.GenerateRequestID()
	order, err := h.service.Checkout(c.Request.Context(), userID, details, requestID)
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrEmptyOrder):
		// Checking out an empty cart is not a fault: send the user
		// back to the cart view with a message.
		middleware.RecordOrderOperation("checkout", false)
		c.JSON(http.StatusConflict, gin.H{
			"message":  "Your cart is empty",
			"redirect": "/cart",
		})
		return
	case err != nil:
		middleware.RecordOrderOperation("checkout", false)
		var validationErr models.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
			return
		}
		h.logger.Error("checkout_failed", "Checkout failed", requestID, err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	middleware.RecordOrderOperation("checkout", true)
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Order placed successfully",
		"order":    order,
		"redirect": "/orders",
	})
}

// OrderNow handles POST /menu/:menuItemID/order-now
func (h *Handler) OrderNow(c *gin.Context) {
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

	var details models.CustomerDetails
	if err := c.ShouldBindJSON(&details); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID := logger.GenerateRequestID()
	order, err := h.service.OrderNow(c.Request.Context(), userID, menuItemID, details, requestID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		middleware.RecordOrderOperation("order_now", false)
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	case err != nil:
		middleware.RecordOrderOperation("order_now", false)
		var validationErr models.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
			return
		}
		h.logger.Error("order_now_failed", "Immediate order failed", requestID, err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	middleware.RecordOrderOperation("order_now", true)
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Order placed successfully",
		"order":    order,
		"redirect": "/orders",
	})
}

// MyOrders handles GET /orders
func (h *Handler) MyOrders(c *gin.Context) {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	orders, err := h.service.MyOrders(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

// Detail handles GET /orders/:id
func (h *Handler) Detail(c *gin.Context) {
	h.lookup(c, func(userID, orderID int64) (interface{}, error) {
		return h.service.Detail(c.Request.Context(), userID, orderID)
	})
}

// History handles GET /orders/:id/history
func (h *Handler) History(c *gin.Context) {
	h.lookup(c, func(userID, orderID int64) (interface{}, error) {
		return h.service.History(c.Request.Context(), userID, orderID)
	})
}

// Cancel handles POST /orders/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	requestID := logger.GenerateRequestID()
	order, err := h.service.Cancel(c.Request.Context(), userID, orderID, requestID)
	var transitionErr *models.TransitionError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		middleware.RecordOrderOperation("cancel", false)
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	case errors.As(err, &transitionErr):
		middleware.RecordOrderOperation("cancel", false)
		c.JSON(http.StatusConflict, gin.H{
			"message":  "This order cannot be cancelled",
			"redirect": "/orders",
		})
		return
	case err != nil:
		middleware.RecordOrderOperation("cancel", false)
		h.logger.Error("cancel_failed", "Cancellation failed", requestID, err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	middleware.RecordOrderOperation("cancel", true)
	c.JSON(http.StatusOK, gin.H{
		"message":  "Order cancelled successfully",
		"order":    order,
		"redirect": "/orders",
	})
}

// AdvanceStatus handles PUT /orders/:id/status
func (h *Handler) AdvanceStatus(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req struct {
		Status models.OrderStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID := logger.GenerateRequestID()
	order, err := h.service.AdvanceStatus(c.Request.Context(), orderID, req.Status, "staff", requestID)
	var transitionErr *models.TransitionError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		middleware.RecordOrderOperation("update_status", false)
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	case errors.As(err, &transitionErr):
		middleware.RecordOrderOperation("update_status", false)
		c.JSON(http.StatusConflict, gin.H{"error": transitionErr.Error()})
		return
	case err != nil:
		middleware.RecordOrderOperation("update_status", false)
		h.logger.Error("update_status_failed", "Status update failed", requestID, err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	middleware.RecordOrderOperation("update_status", true)
	c.JSON(http.StatusOK, gin.H{"message": "Order status updated", "order": order})
}

func (h *Handler) lookup(c *gin.Context, fn func(userID, orderID int64) (interface{}, error)) {
	userID, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	result, err := fn(userID, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, result)
}
