// Package order implements the order lifecycle: checkout, immediate
// single-item orders, cancellation and staff-driven status transitions,
// publishing an event for each change.
package order

import (
	"context"
	"fmt"
	"time"

	"foodcourt/internal/logger"
	"foodcourt/internal/models"
	"foodcourt/internal/storage"
)

// Routing keys for the orders topic exchange.
const (
	routingKeyPlaced    = "orders.placed"
	routingKeyCancelled = "orders.cancelled"
	routingKeyStatus    = "orders.status_changed"
)

// Event is the message published for every order lifecycle change.
type Event struct {
	OrderID     int64              `json:"order_id"`
	OrderNumber *int64             `json:"order_number,omitempty"`
	UserID      int64              `json:"user_id"`
	Status      models.OrderStatus `json:"status"`
	TotalPrice  float64            `json:"total_price"`
	FinalTotal  float64            `json:"final_total"`
	Occurred    time.Time          `json:"occurred"`
}

// Publisher is implemented by the messaging layer.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, event interface{}, routingKey string) error
	PublishNotification(ctx context.Context, notification interface{}) error
}

// Service drives order finalization and status transitions.
type Service struct {
	store     storage.Store
	publisher Publisher
	logger    *logger.Logger
}

// NewService creates an order service. publisher may be nil when
// eventing is disabled.
func NewService(store storage.Store, publisher Publisher, log *logger.Logger) *Service {
	return &Service{store: store, publisher: publisher, logger: log}
}

// Checkout finalizes the user's cart: validates the delivery details,
// allocates the next order number and moves the order to PREPARING.
// storage.ErrNotFound and storage.ErrEmptyOrder pass through for the
// handler to turn into a redirect back to the cart.
func (s *Service) Checkout(ctx context.Context, userID int64, details models.CustomerDetails, requestID string) (*models.Order, error) {
	if err := details.Validate(); err != nil {
		return nil, err
	}

	order, err := s.store.FinalizeOrder(ctx, userID, details)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order_placed",
		fmt.Sprintf("Order #%d placed", *order.OrderNumber), requestID,
		map[string]interface{}{
			"order_id":     order.ID,
			"order_number": *order.OrderNumber,
			"user_id":      userID,
			"total_price":  order.TotalPrice,
			"final_total":  order.FinalTotal(),
		})

	s.publish(ctx, order, routingKeyPlaced, requestID)
	return order, nil
}

// OrderNow places an immediate single-item order, finalized directly as
// COMPLETED with an order number allocated.
func (s *Service) OrderNow(ctx context.Context, userID, menuItemID int64, details models.CustomerDetails, requestID string) (*models.Order, error) {
	if err := details.Validate(); err != nil {
		return nil, err
	}

	item, err := s.store.GetMenuItem(ctx, menuItemID)
	if err != nil {
		return nil, err
	}

	order, err := s.store.PlaceImmediateOrder(ctx, userID, item, details)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order_placed",
		fmt.Sprintf("Immediate order #%d placed", *order.OrderNumber), requestID,
		map[string]interface{}{
			"order_id":     order.ID,
			"order_number": *order.OrderNumber,
			"user_id":      userID,
		})

	s.publish(ctx, order, routingKeyPlaced, requestID)
	return order, nil
}

// Cancel moves an owner's order to CANCELLED when still permitted.
// Items and the order number are left untouched.
func (s *Service) Cancel(ctx context.Context, userID, orderID int64, requestID string) (*models.Order, error) {
	order, err := s.store.CancelOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order_cancelled", "Order cancelled", requestID,
		map[string]interface{}{"order_id": order.ID, "user_id": userID})

	s.publish(ctx, order, routingKeyCancelled, requestID)
	return order, nil
}

// AdvanceStatus applies a staff transition through the state machine.
func (s *Service) AdvanceStatus(ctx context.Context, orderID int64, to models.OrderStatus, changedBy, requestID string) (*models.Order, error) {
	order, err := s.store.AdvanceOrderStatus(ctx, orderID, to, changedBy)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order_status_changed",
		fmt.Sprintf("Order moved to %s", order.Status), requestID,
		map[string]interface{}{"order_id": order.ID, "status": order.Status})

	s.publish(ctx, order, routingKeyStatus, requestID)
	return order, nil
}

// MyOrders returns the user's finalized orders, newest first.
func (s *Service) MyOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.store.ListOrders(ctx, userID)
}

// Detail returns an order owned by the user. Another user's order
// surfaces as not-found rather than leaking existence.
func (s *Service) Detail(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	return s.store.GetOrder(ctx, userID, orderID)
}

// History returns the status log of an owner's order.
func (s *Service) History(ctx context.Context, userID, orderID int64) ([]models.StatusChange, error) {
	return s.store.StatusHistory(ctx, userID, orderID)
}

func (s *Service) publish(ctx context.Context, order *models.Order, routingKey, requestID string) {
	if s.publisher == nil {
		return
	}

	event := Event{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalPrice:  order.TotalPrice,
		FinalTotal:  order.FinalTotal(),
		Occurred:    time.Now().UTC(),
	}

	if err := s.publisher.PublishOrderEvent(ctx, event, routingKey); err != nil {
		s.logger.Error("event_publish_failed", "Failed to publish order event", requestID, err,
			map[string]interface{}{"order_id": order.ID, "routing_key": routingKey})
	}
	if err := s.publisher.PublishNotification(ctx, event); err != nil {
		s.logger.Error("notification_publish_failed", "Failed to publish notification", requestID, err,
			map[string]interface{}{"order_id": order.ID})
	}
}
