// Package cart implements the cart/order aggregate: the user's single
// PENDING order, mutated by add/remove/increment/decrement operations
// that keep the order total consistent with its line items.
package cart

import (
	"context"
	"errors"
	"fmt"

	"foodcourt/internal/logger"
	"foodcourt/internal/models"
	"foodcourt/internal/services/offer"
	"foodcourt/internal/storage"
)

// View is the cart as presented to the user, with the offer preview
// applied to the current subtotal.
type View struct {
	Order        *models.Order      `json:"order,omitempty"`
	Items        []models.OrderItem `json:"items"`
	Subtotal     float64            `json:"subtotal"`
	Discount     float64            `json:"discount"`
	FinalTotal   float64            `json:"final_total"`
	AppliedOffer *models.Offer      `json:"applied_offer,omitempty"`
}

// Service owns cart mutations.
type Service struct {
	store  storage.Store
	logger *logger.Logger
}

// NewService creates a cart service.
func NewService(store storage.Store, log *logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

// AddItem adds the menu item to the user's cart, creating the cart and
// the line as needed. An existing line has its quantity incremented;
// the line price is the catalog price captured at first add.
func (s *Service) AddItem(ctx context.Context, userID, menuItemID int64, requestID string) (*models.OrderItem, error) {
	item, err := s.store.GetMenuItem(ctx, menuItemID)
	if err != nil {
		return nil, err
	}

	line, err := s.store.AddItemToCart(ctx, userID, item)
	if err != nil {
		return nil, fmt.Errorf("failed to add item to cart: %w", err)
	}

	s.logger.Debug("cart_item_added", fmt.Sprintf("Added %s to cart", item.Name), requestID,
		map[string]interface{}{
			"user_id":      userID,
			"menu_item_id": menuItemID,
			"quantity":     line.Quantity,
		})
	return line, nil
}

// RemoveItem deletes the cart line for the menu item. A missing cart or
// line is a no-op, not a fault.
func (s *Service) RemoveItem(ctx context.Context, userID, menuItemID int64) error {
	return s.store.RemoveCartItem(ctx, userID, menuItemID)
}

// IncrementQuantity raises the line quantity by one.
func (s *Service) IncrementQuantity(ctx context.Context, userID, menuItemID int64) error {
	return s.store.AdjustCartItemQuantity(ctx, userID, menuItemID, 1)
}

// DecrementQuantity lowers the line quantity by one, deleting the line
// when it would drop below 1.
func (s *Service) DecrementQuantity(ctx context.Context, userID, menuItemID int64) error {
	return s.store.AdjustCartItemQuantity(ctx, userID, menuItemID, -1)
}

// ViewCart returns the cart with the best applicable offer previewed.
// A user without a cart gets the empty view.
func (s *Service) ViewCart(ctx context.Context, userID int64) (*View, error) {
	order, err := s.store.PendingOrder(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return &View{Items: []models.OrderItem{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	offers, err := s.store.ListActiveOffers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load offers: %w", err)
	}

	subtotal := order.TotalPrice
	best := offer.SelectBest(offers, subtotal)
	return &View{
		Order:        order,
		Items:        order.Items,
		Subtotal:     subtotal,
		Discount:     offer.Discount(subtotal, best),
		FinalTotal:   offer.FinalTotal(subtotal, best),
		AppliedOffer: best,
	}, nil
}
