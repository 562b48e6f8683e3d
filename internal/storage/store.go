// Package storage persists the catalog and the order aggregate. Compound
// operations (get-or-create cart, line upserts, checkout) are atomic in
// every implementation: the Postgres store runs them in transactions
// backed by uniqueness constraints, the in-memory store serializes them
// behind a mutex.
package storage

import (
	"context"
	"errors"

	"foodcourt/internal/models"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist
	// or is not visible to the requesting user.
	ErrNotFound = errors.New("not found")
	// ErrEmptyOrder is returned when finalizing an order with no items.
	ErrEmptyOrder = errors.New("order has no items")
)

// Store is the persistence boundary for the storefront.
type Store interface {
	CatalogStore
	CartStore
	OrderStore
}

// CatalogStore holds restaurant and menu item records. Read-mostly.
type CatalogStore interface {
	GetRestaurant(ctx context.Context, id int64) (*models.Restaurant, error)
	ListRestaurants(ctx context.Context) ([]models.Restaurant, error)
	GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error)
	ListMenu(ctx context.Context, restaurantID int64) ([]models.MenuItem, error)
	ListTrending(ctx context.Context) ([]models.MenuItem, error)
	ListActiveOffers(ctx context.Context) ([]models.Offer, error)

	// Favorites. AddFavorite is idempotent.
	AddFavorite(ctx context.Context, userID, menuItemID int64) error
	RemoveFavorite(ctx context.Context, userID, menuItemID int64) error
	ListFavorites(ctx context.Context, userID int64) ([]models.MenuItem, error)
}

// CartStore mutates the user's single PENDING order. Every mutation
// recomputes the order's total price atomically with the item change.
type CartStore interface {
	// AddItemToCart finds or creates the user's PENDING order and a
	// line for item, incrementing quantity when the line exists. The
	// line price is snapshotted from item at first add.
	AddItemToCart(ctx context.Context, userID int64, item *models.MenuItem) (*models.OrderItem, error)
	// RemoveCartItem deletes the line for menuItemID. A missing cart
	// or line is a no-op.
	RemoveCartItem(ctx context.Context, userID, menuItemID int64) error
	// AdjustCartItemQuantity changes a line quantity by delta, deleting
	// the line when the quantity would drop below 1. A missing cart or
	// line is a no-op.
	AdjustCartItemQuantity(ctx context.Context, userID, menuItemID int64, delta int) error
	// PendingOrder returns the user's cart with items, or ErrNotFound.
	PendingOrder(ctx context.Context, userID int64) (*models.Order, error)
}

// OrderStore finalizes orders and drives their lifecycle.
type OrderStore interface {
	// FinalizeOrder checks out the user's PENDING order: rejects an
	// empty cart, attaches details, records the best applicable offer,
	// allocates the next gapless order number and moves the order to
	// PREPARING. The whole operation is one critical section.
	FinalizeOrder(ctx context.Context, userID int64, details models.CustomerDetails) (*models.Order, error)
	// PlaceImmediateOrder creates a single-item order finalized
	// directly as COMPLETED, with an order number allocated.
	PlaceImmediateOrder(ctx context.Context, userID int64, item *models.MenuItem, details models.CustomerDetails) (*models.Order, error)
	// CancelOrder moves an owner's order to CANCELLED when the
	// transition table permits it. Items and order number are kept.
	CancelOrder(ctx context.Context, userID, orderID int64) (*models.Order, error)
	// AdvanceOrderStatus applies a staff-driven status transition.
	AdvanceOrderStatus(ctx context.Context, orderID int64, to models.OrderStatus, changedBy string) (*models.Order, error)
	// GetOrder returns an order owned by userID, with items.
	GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, error)
	// ListOrders returns the user's finalized orders, newest first.
	ListOrders(ctx context.Context, userID int64) ([]models.Order, error)
	// StatusHistory returns the status log of an owner's order.
	StatusHistory(ctx context.Context, userID, orderID int64) ([]models.StatusChange, error)
}
