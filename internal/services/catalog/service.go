// Package catalog serves restaurant and menu item reads, plus the
// user's favorites list.
package catalog

import (
	"context"

	"foodcourt/internal/logger"
	"foodcourt/internal/models"
	"foodcourt/internal/storage"
)

// Service reads the catalog. The catalog is read-mostly; administrative
// edits happen out of band.
type Service struct {
	store  storage.Store
	logger *logger.Logger
}

// NewService creates a catalog service.
func NewService(store storage.Store, log *logger.Logger) *Service {
	return &Service{store: store, logger: log}
}

func (s *Service) GetRestaurant(ctx context.Context, id int64) (*models.Restaurant, error) {
	return s.store.GetRestaurant(ctx, id)
}

func (s *Service) ListRestaurants(ctx context.Context) ([]models.Restaurant, error) {
	return s.store.ListRestaurants(ctx)
}

func (s *Service) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	return s.store.GetMenuItem(ctx, id)
}

func (s *Service) ListMenu(ctx context.Context, restaurantID int64) ([]models.MenuItem, error) {
	if _, err := s.store.GetRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	return s.store.ListMenu(ctx, restaurantID)
}

func (s *Service) ListTrending(ctx context.Context) ([]models.MenuItem, error) {
	return s.store.ListTrending(ctx)
}

func (s *Service) ListActiveOffers(ctx context.Context) ([]models.Offer, error) {
	return s.store.ListActiveOffers(ctx)
}

// AddFavorite marks a menu item as a favorite. Repeated calls are
// idempotent.
func (s *Service) AddFavorite(ctx context.Context, userID, menuItemID int64) error {
	if _, err := s.store.GetMenuItem(ctx, menuItemID); err != nil {
		return err
	}
	return s.store.AddFavorite(ctx, userID, menuItemID)
}

func (s *Service) RemoveFavorite(ctx context.Context, userID, menuItemID int64) error {
	return s.store.RemoveFavorite(ctx, userID, menuItemID)
}

func (s *Service) ListFavorites(ctx context.Context, userID int64) ([]models.MenuItem, error) {
	return s.store.ListFavorites(ctx, userID)
}
