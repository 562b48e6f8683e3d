package catalog

import (
	"context"
	"errors"
	"testing"

	"foodcourt/internal/logger"
	"foodcourt/internal/models"
	"foodcourt/internal/storage"
)

func TestListMenu_UnknownRestaurant(t *testing.T) {
	store := storage.NewMemory()
	svc := NewService(store, logger.New("catalog-test", "error"))
	if _, err := svc.ListMenu(context.Background(), 404); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTrending(t *testing.T) {
	store := storage.NewMemory()
	svc := NewService(store, logger.New("catalog-test", "error"))
	r := store.SeedRestaurant(models.Restaurant{Name: "Spice Garden"})
	store.SeedMenuItem(models.MenuItem{RestaurantID: r.ID, Name: "Burger", Price: 5, IsTrending: true})
	store.SeedMenuItem(models.MenuItem{RestaurantID: r.ID, Name: "Fries", Price: 2.5})

	items, err := svc.ListTrending(context.Background())
	if err != nil {
		t.Fatalf("ListTrending returned error: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Burger" {
		t.Errorf("unexpected trending items: %+v", items)
	}
}

func TestFavorites(t *testing.T) {
	store := storage.NewMemory()
	svc := NewService(store, logger.New("catalog-test", "error"))
	ctx := context.Background()
	r := store.SeedRestaurant(models.Restaurant{Name: "Spice Garden"})
	burger := store.SeedMenuItem(models.MenuItem{RestaurantID: r.ID, Name: "Burger", Price: 5})

	t.Run("unknown item rejected", func(t *testing.T) {
		if err := svc.AddFavorite(ctx, 1, 9999); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("add is idempotent", func(t *testing.T) {
		if err := svc.AddFavorite(ctx, 1, burger.ID); err != nil {
			t.Fatalf("AddFavorite returned error: %v", err)
		}
		if err := svc.AddFavorite(ctx, 1, burger.ID); err != nil {
			t.Fatalf("repeated AddFavorite returned error: %v", err)
		}
		favorites, err := svc.ListFavorites(ctx, 1)
		if err != nil {
			t.Fatalf("ListFavorites returned error: %v", err)
		}
		if len(favorites) != 1 {
			t.Errorf("expected 1 favorite, got %d", len(favorites))
		}
	})

	t.Run("remove", func(t *testing.T) {
		if err := svc.RemoveFavorite(ctx, 1, burger.ID); err != nil {
			t.Fatalf("RemoveFavorite returned error: %v", err)
		}
		favorites, err := svc.ListFavorites(ctx, 1)
		if err != nil {
			t.Fatalf("ListFavorites returned error: %v", err)
		}
		if len(favorites) != 0 {
			t.Errorf("expected no favorites, got %d", len(favorites))
		}
	})
}
