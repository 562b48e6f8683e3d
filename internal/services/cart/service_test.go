package cart

import (
	"context"
	"sync"
	"testing"

	"foodcourt/internal/logger"
	"foodcourt/internal/models"
	"foodcourt/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Memory, models.MenuItem, models.MenuItem) {
	t.Helper()
	store := storage.NewMemory()
	r := store.SeedRestaurant(models.Restaurant{Name: "Spice Garden"})
	burger := store.SeedMenuItem(models.MenuItem{RestaurantID: r.ID, Name: "Burger", Price: 5.00})
	fries := store.SeedMenuItem(models.MenuItem{RestaurantID: r.ID, Name: "Fries", Price: 2.50})
	return NewService(store, logger.New("cart-test", "error")), store, burger, fries
}

// assertTotalInvariant checks that the persisted total always equals
// the sum of line subtotals.
func assertTotalInvariant(t *testing.T, store *storage.Memory, userID int64) {
	t.Helper()
	order, err := store.PendingOrder(context.Background(), userID)
	if err != nil {
		return // no cart, nothing to check
	}
	if order.TotalPrice != order.ItemsTotal() {
		t.Fatalf("total_price %v != sum of subtotals %v", order.TotalPrice, order.ItemsTotal())
	}
}

func TestAddItem_CreatesCartAndLine(t *testing.T) {
	svc, store, burger, _ := newTestService(t)
	ctx := context.Background()

	line, err := svc.AddItem(ctx, 1, burger.ID, "req")
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	if line.Quantity != 1 || line.Price != 5.00 {
		t.Errorf("unexpected line: %+v", line)
	}
	assertTotalInvariant(t, store, 1)

	// Adding the same item again increments the existing line.
	line, err = svc.AddItem(ctx, 1, burger.ID, "req")
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	if line.Quantity != 2 {
		t.Errorf("quantity = %d, want 2", line.Quantity)
	}

	order, err := store.PendingOrder(ctx, 1)
	if err != nil {
		t.Fatalf("PendingOrder returned error: %v", err)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(order.Items))
	}
	if order.TotalPrice != 10.00 {
		t.Errorf("total = %v, want 10.00", order.TotalPrice)
	}
}

func TestAddItem_UnknownItem(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, err := svc.AddItem(context.Background(), 1, 9999, "req"); err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCartMutations_TotalInvariant(t *testing.T) {
	svc, store, burger, fries := newTestService(t)
	ctx := context.Background()
	const userID = int64(7)

	ops := []func() error{
		func() error { _, err := svc.AddItem(ctx, userID, burger.ID, "req"); return err },
		func() error { _, err := svc.AddItem(ctx, userID, fries.ID, "req"); return err },
		func() error { return svc.IncrementQuantity(ctx, userID, burger.ID) },
		func() error { return svc.IncrementQuantity(ctx, userID, burger.ID) },
		func() error { return svc.DecrementQuantity(ctx, userID, fries.ID) },
		func() error { _, err := svc.AddItem(ctx, userID, fries.ID, "req"); return err },
		func() error { return svc.RemoveItem(ctx, userID, burger.ID) },
		func() error { return svc.DecrementQuantity(ctx, userID, fries.ID) },
	}
	for i, op := range ops {
		if err := op(); err != nil {
			t.Fatalf("operation %d returned error: %v", i, err)
		}
		assertTotalInvariant(t, store, userID)
	}
}

func TestDecrementQuantity_DeletesLineAtZero(t *testing.T) {
	svc, store, burger, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, 1, burger.ID, "req"); err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	if err := svc.DecrementQuantity(ctx, 1, burger.ID); err != nil {
		t.Fatalf("DecrementQuantity returned error: %v", err)
	}

	order, err := store.PendingOrder(ctx, 1)
	if err != nil {
		t.Fatalf("PendingOrder returned error: %v", err)
	}
	if len(order.Items) != 0 {
		t.Errorf("expected empty cart, got %d lines", len(order.Items))
	}
	if order.TotalPrice != 0 {
		t.Errorf("total = %v, want 0", order.TotalPrice)
	}
}

func TestCartMutations_NoCartIsNoop(t *testing.T) {
	svc, _, burger, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.RemoveItem(ctx, 42, burger.ID); err != nil {
		t.Errorf("RemoveItem on missing cart returned error: %v", err)
	}
	if err := svc.IncrementQuantity(ctx, 42, burger.ID); err != nil {
		t.Errorf("IncrementQuantity on missing cart returned error: %v", err)
	}
	if err := svc.DecrementQuantity(ctx, 42, burger.ID); err != nil {
		t.Errorf("DecrementQuantity on missing cart returned error: %v", err)
	}
}

func TestAddItem_PriceSnapshot(t *testing.T) {
	svc, store, burger, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, 1, burger.ID, "req"); err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}

	// Administrative price change after the item is in the cart.
	store.SetMenuItemPrice(burger.ID, 7.00)

	order, err := store.PendingOrder(ctx, 1)
	if err != nil {
		t.Fatalf("PendingOrder returned error: %v", err)
	}
	if order.Items[0].Price != 5.00 {
		t.Errorf("line price = %v, want snapshot 5.00", order.Items[0].Price)
	}

	// A further add of the same item keeps the original snapshot.
	if _, err := svc.AddItem(ctx, 1, burger.ID, "req"); err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	order, _ = store.PendingOrder(ctx, 1)
	if order.Items[0].Price != 5.00 {
		t.Errorf("line price after re-add = %v, want 5.00", order.Items[0].Price)
	}
	if order.TotalPrice != 10.00 {
		t.Errorf("total = %v, want 10.00", order.TotalPrice)
	}
}

func TestAddItem_ConcurrentSinglePendingOrder(t *testing.T) {
	svc, store, burger, _ := newTestService(t)
	ctx := context.Background()
	const userID = int64(1)
	const n = 50

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := svc.AddItem(ctx, userID, burger.ID, "req"); err != nil {
				t.Errorf("AddItem returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	// All adds must have landed on one cart and one line.
	order, err := store.PendingOrder(ctx, userID)
	if err != nil {
		t.Fatalf("PendingOrder returned error: %v", err)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected 1 line, got %d", len(order.Items))
	}
	if order.Items[0].Quantity != n {
		t.Errorf("quantity = %d, want %d", order.Items[0].Quantity, n)
	}
	if order.TotalPrice != float64(n)*5.00 {
		t.Errorf("total = %v, want %v", order.TotalPrice, float64(n)*5.00)
	}
}

func TestViewCart(t *testing.T) {
	svc, store, burger, _ := newTestService(t)
	ctx := context.Background()

	t.Run("empty cart view", func(t *testing.T) {
		view, err := svc.ViewCart(ctx, 99)
		if err != nil {
			t.Fatalf("ViewCart returned error: %v", err)
		}
		if view.Order != nil || view.Subtotal != 0 || view.FinalTotal != 0 {
			t.Errorf("expected empty view, got %+v", view)
		}
	})

	t.Run("offer preview applied", func(t *testing.T) {
		store.SeedOffer(models.Offer{Title: "Deal", DiscountAmount: 10, MinOrderAmount: 50, IsActive: true})
		for i := 0; i < 20; i++ { // 20 x 5.00 = 100.00
			if _, err := svc.AddItem(ctx, 1, burger.ID, "req"); err != nil {
				t.Fatalf("AddItem returned error: %v", err)
			}
		}

		view, err := svc.ViewCart(ctx, 1)
		if err != nil {
			t.Fatalf("ViewCart returned error: %v", err)
		}
		if view.Subtotal != 100.00 {
			t.Errorf("subtotal = %v, want 100.00", view.Subtotal)
		}
		if view.Discount != 10.00 {
			t.Errorf("discount = %v, want 10.00", view.Discount)
		}
		if view.FinalTotal != 90.00 {
			t.Errorf("final total = %v, want 90.00", view.FinalTotal)
		}
		if view.AppliedOffer == nil {
			t.Error("expected an applied offer in the preview")
		}
	})
}
