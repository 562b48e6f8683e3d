package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"foodcourt/internal/logger"
	"foodcourt/internal/models"
	"foodcourt/internal/storage"
)

// recordingPublisher captures published events instead of talking to a
// broker.
type recordingPublisher struct {
	mu          sync.Mutex
	routingKeys []string
	events      []interface{}
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event interface{}, routingKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routingKeys = append(p.routingKeys, routingKey)
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) PublishNotification(_ context.Context, _ interface{}) error {
	return nil
}

func validDetails() models.CustomerDetails {
	return models.CustomerDetails{
		Name:    "Asel Nur",
		Phone:   "+77001234567",
		Address: "12 Abay Ave, Almaty",
	}
}

func newTestService(t *testing.T) (*Service, *storage.Memory, models.MenuItem) {
	t.Helper()
	store := storage.NewMemory()
	r := store.SeedRestaurant(models.Restaurant{Name: "Spice Garden"})
	pizza := store.SeedMenuItem(models.MenuItem{RestaurantID: r.ID, Name: "Margherita", Price: 12.50})
	return NewService(store, nil, logger.New("order-test", "error")), store, pizza
}

func fillCart(t *testing.T, store *storage.Memory, userID int64, item models.MenuItem, quantity int) {
	t.Helper()
	for i := 0; i < quantity; i++ {
		if _, err := store.AddItemToCart(context.Background(), userID, &item); err != nil {
			t.Fatalf("AddItemToCart returned error: %v", err)
		}
	}
}

func TestCheckout(t *testing.T) {
	svc, store, pizza := newTestService(t)
	ctx := context.Background()
	fillCart(t, store, 1, pizza, 2)

	order, err := svc.Checkout(ctx, 1, validDetails(), "req")
	if err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}
	if order.Status != models.StatusPreparing {
		t.Errorf("status = %s, want %s", order.Status, models.StatusPreparing)
	}
	if order.OrderNumber == nil || *order.OrderNumber != 1 {
		t.Errorf("order number = %v, want 1", order.OrderNumber)
	}
	if order.TotalPrice != 25.00 {
		t.Errorf("total = %v, want 25.00", order.TotalPrice)
	}
	if order.CustomerName == nil || *order.CustomerName != "Asel Nur" {
		t.Errorf("customer name not captured: %v", order.CustomerName)
	}

	// The cart is gone; a new add starts a fresh PENDING order.
	if _, err := store.PendingOrder(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected no pending order after checkout, got %v", err)
	}
}

func TestCheckout_InvalidDetails(t *testing.T) {
	svc, store, pizza := newTestService(t)
	ctx := context.Background()
	fillCart(t, store, 1, pizza, 1)

	details := validDetails()
	details.Phone = ""
	_, err := svc.Checkout(ctx, 1, details, "req")

	var verr models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "customer_phone" {
		t.Errorf("field = %q, want %q", verr.Field, "customer_phone")
	}

	// The cart is untouched by the failed checkout.
	order, err := store.PendingOrder(ctx, 1)
	if err != nil {
		t.Fatalf("PendingOrder returned error: %v", err)
	}
	if order.Status != models.StatusPending {
		t.Errorf("status = %s, want %s", order.Status, models.StatusPending)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	svc, store, pizza := newTestService(t)
	ctx := context.Background()

	t.Run("no cart at all", func(t *testing.T) {
		if _, err := svc.Checkout(ctx, 5, validDetails(), "req"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("cart emptied before checkout", func(t *testing.T) {
		fillCart(t, store, 6, pizza, 1)
		if err := store.RemoveCartItem(ctx, 6, pizza.ID); err != nil {
			t.Fatalf("RemoveCartItem returned error: %v", err)
		}
		if _, err := svc.Checkout(ctx, 6, validDetails(), "req"); !errors.Is(err, storage.ErrEmptyOrder) {
			t.Errorf("expected ErrEmptyOrder, got %v", err)
		}
		// The empty cart stays PENDING, no number allocated.
		order, err := store.PendingOrder(ctx, 6)
		if err != nil {
			t.Fatalf("PendingOrder returned error: %v", err)
		}
		if order.OrderNumber != nil {
			t.Errorf("order number allocated for rejected checkout: %d", *order.OrderNumber)
		}
	})
}

func TestCheckout_AppliesBestOffer(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	item := store.SeedMenuItem(models.MenuItem{Name: "Feast", Price: 50.00})
	store.SeedOffer(models.Offer{Title: "Small", DiscountAmount: 10, MinOrderAmount: 50, IsActive: true})
	store.SeedOffer(models.Offer{Title: "Big", DiscountAmount: 50, MinOrderAmount: 200, IsActive: true})
	fillCart(t, store, 1, item, 2) // subtotal 100.00

	order, err := svc.Checkout(ctx, 1, validDetails(), "req")
	if err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}
	if order.TotalPrice != 100.00 {
		t.Errorf("total = %v, want 100.00", order.TotalPrice)
	}
	if order.DiscountAmount != 10.00 {
		t.Errorf("discount = %v, want 10.00", order.DiscountAmount)
	}
	if order.FinalTotal() != 90.00 {
		t.Errorf("final total = %v, want 90.00", order.FinalTotal())
	}
	if order.AppliedOfferID == nil {
		t.Error("expected applied offer to be recorded")
	}
}

func TestCheckout_ConcurrentNumbersAreGapless(t *testing.T) {
	svc, store, pizza := newTestService(t)
	ctx := context.Background()
	const n = 25

	for u := int64(1); u <= n; u++ {
		fillCart(t, store, u, pizza, 1)
	}

	numbers := make(chan int64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for u := int64(1); u <= n; u++ {
		go func(userID int64) {
			defer wg.Done()
			order, err := svc.Checkout(ctx, userID, validDetails(), "req")
			if err != nil {
				t.Errorf("Checkout for user %d returned error: %v", userID, err)
				return
			}
			numbers <- *order.OrderNumber
		}(u)
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int64]bool, n)
	for number := range numbers {
		if seen[number] {
			t.Errorf("order number %d allocated twice", number)
		}
		seen[number] = true
	}
	for want := int64(1); want <= n; want++ {
		if !seen[want] {
			t.Errorf("order number %d missing from sequence", want)
		}
	}
}

func TestOrderNow(t *testing.T) {
	svc, _, pizza := newTestService(t)
	ctx := context.Background()

	order, err := svc.OrderNow(ctx, 1, pizza.ID, validDetails(), "req")
	if err != nil {
		t.Fatalf("OrderNow returned error: %v", err)
	}
	if order.Status != models.StatusCompleted {
		t.Errorf("status = %s, want %s", order.Status, models.StatusCompleted)
	}
	if order.OrderNumber == nil || *order.OrderNumber != 1 {
		t.Errorf("order number = %v, want 1", order.OrderNumber)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 1 || order.Items[0].Price != 12.50 {
		t.Errorf("unexpected items: %+v", order.Items)
	}
}

func TestOrderNow_UnknownItem(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.OrderNow(context.Background(), 1, 9999, validDetails(), "req"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	cancellable := []models.OrderStatus{
		models.StatusPreparing,
		models.StatusOut,
	}
	for _, status := range cancellable {
		t.Run(string(status), func(t *testing.T) {
			svc, store, pizza := newTestService(t)
			ctx := context.Background()
			fillCart(t, store, 1, pizza, 2)
			placed, err := svc.Checkout(ctx, 1, validDetails(), "req")
			if err != nil {
				t.Fatalf("Checkout returned error: %v", err)
			}
			for _, step := range pathTo(status) {
				if _, err := svc.AdvanceStatus(ctx, placed.ID, step, "staff", "req"); err != nil {
					t.Fatalf("AdvanceStatus to %s returned error: %v", step, err)
				}
			}

			order, err := svc.Cancel(ctx, 1, placed.ID, "req")
			if err != nil {
				t.Fatalf("Cancel returned error: %v", err)
			}
			if order.Status != models.StatusCancelled {
				t.Errorf("status = %s, want %s", order.Status, models.StatusCancelled)
			}
			// Cancellation keeps the number and the items.
			if order.OrderNumber == nil || *order.OrderNumber != *placed.OrderNumber {
				t.Errorf("order number changed on cancel: %v", order.OrderNumber)
			}
			if len(order.Items) != len(placed.Items) {
				t.Errorf("items changed on cancel: %d vs %d", len(order.Items), len(placed.Items))
			}
		})
	}

	t.Run("COMPLETED", func(t *testing.T) {
		svc, _, pizza := newTestService(t)
		ctx := context.Background()
		placed, err := svc.OrderNow(ctx, 1, pizza.ID, validDetails(), "req")
		if err != nil {
			t.Fatalf("OrderNow returned error: %v", err)
		}

		order, err := svc.Cancel(ctx, 1, placed.ID, "req")
		if err != nil {
			t.Fatalf("Cancel returned error: %v", err)
		}
		if order.Status != models.StatusCancelled {
			t.Errorf("status = %s, want %s", order.Status, models.StatusCancelled)
		}
	})

	t.Run("DELIVERED is final", func(t *testing.T) {
		svc, store, pizza := newTestService(t)
		ctx := context.Background()
		fillCart(t, store, 1, pizza, 1)
		placed, err := svc.Checkout(ctx, 1, validDetails(), "req")
		if err != nil {
			t.Fatalf("Checkout returned error: %v", err)
		}
		for _, step := range pathTo(models.StatusDelivered) {
			if _, err := svc.AdvanceStatus(ctx, placed.ID, step, "staff", "req"); err != nil {
				t.Fatalf("AdvanceStatus to %s returned error: %v", step, err)
			}
		}

		_, err = svc.Cancel(ctx, 1, placed.ID, "req")
		var terr *models.TransitionError
		if !errors.As(err, &terr) {
			t.Fatalf("expected TransitionError, got %v", err)
		}
		order, err := svc.Detail(ctx, 1, placed.ID)
		if err != nil {
			t.Fatalf("Detail returned error: %v", err)
		}
		if order.Status != models.StatusDelivered {
			t.Errorf("status changed by rejected cancel: %s", order.Status)
		}
	})

	t.Run("foreign order is not found", func(t *testing.T) {
		svc, store, pizza := newTestService(t)
		ctx := context.Background()
		fillCart(t, store, 1, pizza, 1)
		placed, err := svc.Checkout(ctx, 1, validDetails(), "req")
		if err != nil {
			t.Fatalf("Checkout returned error: %v", err)
		}
		if _, err := svc.Cancel(ctx, 2, placed.ID, "req"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound for another user's order, got %v", err)
		}
	})
}

// pathTo returns the staff transitions that move a freshly placed
// (PREPARING) order to the wanted status.
func pathTo(status models.OrderStatus) []models.OrderStatus {
	switch status {
	case models.StatusOut:
		return []models.OrderStatus{models.StatusOut}
	case models.StatusDelivered:
		return []models.OrderStatus{models.StatusOut, models.StatusDelivered}
	default:
		return nil
	}
}

func TestAdvanceStatus_Illegal(t *testing.T) {
	svc, store, pizza := newTestService(t)
	ctx := context.Background()
	fillCart(t, store, 1, pizza, 1)
	placed, err := svc.Checkout(ctx, 1, validDetails(), "req")
	if err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}

	_, err = svc.AdvanceStatus(ctx, placed.ID, models.StatusDelivered, "staff", "req")
	var terr *models.TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransitionError for PREPARING -> DELIVERED, got %v", err)
	}

	if _, err := svc.AdvanceStatus(ctx, placed.ID, models.OrderStatus("bogus"), "staff", "req"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestHistory(t *testing.T) {
	svc, store, pizza := newTestService(t)
	ctx := context.Background()
	fillCart(t, store, 1, pizza, 1)
	placed, err := svc.Checkout(ctx, 1, validDetails(), "req")
	if err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}
	if _, err := svc.AdvanceStatus(ctx, placed.ID, models.StatusOut, "staff", "req"); err != nil {
		t.Fatalf("AdvanceStatus returned error: %v", err)
	}

	history, err := svc.History(ctx, 1, placed.ID)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	want := []models.OrderStatus{models.StatusPreparing, models.StatusOut}
	if len(history) != len(want) {
		t.Fatalf("history length = %d, want %d", len(history), len(want))
	}
	for i, change := range history {
		if change.Status != want[i] {
			t.Errorf("history[%d] = %s, want %s", i, change.Status, want[i])
		}
	}

	if _, err := svc.History(ctx, 2, placed.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user's history, got %v", err)
	}
}

func TestMyOrders_ExcludesCart(t *testing.T) {
	svc, store, pizza := newTestService(t)
	ctx := context.Background()

	fillCart(t, store, 1, pizza, 1)
	if _, err := svc.Checkout(ctx, 1, validDetails(), "req"); err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}
	// A new cart in progress must not appear in the order list.
	fillCart(t, store, 1, pizza, 1)

	orders, err := svc.MyOrders(ctx, 1)
	if err != nil {
		t.Fatalf("MyOrders returned error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 finalized order, got %d", len(orders))
	}
	if orders[0].Status == models.StatusPending {
		t.Error("order list leaked the PENDING cart")
	}
}

func TestPublisherReceivesEvents(t *testing.T) {
	store := storage.NewMemory()
	pizza := store.SeedMenuItem(models.MenuItem{Name: "Margherita", Price: 12.50})
	pub := &recordingPublisher{}
	svc := NewService(store, pub, logger.New("order-test", "error"))
	ctx := context.Background()

	fillCart(t, store, 1, pizza, 1)
	placed, err := svc.Checkout(ctx, 1, validDetails(), "req")
	if err != nil {
		t.Fatalf("Checkout returned error: %v", err)
	}
	if _, err := svc.Cancel(ctx, 1, placed.ID, "req"); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}

	if len(pub.routingKeys) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.routingKeys))
	}
	if pub.routingKeys[0] != routingKeyPlaced || pub.routingKeys[1] != routingKeyCancelled {
		t.Errorf("routing keys = %v", pub.routingKeys)
	}
	event, ok := pub.events[0].(Event)
	if !ok {
		t.Fatalf("unexpected event type %T", pub.events[0])
	}
	if event.OrderID != placed.ID || event.Status != models.StatusPreparing {
		t.Errorf("unexpected placed event: %+v", event)
	}
}
