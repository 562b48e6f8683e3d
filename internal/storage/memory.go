package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"foodcourt/internal/models"
	"foodcourt/internal/services/offer"
)

// Memory is an in-memory Store. A single mutex serializes every
// compound operation, giving the same atomicity the Postgres store gets
// from transactions and uniqueness constraints.
type Memory struct {
	mu sync.Mutex

	restaurants map[int64]models.Restaurant
	menuItems   map[int64]models.MenuItem
	offers      map[int64]models.Offer
	favorites   map[int64]map[int64]struct{} // userID -> menuItemID set

	orders     map[int64]*models.Order
	statusLogs map[int64][]models.StatusChange

	nextID      int64
	orderNumber int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		restaurants: make(map[int64]models.Restaurant),
		menuItems:   make(map[int64]models.MenuItem),
		offers:      make(map[int64]models.Offer),
		favorites:   make(map[int64]map[int64]struct{}),
		orders:      make(map[int64]*models.Order),
		statusLogs:  make(map[int64][]models.StatusChange),
	}
}

func (m *Memory) nextid() int64 {
	m.nextID++
	return m.nextID
}

// SeedRestaurant inserts a restaurant and returns it with an ID assigned.
func (m *Memory) SeedRestaurant(r models.Restaurant) models.Restaurant {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.nextid()
	m.restaurants[r.ID] = r
	return r
}

// SeedMenuItem inserts a menu item and returns it with an ID assigned.
func (m *Memory) SeedMenuItem(item models.MenuItem) models.MenuItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.nextid()
	m.menuItems[item.ID] = item
	return item
}

// SeedOffer inserts an offer and returns it with an ID assigned.
func (m *Memory) SeedOffer(o models.Offer) models.Offer {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = m.nextid()
	m.offers[o.ID] = o
	return o
}

// SetMenuItemPrice applies an administrative price edit to the catalog.
// Existing order lines keep their snapshotted price.
func (m *Memory) SetMenuItemPrice(menuItemID int64, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.menuItems[menuItemID]; ok {
		item.Price = price
		m.menuItems[menuItemID] = item
	}
}

// --- Catalog ---

func (m *Memory) GetRestaurant(_ context.Context, id int64) (*models.Restaurant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.restaurants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) ListRestaurants(_ context.Context) ([]models.Restaurant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Restaurant, 0, len(m.restaurants))
	for _, r := range m.restaurants {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) GetMenuItem(_ context.Context, id int64) (*models.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.menuItems[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

func (m *Memory) ListMenu(_ context.Context, restaurantID int64) ([]models.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MenuItem
	for _, item := range m.menuItems {
		if item.RestaurantID == restaurantID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) ListTrending(_ context.Context) ([]models.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MenuItem
	for _, item := range m.menuItems {
		if item.IsTrending {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) ListActiveOffers(_ context.Context) ([]models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeOffersLocked(), nil
}

func (m *Memory) activeOffersLocked() []models.Offer {
	var out []models.Offer
	for _, o := range m.offers {
		if o.IsActive {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DiscountAmount > out[j].DiscountAmount })
	return out
}

// --- Favorites ---

func (m *Memory) AddFavorite(_ context.Context, userID, menuItemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.favorites[userID] == nil {
		m.favorites[userID] = make(map[int64]struct{})
	}
	m.favorites[userID][menuItemID] = struct{}{}
	return nil
}

func (m *Memory) RemoveFavorite(_ context.Context, userID, menuItemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.favorites[userID], menuItemID)
	return nil
}

func (m *Memory) ListFavorites(_ context.Context, userID int64) ([]models.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MenuItem
	for id := range m.favorites[userID] {
		if item, ok := m.menuItems[id]; ok {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- Cart ---

func (m *Memory) AddItemToCart(_ context.Context, userID int64, item *models.MenuItem) (*models.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := m.pendingOrderLocked(userID)
	if order == nil {
		order = &models.Order{
			ID:        m.nextid(),
			UserID:    userID,
			Status:    models.StatusPending,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		m.orders[order.ID] = order
	}

	itemID := item.ID
	for i := range order.Items {
		line := &order.Items[i]
		if line.MenuItemID != nil && *line.MenuItemID == itemID {
			line.Quantity++
			m.recomputeTotalLocked(order)
			out := *line
			return &out, nil
		}
	}

	line := models.OrderItem{
		ID:         m.nextid(),
		OrderID:    order.ID,
		MenuItemID: &itemID,
		Name:       item.Name,
		Quantity:   1,
		Price:      item.Price, // snapshot, never follows catalog edits
	}
	order.Items = append(order.Items, line)
	m.recomputeTotalLocked(order)
	return &line, nil
}

func (m *Memory) RemoveCartItem(_ context.Context, userID, menuItemID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := m.pendingOrderLocked(userID)
	if order == nil {
		return nil
	}
	for i := range order.Items {
		if order.Items[i].MenuItemID != nil && *order.Items[i].MenuItemID == menuItemID {
			order.Items = append(order.Items[:i], order.Items[i+1:]...)
			break
		}
	}
	m.recomputeTotalLocked(order)
	return nil
}

func (m *Memory) AdjustCartItemQuantity(_ context.Context, userID, menuItemID int64, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := m.pendingOrderLocked(userID)
	if order == nil {
		return nil
	}
	for i := range order.Items {
		line := &order.Items[i]
		if line.MenuItemID == nil || *line.MenuItemID != menuItemID {
			continue
		}
		if line.Quantity+delta < 1 {
			order.Items = append(order.Items[:i], order.Items[i+1:]...)
		} else {
			line.Quantity += delta
		}
		break
	}
	m.recomputeTotalLocked(order)
	return nil
}

func (m *Memory) PendingOrder(_ context.Context, userID int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := m.pendingOrderLocked(userID)
	if order == nil {
		return nil, ErrNotFound
	}
	out := m.cloneLocked(order)
	return out, nil
}

func (m *Memory) pendingOrderLocked(userID int64) *models.Order {
	for _, order := range m.orders {
		if order.UserID == userID && order.Status == models.StatusPending {
			return order
		}
	}
	return nil
}

func (m *Memory) recomputeTotalLocked(order *models.Order) {
	order.TotalPrice = order.ItemsTotal()
	order.UpdatedAt = time.Now()
}

// --- Orders ---

func (m *Memory) FinalizeOrder(_ context.Context, userID int64, details models.CustomerDetails) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := m.pendingOrderLocked(userID)
	if order == nil {
		return nil, ErrNotFound
	}
	if order.IsEmpty() {
		return nil, ErrEmptyOrder
	}

	m.recomputeTotalLocked(order)
	best := offer.SelectBest(m.activeOffersLocked(), order.TotalPrice)
	order.DiscountAmount = offer.Discount(order.TotalPrice, best)
	if best != nil {
		order.AppliedOfferID = &best.ID
	}

	m.orderNumber++
	number := m.orderNumber
	order.OrderNumber = &number
	order.Status = models.StatusPreparing
	order.CustomerName = &details.Name
	order.CustomerPhone = &details.Phone
	order.CustomerAddress = &details.Address
	order.UpdatedAt = time.Now()
	m.logStatusLocked(order.ID, models.StatusPreparing, "checkout")

	return m.cloneLocked(order), nil
}

func (m *Memory) PlaceImmediateOrder(_ context.Context, userID int64, item *models.MenuItem, details models.CustomerDetails) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.orderNumber++
	number := m.orderNumber
	itemID := item.ID

	order := &models.Order{
		ID:              m.nextid(),
		UserID:          userID,
		Status:          models.StatusCompleted,
		OrderNumber:     &number,
		TotalPrice:      item.Price,
		CustomerName:    &details.Name,
		CustomerPhone:   &details.Phone,
		CustomerAddress: &details.Address,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	order.Items = []models.OrderItem{{
		ID:         m.nextid(),
		OrderID:    order.ID,
		MenuItemID: &itemID,
		Name:       item.Name,
		Quantity:   1,
		Price:      item.Price,
	}}
	m.orders[order.ID] = order
	m.logStatusLocked(order.ID, models.StatusCompleted, "order-now")

	return m.cloneLocked(order), nil
}

func (m *Memory) CancelOrder(_ context.Context, userID, orderID int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok || order.UserID != userID {
		return nil, ErrNotFound
	}

	next, err := models.Transition(order.Status, models.StatusCancelled)
	if err != nil {
		return nil, err
	}
	order.Status = next
	order.UpdatedAt = time.Now()
	m.logStatusLocked(order.ID, next, "customer")

	return m.cloneLocked(order), nil
}

func (m *Memory) AdvanceOrderStatus(_ context.Context, orderID int64, to models.OrderStatus, changedBy string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !models.ValidStatus(to) {
		return nil, &models.TransitionError{To: to}
	}
	order, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}

	next, err := models.Transition(order.Status, to)
	if err != nil {
		return nil, err
	}
	order.Status = next
	order.UpdatedAt = time.Now()
	m.logStatusLocked(order.ID, next, changedBy)

	return m.cloneLocked(order), nil
}

func (m *Memory) GetOrder(_ context.Context, userID, orderID int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok || order.UserID != userID {
		return nil, ErrNotFound
	}
	return m.cloneLocked(order), nil
}

func (m *Memory) ListOrders(_ context.Context, userID int64) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Order
	for _, order := range m.orders {
		if order.UserID == userID && order.Status != models.StatusPending {
			out = append(out, *m.cloneLocked(order))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) StatusHistory(_ context.Context, userID, orderID int64) ([]models.StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok || order.UserID != userID {
		return nil, ErrNotFound
	}
	history := make([]models.StatusChange, len(m.statusLogs[orderID]))
	copy(history, m.statusLogs[orderID])
	return history, nil
}

func (m *Memory) logStatusLocked(orderID int64, status models.OrderStatus, changedBy string) {
	m.statusLogs[orderID] = append(m.statusLogs[orderID], models.StatusChange{
		Status:    status,
		ChangedBy: changedBy,
		ChangedAt: time.Now(),
	})
}

// cloneLocked copies an order so callers never share the store's view.
func (m *Memory) cloneLocked(order *models.Order) *models.Order {
	out := *order
	out.Items = make([]models.OrderItem, len(order.Items))
	copy(out.Items, order.Items)
	return &out
}
