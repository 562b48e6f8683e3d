package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"foodcourt/internal/database"
	"foodcourt/internal/models"
	"foodcourt/internal/services/offer"
)

const orderColumns = `id, user_id, status, order_number, total_price, discount_amount,
	applied_offer_id, customer_name, customer_phone, customer_address, created_at, updated_at`

// Postgres implements Store on top of a pgx connection pool.
type Postgres struct {
	db *database.DB
}

// NewPostgres creates a Postgres-backed store.
func NewPostgres(db *database.DB) *Postgres {
	return &Postgres{db: db}
}

// --- Catalog ---

func (p *Postgres) GetRestaurant(ctx context.Context, id int64) (*models.Restaurant, error) {
	var r models.Restaurant
	err := p.db.Pool.QueryRow(ctx,
		`SELECT id, name, location, is_popular FROM restaurants WHERE id = $1`, id).
		Scan(&r.ID, &r.Name, &r.Location, &r.IsPopular)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get restaurant: %w", err)
	}
	return &r, nil
}

func (p *Postgres) ListRestaurants(ctx context.Context) ([]models.Restaurant, error) {
	rows, err := p.db.Pool.Query(ctx,
		`SELECT id, name, location, is_popular FROM restaurants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	defer rows.Close()

	var restaurants []models.Restaurant
	for rows.Next() {
		var r models.Restaurant
		if err := rows.Scan(&r.ID, &r.Name, &r.Location, &r.IsPopular); err != nil {
			return nil, err
		}
		restaurants = append(restaurants, r)
	}
	return restaurants, rows.Err()
}

const menuItemColumns = `id, restaurant_id, category_id, offer_id, name, description, price, is_trending`

func scanMenuItem(row pgx.Row) (*models.MenuItem, error) {
	var m models.MenuItem
	err := row.Scan(&m.ID, &m.RestaurantID, &m.CategoryID, &m.OfferID,
		&m.Name, &m.Description, &m.Price, &m.IsTrending)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *Postgres) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	item, err := scanMenuItem(p.db.Pool.QueryRow(ctx,
		`SELECT `+menuItemColumns+` FROM menu_items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get menu item: %w", err)
	}
	return item, nil
}

func (p *Postgres) listMenuItems(ctx context.Context, query string, args ...any) ([]models.MenuItem, error) {
	rows, err := p.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}
	defer rows.Close()

	var items []models.MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (p *Postgres) ListMenu(ctx context.Context, restaurantID int64) ([]models.MenuItem, error) {
	return p.listMenuItems(ctx,
		`SELECT `+menuItemColumns+` FROM menu_items WHERE restaurant_id = $1 ORDER BY name`,
		restaurantID)
}

func (p *Postgres) ListTrending(ctx context.Context) ([]models.MenuItem, error) {
	return p.listMenuItems(ctx,
		`SELECT `+menuItemColumns+` FROM menu_items WHERE is_trending ORDER BY name`)
}

func (p *Postgres) ListActiveOffers(ctx context.Context) ([]models.Offer, error) {
	rows, err := p.db.Pool.Query(ctx,
		`SELECT id, title, description, discount_amount, min_order_amount, is_active
		 FROM offers WHERE is_active ORDER BY discount_amount DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	defer rows.Close()

	var offers []models.Offer
	for rows.Next() {
		var o models.Offer
		if err := rows.Scan(&o.ID, &o.Title, &o.Description,
			&o.DiscountAmount, &o.MinOrderAmount, &o.IsActive); err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// --- Favorites ---

func (p *Postgres) AddFavorite(ctx context.Context, userID, menuItemID int64) error {
	// Idempotent: the uniqueness constraint absorbs duplicate requests.
	_, err := p.db.Pool.Exec(ctx,
		`INSERT INTO favorites (user_id, menu_item_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, menu_item_id) DO NOTHING`,
		userID, menuItemID)
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

func (p *Postgres) RemoveFavorite(ctx context.Context, userID, menuItemID int64) error {
	_, err := p.db.Pool.Exec(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND menu_item_id = $2`,
		userID, menuItemID)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

func (p *Postgres) ListFavorites(ctx context.Context, userID int64) ([]models.MenuItem, error) {
	return p.listMenuItems(ctx,
		`SELECT m.id, m.restaurant_id, m.category_id, m.offer_id, m.name, m.description, m.price, m.is_trending
		 FROM favorites f JOIN menu_items m ON m.id = f.menu_item_id
		 WHERE f.user_id = $1 ORDER BY m.name`,
		userID)
}

// --- Cart ---

func (p *Postgres) AddItemToCart(ctx context.Context, userID int64, item *models.MenuItem) (*models.OrderItem, error) {
	var line models.OrderItem
	err := p.db.WithTx(ctx, func(tx pgx.Tx) error {
		// Get-or-create the pending order. The partial unique index on
		// (user_id) WHERE status = 'PENDING' makes this safe under
		// concurrent double-submission.
		var orderID int64
		err := tx.QueryRow(ctx,
			`INSERT INTO orders (user_id, status) VALUES ($1, 'PENDING')
			 ON CONFLICT (user_id) WHERE status = 'PENDING'
			 DO UPDATE SET updated_at = NOW()
			 RETURNING id`,
			userID).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("failed to get or create pending order: %w", err)
		}

		// Get-or-create the line. Price is snapshotted on first insert
		// and deliberately left alone on conflict.
		err = tx.QueryRow(ctx,
			`INSERT INTO order_items (order_id, menu_item_id, name, quantity, price)
			 VALUES ($1, $2, $3, 1, $4)
			 ON CONFLICT (order_id, menu_item_id)
			 DO UPDATE SET quantity = order_items.quantity + 1
			 RETURNING id, order_id, menu_item_id, name, quantity, price`,
			orderID, item.ID, item.Name, item.Price).
			Scan(&line.ID, &line.OrderID, &line.MenuItemID, &line.Name, &line.Quantity, &line.Price)
		if err != nil {
			return fmt.Errorf("failed to upsert order item: %w", err)
		}

		return p.recomputeTotal(ctx, tx, orderID)
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (p *Postgres) RemoveCartItem(ctx context.Context, userID, menuItemID int64) error {
	return p.db.WithTx(ctx, func(tx pgx.Tx) error {
		orderID, err := p.lockPendingOrder(ctx, tx, userID)
		if errors.Is(err, ErrNotFound) {
			return nil // no cart, nothing to do
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`DELETE FROM order_items WHERE order_id = $1 AND menu_item_id = $2`,
			orderID, menuItemID)
		if err != nil {
			return fmt.Errorf("failed to delete order item: %w", err)
		}

		return p.recomputeTotal(ctx, tx, orderID)
	})
}

func (p *Postgres) AdjustCartItemQuantity(ctx context.Context, userID, menuItemID int64, delta int) error {
	return p.db.WithTx(ctx, func(tx pgx.Tx) error {
		orderID, err := p.lockPendingOrder(ctx, tx, userID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var quantity int
		err = tx.QueryRow(ctx,
			`UPDATE order_items SET quantity = quantity + $3
			 WHERE order_id = $1 AND menu_item_id = $2 AND quantity + $3 >= 1
			 RETURNING quantity`,
			orderID, menuItemID, delta).Scan(&quantity)
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the line is missing (no-op) or the quantity would
			// drop below 1, which deletes the line.
			if delta < 0 {
				_, err = tx.Exec(ctx,
					`DELETE FROM order_items WHERE order_id = $1 AND menu_item_id = $2`,
					orderID, menuItemID)
				if err != nil {
					return fmt.Errorf("failed to delete order item: %w", err)
				}
			}
		} else if err != nil {
			return fmt.Errorf("failed to adjust quantity: %w", err)
		}

		return p.recomputeTotal(ctx, tx, orderID)
	})
}

func (p *Postgres) PendingOrder(ctx context.Context, userID int64) (*models.Order, error) {
	order, err := p.scanOrder(p.db.Pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 AND status = 'PENDING'`,
		userID))
	if err != nil {
		return nil, err
	}
	if err := p.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// lockPendingOrder locks the user's cart row for the rest of the
// transaction, serializing conflicting writes to the same order.
func (p *Postgres) lockPendingOrder(ctx context.Context, tx pgx.Tx, userID int64) (int64, error) {
	var orderID int64
	err := tx.QueryRow(ctx,
		`SELECT id FROM orders WHERE user_id = $1 AND status = 'PENDING' FOR UPDATE`,
		userID).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock pending order: %w", err)
	}
	return orderID, nil
}

// recomputeTotal persists total_price as the exact sum of the current
// line subtotals, inside the mutating transaction.
func (p *Postgres) recomputeTotal(ctx context.Context, tx pgx.Tx, orderID int64) error {
	_, err := tx.Exec(ctx,
		`UPDATE orders
		 SET total_price = COALESCE((SELECT SUM(price * quantity) FROM order_items WHERE order_id = $1), 0),
		     updated_at = NOW()
		 WHERE id = $1`,
		orderID)
	if err != nil {
		return fmt.Errorf("failed to recompute order total: %w", err)
	}
	return nil
}

// --- Orders ---

// allocateOrderNumber bumps the persisted counter and returns the next
// gapless number. The row lock taken by UPDATE is the mutual-exclusion
// critical section: two concurrent finalizations serialize here, and a
// rolled-back transaction rolls the counter back with it, so the
// sequence never gaps.
func allocateOrderNumber(ctx context.Context, tx pgx.Tx) (int64, error) {
	var number int64
	err := tx.QueryRow(ctx,
		`UPDATE order_number_seq SET last_number = last_number + 1 WHERE id = 1
		 RETURNING last_number`).Scan(&number)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate order number: %w", err)
	}
	return number, nil
}

func (p *Postgres) FinalizeOrder(ctx context.Context, userID int64, details models.CustomerDetails) (*models.Order, error) {
	var order *models.Order
	err := p.db.WithTx(ctx, func(tx pgx.Tx) error {
		orderID, err := p.lockPendingOrder(ctx, tx, userID)
		if err != nil {
			return err
		}

		var subtotal float64
		err = tx.QueryRow(ctx,
			`SELECT COALESCE(SUM(price * quantity), 0) FROM order_items WHERE order_id = $1`,
			orderID).Scan(&subtotal)
		if err != nil {
			return fmt.Errorf("failed to sum order items: %w", err)
		}
		if subtotal == 0 {
			var count int
			if err := tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM order_items WHERE order_id = $1`, orderID).Scan(&count); err != nil {
				return err
			}
			if count == 0 {
				return ErrEmptyOrder
			}
		}

		offers, err := p.activeOffersTx(ctx, tx)
		if err != nil {
			return err
		}
		best := offer.SelectBest(offers, subtotal)
		discount := offer.Discount(subtotal, best)
		var offerID *int64
		if best != nil {
			offerID = &best.ID
		}

		number, err := allocateOrderNumber(ctx, tx)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE orders
			 SET status = 'PREPARING', order_number = $2, total_price = $3,
			     discount_amount = $4, applied_offer_id = $5,
			     customer_name = $6, customer_phone = $7, customer_address = $8,
			     updated_at = NOW()
			 WHERE id = $1`,
			orderID, number, subtotal, discount, offerID,
			details.Name, details.Phone, details.Address)
		if err != nil {
			return fmt.Errorf("failed to finalize order: %w", err)
		}

		if err := p.logStatus(ctx, tx, orderID, models.StatusPreparing, "checkout"); err != nil {
			return err
		}

		order, err = p.orderByIDTx(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (p *Postgres) PlaceImmediateOrder(ctx context.Context, userID int64, item *models.MenuItem, details models.CustomerDetails) (*models.Order, error) {
	var order *models.Order
	err := p.db.WithTx(ctx, func(tx pgx.Tx) error {
		number, err := allocateOrderNumber(ctx, tx)
		if err != nil {
			return err
		}

		var orderID int64
		err = tx.QueryRow(ctx,
			`INSERT INTO orders (user_id, status, order_number, total_price,
			                     customer_name, customer_phone, customer_address)
			 VALUES ($1, 'COMPLETED', $2, $3, $4, $5, $6)
			 RETURNING id`,
			userID, number, item.Price, details.Name, details.Phone, details.Address).
			Scan(&orderID)
		if err != nil {
			return fmt.Errorf("failed to create immediate order: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (order_id, menu_item_id, name, quantity, price)
			 VALUES ($1, $2, $3, 1, $4)`,
			orderID, item.ID, item.Name, item.Price)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}

		if err := p.logStatus(ctx, tx, orderID, models.StatusCompleted, "order-now"); err != nil {
			return err
		}

		order, err = p.orderByIDTx(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (p *Postgres) CancelOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	return p.transition(ctx, orderID, &userID, models.StatusCancelled, "customer")
}

func (p *Postgres) AdvanceOrderStatus(ctx context.Context, orderID int64, to models.OrderStatus, changedBy string) (*models.Order, error) {
	if !models.ValidStatus(to) {
		return nil, &models.TransitionError{To: to}
	}
	return p.transition(ctx, orderID, nil, to, changedBy)
}

// transition applies a status move under a row lock, validated against
// the transition table. When userID is non-nil the lookup is scoped to
// the owner, so a foreign order surfaces as not-found.
func (p *Postgres) transition(ctx context.Context, orderID int64, userID *int64, to models.OrderStatus, changedBy string) (*models.Order, error) {
	var order *models.Order
	err := p.db.WithTx(ctx, func(tx pgx.Tx) error {
		query := `SELECT status FROM orders WHERE id = $1 FOR UPDATE`
		args := []any{orderID}
		if userID != nil {
			query = `SELECT status FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE`
			args = append(args, *userID)
		}

		var current models.OrderStatus
		err := tx.QueryRow(ctx, query, args...).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}

		next, err := models.Transition(current, to)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`,
			orderID, next)
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		if err := p.logStatus(ctx, tx, orderID, next, changedBy); err != nil {
			return err
		}

		order, err = p.orderByIDTx(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (p *Postgres) GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	order, err := p.scanOrder(p.db.Pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`,
		orderID, userID))
	if err != nil {
		return nil, err
	}
	if err := p.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (p *Postgres) ListOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	rows, err := p.db.Pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE user_id = $1 AND status <> 'PENDING'
		 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := p.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if err := p.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (p *Postgres) StatusHistory(ctx context.Context, userID, orderID int64) ([]models.StatusChange, error) {
	if _, err := p.GetOrder(ctx, userID, orderID); err != nil {
		return nil, err
	}

	rows, err := p.db.Pool.Query(ctx,
		`SELECT status, changed_by, changed_at, notes
		 FROM order_status_log WHERE order_id = $1 ORDER BY changed_at ASC`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	defer rows.Close()

	var history []models.StatusChange
	for rows.Next() {
		var c models.StatusChange
		if err := rows.Scan(&c.Status, &c.ChangedBy, &c.ChangedAt, &c.Notes); err != nil {
			return nil, err
		}
		history = append(history, c)
	}
	return history, rows.Err()
}

// --- helpers ---

func (p *Postgres) scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.OrderNumber, &o.TotalPrice,
		&o.DiscountAmount, &o.AppliedOfferID, &o.CustomerName, &o.CustomerPhone,
		&o.CustomerAddress, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	return &o, nil
}

func (p *Postgres) loadItems(ctx context.Context, order *models.Order) error {
	rows, err := p.db.Pool.Query(ctx,
		`SELECT id, order_id, menu_item_id, name, quantity, price
		 FROM order_items WHERE order_id = $1 ORDER BY id ASC`,
		order.ID)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	order.Items = nil
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MenuItemID,
			&item.Name, &item.Quantity, &item.Price); err != nil {
			return err
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

func (p *Postgres) orderByIDTx(ctx context.Context, tx pgx.Tx, orderID int64) (*models.Order, error) {
	order, err := p.scanOrder(tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx,
		`SELECT id, order_id, menu_item_id, name, quantity, price
		 FROM order_items WHERE order_id = $1 ORDER BY id ASC`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MenuItemID,
			&item.Name, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}
	return order, rows.Err()
}

func (p *Postgres) activeOffersTx(ctx context.Context, tx pgx.Tx) ([]models.Offer, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, title, description, discount_amount, min_order_amount, is_active
		 FROM offers WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	defer rows.Close()

	var offers []models.Offer
	for rows.Next() {
		var o models.Offer
		if err := rows.Scan(&o.ID, &o.Title, &o.Description,
			&o.DiscountAmount, &o.MinOrderAmount, &o.IsActive); err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

func (p *Postgres) logStatus(ctx context.Context, tx pgx.Tx, orderID int64, status models.OrderStatus, changedBy string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO order_status_log (order_id, status, changed_by) VALUES ($1, $2, $3)`,
		orderID, status, changedBy)
	if err != nil {
		return fmt.Errorf("failed to log status change: %w", err)
	}
	return nil
}
