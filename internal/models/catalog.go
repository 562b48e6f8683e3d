package models

// Restaurant represents a restaurant in the catalog
type Restaurant struct {
	ID        int64  `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Location  string `json:"location,omitempty" db:"location"`
	IsPopular bool   `json:"is_popular" db:"is_popular"`
}

// Category groups menu items
type Category struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Offer is a promotional rule granting a fixed discount once a
// minimum subtotal is met. At most one offer applies per order.
type Offer struct {
	ID             int64   `json:"id" db:"id"`
	Title          string  `json:"title" db:"title"`
	Description    string  `json:"description,omitempty" db:"description"`
	DiscountAmount float64 `json:"discount_amount" db:"discount_amount"`
	MinOrderAmount float64 `json:"min_order_amount" db:"min_order_amount"`
	IsActive       bool    `json:"is_active" db:"is_active"`
}

// MenuItem belongs to exactly one restaurant. Category and Offer are
// optional associations.
type MenuItem struct {
	ID           int64   `json:"id" db:"id"`
	RestaurantID int64   `json:"restaurant_id" db:"restaurant_id"`
	CategoryID   *int64  `json:"category_id,omitempty" db:"category_id"`
	OfferID      *int64  `json:"offer_id,omitempty" db:"offer_id"`
	Name         string  `json:"name" db:"name"`
	Description  string  `json:"description,omitempty" db:"description"`
	Price        float64 `json:"price" db:"price"`
	IsTrending   bool    `json:"is_trending" db:"is_trending"`
}
