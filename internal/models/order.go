package models

import (
	"fmt"
	"math"
	"time"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusPreparing OrderStatus = "PREPARING"
	StatusOut       OrderStatus = "OUT"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusCompleted OrderStatus = "COMPLETED"
)

// transitions encodes the legal moves of the order state machine.
// An order starts as PENDING (the cart); checkout moves it to PREPARING,
// an immediate single-item order moves it straight to COMPLETED.
// DELIVERED and CANCELLED are terminal.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusPreparing, StatusCompleted, StatusCancelled},
	StatusPreparing: {StatusOut, StatusCancelled},
	StatusOut:       {StatusDelivered, StatusCancelled},
	StatusCompleted: {StatusCancelled},
	StatusDelivered: {},
	StatusCancelled: {},
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s OrderStatus) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError is returned when an illegal status move is attempted
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal order status transition %s -> %s", e.From, e.To)
}

// Transition validates a status move against the transition table.
func Transition(from, to OrderStatus) (OrderStatus, error) {
	if !CanTransition(from, to) {
		return from, &TransitionError{From: from, To: to}
	}
	return to, nil
}

// OrderItem is a line within an order. Price is a snapshot of the menu
// item's price at add-time and never follows later catalog edits.
// MenuItemID is nullable: it survives the referenced item being removed
// from the catalog.
type OrderItem struct {
	ID         int64   `json:"id,omitempty" db:"id"`
	OrderID    int64   `json:"order_id,omitempty" db:"order_id"`
	MenuItemID *int64  `json:"menu_item_id,omitempty" db:"menu_item_id"`
	Name       string  `json:"name" db:"name"`
	Quantity   int     `json:"quantity" db:"quantity"`
	Price      float64 `json:"price" db:"price"`
}

// Subtotal returns price x quantity for the line.
func (i OrderItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

// Order is the single aggregate for both the cart and the finalized order.
// While Status is PENDING it acts as the user's cart; OrderNumber stays nil
// until finalization and is immutable afterwards.
type Order struct {
	ID              int64       `json:"id" db:"id"`
	UserID          int64       `json:"user_id" db:"user_id"`
	Status          OrderStatus `json:"status" db:"status"`
	OrderNumber     *int64      `json:"order_number,omitempty" db:"order_number"`
	TotalPrice      float64     `json:"total_price" db:"total_price"`
	DiscountAmount  float64     `json:"discount_amount" db:"discount_amount"`
	AppliedOfferID  *int64      `json:"applied_offer_id,omitempty" db:"applied_offer_id"`
	CustomerName    *string     `json:"customer_name,omitempty" db:"customer_name"`
	CustomerPhone   *string     `json:"customer_phone,omitempty" db:"customer_phone"`
	CustomerAddress *string     `json:"customer_address,omitempty" db:"customer_address"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
	Items           []OrderItem `json:"items"`
}

// ItemsTotal recomputes the sum of line subtotals. TotalPrice must equal
// this after every item mutation; it is never trusted as input.
func (o *Order) ItemsTotal() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.Subtotal()
	}
	return total
}

// FinalTotal is the user-facing total after the applied discount,
// rounded to cents and never negative.
func (o *Order) FinalTotal() float64 {
	final := o.TotalPrice - o.DiscountAmount
	if final < 0 {
		final = 0
	}
	return RoundCents(final)
}

// CanCancel reports whether the order may still be cancelled.
func (o *Order) CanCancel() bool {
	return CanTransition(o.Status, StatusCancelled)
}

// IsEmpty reports whether the order has no line items.
func (o *Order) IsEmpty() bool {
	return len(o.Items) == 0
}

// CustomerDetails carries the delivery fields attached at checkout
type CustomerDetails struct {
	Name    string `json:"customer_name"`
	Phone   string `json:"customer_phone"`
	Address string `json:"customer_address"`
}

// ValidationError describes a rejected request field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the customer details required to finalize an order.
func (d *CustomerDetails) Validate() error {
	if d.Name == "" {
		return ValidationError{Field: "customer_name", Message: "customer name is required"}
	}
	if len(d.Name) > 200 {
		return ValidationError{Field: "customer_name", Message: "customer name must not exceed 200 characters"}
	}
	if d.Phone == "" {
		return ValidationError{Field: "customer_phone", Message: "customer phone is required"}
	}
	if len(d.Phone) > 15 {
		return ValidationError{Field: "customer_phone", Message: "customer phone must not exceed 15 characters"}
	}
	if d.Address == "" {
		return ValidationError{Field: "customer_address", Message: "customer address is required"}
	}
	return nil
}

// StatusChange is an entry in an order's status history
type StatusChange struct {
	Status    OrderStatus `json:"status" db:"status"`
	ChangedBy string      `json:"changed_by" db:"changed_by"`
	ChangedAt time.Time   `json:"changed_at" db:"changed_at"`
	Notes     *string     `json:"notes,omitempty" db:"notes"`
}

// RoundCents rounds an amount to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
