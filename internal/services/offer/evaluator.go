// Package offer implements the promotional offer evaluator: given a cart
// subtotal, it selects the single best active offer. Offers never stack.
package offer

import (
	"foodcourt/internal/models"
)

// SelectBest picks the active offer with the largest discount among
// those whose minimum order amount is met by subtotal. It returns nil
// when no offer applies.
func SelectBest(offers []models.Offer, subtotal float64) *models.Offer {
	var best *models.Offer
	for i := range offers {
		o := &offers[i]
		if !o.IsActive || subtotal < o.MinOrderAmount {
			continue
		}
		if best == nil || o.DiscountAmount > best.DiscountAmount {
			best = o
		}
	}
	return best
}

// Discount returns the discount amount granted by o against subtotal.
// The discount never exceeds the subtotal, so the final total cannot go
// negative.
func Discount(subtotal float64, o *models.Offer) float64 {
	if o == nil {
		return 0
	}
	d := o.DiscountAmount
	if d > subtotal {
		d = subtotal
	}
	return models.RoundCents(d)
}

// FinalTotal returns the payable total after applying o to subtotal,
// rounded to cents.
func FinalTotal(subtotal float64, o *models.Offer) float64 {
	return models.RoundCents(subtotal - Discount(subtotal, o))
}
