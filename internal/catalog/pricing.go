package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// EffectivePrice returns the price a buyer pays at the given instant. A
// product may carry several time-bounded discounts; the cheapest active one
// wins.
func EffectivePrice(p *models.Product, now time.Time) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	best := BestDiscount(p, now)
	if best == nil {
		return p.Price
	}
	return discountedPrice(p.Price, *best)
}

// BestDiscount picks the active discount that yields the lowest price, or nil
// when no discount window covers the instant.
func BestDiscount(p *models.Product, now time.Time) *models.ProductDiscount {
	if p == nil {
		return nil
	}
	var best *models.ProductDiscount
	bestPrice := p.Price
	for i := range p.Discounts {
		d := &p.Discounts[i]
		if !d.ActiveAt(now) {
			continue
		}
		price := discountedPrice(p.Price, *d)
		if best == nil || price.LessThan(bestPrice) {
			best = d
			bestPrice = price
		}
	}
	return best
}

func discountedPrice(price decimal.Decimal, d models.ProductDiscount) decimal.Decimal {
	var out decimal.Decimal
	switch d.Type {
	case enums.DiscountTypePercentage:
		cut := price.Mul(d.Value).Div(hundred)
		out = price.Sub(cut)
	case enums.DiscountTypeFixed:
		out = price.Sub(d.Value)
	default:
		return price
	}

	if out.IsNegative() {
		out = decimal.Zero
	}
	return out.Round(2)
}
