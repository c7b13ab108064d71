package catalog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	"github.com/farmarket/farmarket-backend/pkg/enums"
)

func discountedProduct(price string, dtype enums.DiscountType, value string, start, end time.Time) *models.Product {
	return &models.Product{
		Price: decimal.RequireFromString(price),
		Discounts: []models.ProductDiscount{{
			Type:      dtype,
			Value:     decimal.RequireFromString(value),
			StartDate: start,
			EndDate:   end,
		}},
	}
}

func TestEffectivePriceWithoutDiscount(t *testing.T) {
	now := time.Now()
	p := &models.Product{Price: decimal.RequireFromString("149.90")}
	if got := EffectivePrice(p, now); !got.Equal(p.Price) {
		t.Fatalf("expected full price %s, got %s", p.Price, got)
	}
}

func TestEffectivePricePercentageDiscount(t *testing.T) {
	now := time.Now()
	p := discountedProduct("200.00", enums.DiscountTypePercentage, "25",
		now.Add(-time.Hour), now.Add(time.Hour))
	if got := EffectivePrice(p, now); !got.Equal(decimal.RequireFromString("150")) {
		t.Fatalf("expected 150, got %s", got)
	}
}

func TestEffectivePriceFixedDiscount(t *testing.T) {
	now := time.Now()
	p := discountedProduct("100.00", enums.DiscountTypeFixed, "30",
		now.Add(-time.Hour), now.Add(time.Hour))
	if got := EffectivePrice(p, now); !got.Equal(decimal.RequireFromString("70")) {
		t.Fatalf("expected 70, got %s", got)
	}
}

func TestEffectivePriceIgnoresFutureWindow(t *testing.T) {
	now := time.Now()
	p := discountedProduct("100.00", enums.DiscountTypePercentage, "50",
		now.Add(time.Hour), now.Add(2*time.Hour))
	if got := EffectivePrice(p, now); !got.Equal(p.Price) {
		t.Fatalf("future discount must not apply, got %s", got)
	}
}

func TestEffectivePriceIgnoresExpiredWindow(t *testing.T) {
	now := time.Now()
	p := discountedProduct("100.00", enums.DiscountTypeFixed, "20",
		now.Add(-2*time.Hour), now.Add(-time.Hour))
	if got := EffectivePrice(p, now); !got.Equal(p.Price) {
		t.Fatalf("expired discount must not apply, got %s", got)
	}
}

func TestEffectivePriceWindowBoundsAreInclusive(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)
	p := discountedProduct("100.00", enums.DiscountTypePercentage, "10", start, end)

	for _, at := range []time.Time{start, end} {
		if got := EffectivePrice(p, at); !got.Equal(decimal.RequireFromString("90")) {
			t.Fatalf("discount must apply at %s, got %s", at, got)
		}
	}
}

func TestEffectivePriceClampsToZero(t *testing.T) {
	now := time.Now()
	p := discountedProduct("50.00", enums.DiscountTypeFixed, "80",
		now.Add(-time.Hour), now.Add(time.Hour))
	if got := EffectivePrice(p, now); !got.IsZero() {
		t.Fatalf("oversized discount must clamp to zero, got %s", got)
	}
}

func TestEffectivePriceNilProduct(t *testing.T) {
	if got := EffectivePrice(nil, time.Now()); !got.IsZero() {
		t.Fatalf("nil product must price at zero, got %s", got)
	}
}

func TestEffectivePricePicksCheapestActiveDiscount(t *testing.T) {
	now := time.Now()
	p := &models.Product{
		Price: decimal.RequireFromString("200.00"),
		Discounts: []models.ProductDiscount{
			{
				Type:      enums.DiscountTypePercentage,
				Value:     decimal.RequireFromString("10"),
				StartDate: now.Add(-time.Hour),
				EndDate:   now.Add(time.Hour),
			},
			{
				// deepest cut, but the window has not opened yet
				Type:      enums.DiscountTypePercentage,
				Value:     decimal.RequireFromString("50"),
				StartDate: now.Add(time.Hour),
				EndDate:   now.Add(2 * time.Hour),
			},
			{
				Type:      enums.DiscountTypeFixed,
				Value:     decimal.RequireFromString("60"),
				StartDate: now.Add(-time.Hour),
				EndDate:   now.Add(time.Hour),
			},
		},
	}

	if got := EffectivePrice(p, now); !got.Equal(decimal.RequireFromString("140")) {
		t.Fatalf("expected the cheapest active discount to win, got %s", got)
	}
	best := BestDiscount(p, now)
	if best == nil || !best.Value.Equal(decimal.RequireFromString("60")) {
		t.Fatalf("expected the fixed 60 discount, got %+v", best)
	}
}
