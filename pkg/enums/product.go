package enums

import "fmt"

// ProductUnit maps to the product_unit enum in Postgres.
type ProductUnit string

const (
	ProductUnitKilogram ProductUnit = "kg"
	ProductUnitGram     ProductUnit = "g"
	ProductUnitLiter    ProductUnit = "l"
	ProductUnitMillilit ProductUnit = "ml"
	ProductUnitPiece    ProductUnit = "piece"
	ProductUnitDozen    ProductUnit = "dozen"
	ProductUnitBunch    ProductUnit = "bunch"
)

var validProductUnits = []ProductUnit{
	ProductUnitKilogram,
	ProductUnitGram,
	ProductUnitLiter,
	ProductUnitMillilit,
	ProductUnitPiece,
	ProductUnitDozen,
	ProductUnitBunch,
}

// String implements fmt.Stringer.
func (p ProductUnit) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductUnit.
func (p ProductUnit) IsValid() bool {
	for _, candidate := range validProductUnits {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductUnit converts raw input into a ProductUnit.
func ParseProductUnit(value string) (ProductUnit, error) {
	for _, candidate := range validProductUnits {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product unit %q", value)
}

// DiscountType distinguishes percentage from fixed product discounts.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

var validDiscountTypes = []DiscountType{
	DiscountTypePercentage,
	DiscountTypeFixed,
}

// IsValid reports whether the value is a known DiscountType.
func (d DiscountType) IsValid() bool {
	for _, candidate := range validDiscountTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDiscountType converts raw input into a DiscountType.
func ParseDiscountType(value string) (DiscountType, error) {
	for _, candidate := range validDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount type %q", value)
}
