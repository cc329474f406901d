// Package money implements the fixed-point decimal arithmetic mandated by
// spec.md §9 ("Decimal vs float"): unit prices carry 4 decimal places,
// amounts 2, quantities 6, all rounded HALF_UP. Grounded on
// original_source/backend/app/services/importers/common.py
// (_ceil_amount, _ceil_quantity, _calculate_line_amount), translated from
// Python's decimal.Decimal/ROUND_HALF_UP to github.com/shopspring/decimal,
// which rounds HALF_UP by default via decimal.Decimal.Round.
package money

import "github.com/shopspring/decimal"

// AmountExponent is the number of decimal places an amount is quantized to.
const AmountExponent = 2

// QuantityExponent is the number of decimal places a quantity is quantized to.
const QuantityExponent = 6

// UnitPriceExponent is the number of decimal places a unit price carries.
const UnitPriceExponent = 4

// CeilAmount rounds an amount HALF_UP to 2 decimal places, mirroring
// common.py's _ceil_amount. A nil input returns nil.
func CeilAmount(value *decimal.Decimal) *decimal.Decimal {
	if value == nil {
		return nil
	}
	rounded := value.Round(AmountExponent)
	return &rounded
}

// CeilQuantity rounds a quantity HALF_UP to 6 decimal places, mirroring
// common.py's _ceil_quantity. A nil input returns nil.
func CeilQuantity(value *decimal.Decimal) *decimal.Decimal {
	if value == nil {
		return nil
	}
	rounded := value.Round(QuantityExponent)
	return &rounded
}

// CeilUnitPrice rounds a unit price HALF_UP to 4 decimal places.
func CeilUnitPrice(value decimal.Decimal) decimal.Decimal {
	return value.Round(UnitPriceExponent)
}

// LineAmount computes (quantity, amount) from a quantity and a price,
// mirroring common.py's _calculate_line_amount exactly: a zero quantity
// short-circuits to (0, 0); otherwise amount = round(qty * price, 2).
// Either nil input returns (quantity, nil) unchanged.
func LineAmount(quantity, price *decimal.Decimal) (*decimal.Decimal, *decimal.Decimal) {
	if quantity == nil || price == nil {
		return quantity, nil
	}
	if quantity.IsZero() {
		zero := decimal.Zero
		return &zero, &zero
	}
	amount := quantity.Mul(*price).Round(AmountExponent)
	return quantity, &amount
}

// Close reports whether two prices are within the given tolerance of each
// other, used by the offer price-conflict detector (§4.5 step 3).
func Close(a, b decimal.Decimal, tolerance decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	return diff.LessThanOrEqual(tolerance)
}
