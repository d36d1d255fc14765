package validation

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// CheckoutRequest: prices non-negative and TotalAmount == sum(price * quantity).
	v.RegisterStructValidation(checkoutStructValidation, CheckoutRequest{})
	v.RegisterStructValidation(addToCartStructValidation, AddToCartRequest{})
	v.RegisterStructValidation(inventoryStructValidation, InventoryRequest{})

	return v
}

// LineTotal is price * quantity summed over lines.
func LineTotal(lines []CheckoutLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

func checkoutStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CheckoutRequest)

	for i, l := range req.Lines {
		if l.Price.IsNegative() {
			sl.ReportError(l.Price, fmt.Sprintf("lines[%d].price", i), "Price", "price_non_negative", l.Price.String())
		}
	}

	// compare in cents
	sum := LineTotal(req.Lines).Round(2)
	if !sum.Equal(req.TotalAmount.Round(2)) {
		sl.ReportError(req.TotalAmount, "totalAmount", "TotalAmount", "amount_match_items",
			fmt.Sprintf("items sum %s != amount %s", sum.StringFixed(2), req.TotalAmount.StringFixed(2)))
	}
}

func addToCartStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(AddToCartRequest)
	if req.Price.IsNegative() {
		sl.ReportError(req.Price, "price", "Price", "price_non_negative", req.Price.String())
	}
}

func inventoryStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(InventoryRequest)
	if req.Price.IsNegative() {
		sl.ReportError(req.Price, "price", "Price", "price_non_negative", req.Price.String())
	}
}
