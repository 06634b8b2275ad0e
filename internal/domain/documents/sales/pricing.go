package sales

import (
	"strings"

	"github.com/shopspring/decimal"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/types"
)

// LineAmounts is the price breakdown of one line, each step rounded to cents.
type LineAmounts struct {
	Subtotal types.Money
	Discount types.Money
	Taxable  types.Money
	Tax      types.Money
	Total    types.Money
}

// ComputeLine applies subtotal, then discount, then tax on the discounted amount.
func ComputeLine(qty types.Quantity, unitPrice, discountPercent, taxPercent types.Money) LineAmounts {
	subtotal := types.Round2(qty.Decimal().Mul(unitPrice))
	discount := types.Round2(types.Percent(subtotal, discountPercent))
	taxable := subtotal.Sub(discount)
	tax := types.Round2(types.Percent(taxable, taxPercent))
	return LineAmounts{
		Subtotal: subtotal,
		Discount: discount,
		Taxable:  taxable,
		Tax:      tax,
		Total:    taxable.Add(tax),
	}
}

// Totals aggregates line amounts into document totals.
type Totals struct {
	Subtotal types.Money
	Discount types.Money
	Tax      types.Money
	Total    types.Money
}

// SumTotals adds up line amounts.
func SumTotals(lines []LineAmounts) Totals {
	t := Totals{
		Subtotal: types.Zero(),
		Discount: types.Zero(),
		Tax:      types.Zero(),
		Total:    types.Zero(),
	}
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.Subtotal)
		t.Discount = t.Discount.Add(l.Discount)
		t.Tax = t.Tax.Add(l.Tax)
		t.Total = t.Total.Add(l.Total)
	}
	return t
}

// ToBase converts amount to the base currency. Amounts already in base
// currency are returned as is; others are multiplied by rate.
func ToBase(amount types.Money, currency, baseCurrency string, rate types.Money) types.Money {
	if currency == "" || strings.EqualFold(currency, baseCurrency) {
		return amount
	}
	return types.Round2(amount.Mul(rate))
}

var hundred = decimal.NewFromInt(100)

// ValidatePricing checks one priced line. lineNo is 1-based and only used in details.
func ValidatePricing(lineNo int, qty types.Quantity, unitPrice, discountPercent, taxPercent types.Money) error {
	switch {
	case !qty.IsPositive():
		return apperror.NewValidation("quantity must be positive").
			WithDetail("lineNo", lineNo)
	case unitPrice.IsNegative():
		return apperror.NewValidation("unit price must not be negative").
			WithDetail("lineNo", lineNo)
	case discountPercent.IsNegative() || discountPercent.GreaterThan(hundred):
		return apperror.NewValidation("discount percent must be between 0 and 100").
			WithDetail("lineNo", lineNo)
	case taxPercent.IsNegative():
		return apperror.NewValidation("tax percent must not be negative").
			WithDetail("lineNo", lineNo)
	}
	return nil
}

// ValidateCurrency checks the currency code and exchange rate pair.
func ValidateCurrency(currency, baseCurrency string, rate types.Money) error {
	if len(currency) != 3 {
		return apperror.NewValidation("currency must be a 3-letter code").
			WithDetail("currency", currency)
	}
	if !strings.EqualFold(currency, baseCurrency) && !rate.IsPositive() {
		return apperror.NewValidation("exchange rate must be positive for foreign currency").
			WithDetail("currency", currency)
	}
	return nil
}
