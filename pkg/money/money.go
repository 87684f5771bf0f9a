// Package money provides tagged value types for currency amounts, metered
// quantities and percentage rates so the two cannot be mixed by accident.
// All rounding of currency amounts happens here, half-up to 2 decimal places.
package money

import "github.com/shopspring/decimal"

// Money is a currency amount.
type Money struct{ d decimal.Decimal }

// Units is a metered quantity (kWh, liters, cubic meters).
type Units struct{ d decimal.Decimal }

// Percent is a percentage rate, e.g. 15 for 15%.
type Percent struct{ d decimal.Decimal }

var hundred = decimal.NewFromInt(100)

func ZeroMoney() Money { return Money{} }

func FromDecimal(d decimal.Decimal) Money { return Money{d: d} }

func FromFloat(v float64) Money { return Money{d: decimal.NewFromFloat(v)} }

func FromInt(v int64) Money { return Money{d: decimal.NewFromInt(v)} }

// MustParse parses a decimal string and panics on malformed input. Intended
// for constants in configuration defaults and tests.
func MustParse(value string) Money {
	return Money{d: decimal.RequireFromString(value)}
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// Round2 rounds half-up to 2 decimal places.
func (m Money) Round2() Money { return Money{d: m.d.Round(2)} }

func (m Money) IsZero() bool { return m.d.IsZero() }

func (m Money) IsNegative() bool { return m.d.IsNegative() }

func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }

func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// Min returns the smaller of m and o.
func (m Money) Min(o Money) Money {
	if m.d.LessThan(o.d) {
		return m
	}
	return o
}

func (m Money) Abs() Money { return Money{d: m.d.Abs()} }

func (m Money) String() string { return m.d.StringFixed(2) }

func UnitsFromDecimal(d decimal.Decimal) Units { return Units{d: d} }

func UnitsFromFloat(v float64) Units { return Units{d: decimal.NewFromFloat(v)} }

func UnitsFromInt(v int64) Units { return Units{d: decimal.NewFromInt(v)} }

func (u Units) Decimal() decimal.Decimal { return u.d }

func (u Units) Add(o Units) Units { return Units{d: u.d.Add(o.d)} }

func (u Units) Sub(o Units) Units { return Units{d: u.d.Sub(o.d)} }

func (u Units) Min(o Units) Units {
	if u.d.LessThan(o.d) {
		return u
	}
	return o
}

func (u Units) IsZero() bool { return u.d.IsZero() }

func (u Units) IsNegative() bool { return u.d.IsNegative() }

func (u Units) IsPositive() bool { return u.d.IsPositive() }

func (u Units) LessThan(o Units) bool { return u.d.LessThan(o.d) }

func (u Units) Equal(o Units) bool { return u.d.Equal(o.d) }

func (u Units) String() string { return u.d.String() }

// PriceAt prices the quantity at a per-unit rate, rounded half-up to 2
// decimal places.
func (u Units) PriceAt(rate Money) Money {
	return Money{d: u.d.Mul(rate.d).Round(2)}
}

func PercentFromDecimal(d decimal.Decimal) Percent { return Percent{d: d} }

func PercentFromFloat(v float64) Percent { return Percent{d: decimal.NewFromFloat(v)} }

func (p Percent) Decimal() decimal.Decimal { return p.d }

func (p Percent) IsZero() bool { return p.d.IsZero() }

func (p Percent) IsNegative() bool { return p.d.IsNegative() }

func (p Percent) String() string { return p.d.String() }

// Of applies the percentage to a base amount, rounded half-up to 2 decimal
// places. The rounding is per call so each computed line stays auditable.
func (p Percent) Of(base Money) Money {
	return Money{d: base.d.Mul(p.d).Div(hundred).Round(2)}
}
