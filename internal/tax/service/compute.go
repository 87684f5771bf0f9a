package service

import (
	taxdomain "github.com/smallbiznis/voltway/internal/tax/domain"
	"github.com/smallbiznis/voltway/pkg/money"
)

// ComputeLines prices every definition against the same taxable base. Each
// line is rounded half-up to 2 decimal places independently; the bill's tax
// total is the sum of the rounded lines, not a rounding of the sum, so each
// line stays auditable even when that introduces a cent of drift versus a
// single aggregate rounding.
func ComputeLines(base money.Money, defs []taxdomain.TaxDefinition) []taxdomain.Line {
	if base.IsNegative() {
		base = money.ZeroMoney()
	}

	lines := make([]taxdomain.Line, 0, len(defs))
	for _, def := range defs {
		rate := money.PercentFromDecimal(def.RatePercent)
		lines = append(lines, taxdomain.Line{
			Code:          def.Code,
			Name:          def.Name,
			RatePercent:   rate,
			TaxableAmount: base.Round2(),
			TaxAmount:     rate.Of(base),
		})
	}
	return lines
}

// SumLines adds the already-rounded tax amounts.
func SumLines(lines []taxdomain.Line) money.Money {
	total := money.ZeroMoney()
	for _, line := range lines {
		total = total.Add(line.TaxAmount)
	}
	return total
}
