package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taxdomain "github.com/smallbiznis/voltway/internal/tax/domain"
	"github.com/smallbiznis/voltway/pkg/money"
)

func TestComputeLines_SameBaseNoCompounding(t *testing.T) {
	defs := []taxdomain.TaxDefinition{
		{Code: "VAT", Name: "Value Added Tax", RatePercent: decimal.NewFromInt(15)},
		{Code: "LEVY", Name: "Energy Levy", RatePercent: decimal.NewFromInt(5)},
	}

	lines := ComputeLines(money.MustParse("3350"), defs)
	require.Len(t, lines, 2)

	assert.Equal(t, "502.50", lines[0].TaxAmount.String())
	assert.Equal(t, "167.50", lines[1].TaxAmount.String())
	// Both lines reference the one base, never each other.
	assert.Equal(t, "3350.00", lines[0].TaxableAmount.String())
	assert.Equal(t, "3350.00", lines[1].TaxableAmount.String())
	assert.Equal(t, "670.00", SumLines(lines).String())
}

func TestComputeLines_PerLineRounding(t *testing.T) {
	defs := []taxdomain.TaxDefinition{
		{Code: "A", RatePercent: decimal.RequireFromString("3.333")},
		{Code: "B", RatePercent: decimal.RequireFromString("3.333")},
		{Code: "C", RatePercent: decimal.RequireFromString("3.334")},
	}

	lines := ComputeLines(money.MustParse("100.10"), defs)
	require.Len(t, lines, 3)

	// 100.10 * 3.333% = 3.336333 -> 3.34; total is the sum of rounded
	// lines, not round(sum).
	assert.Equal(t, "3.34", lines[0].TaxAmount.String())
	assert.Equal(t, "3.34", lines[1].TaxAmount.String())
	assert.Equal(t, "3.34", lines[2].TaxAmount.String())
	assert.Equal(t, "10.02", SumLines(lines).String())
}

func TestComputeLines_NegativeBaseClampedToZero(t *testing.T) {
	defs := []taxdomain.TaxDefinition{{Code: "VAT", RatePercent: decimal.NewFromInt(15)}}
	lines := ComputeLines(money.MustParse("-10"), defs)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].TaxAmount.IsZero())
}

func TestComputeLines_NoDefinitions(t *testing.T) {
	lines := ComputeLines(money.MustParse("100"), nil)
	assert.Empty(t, lines)
	assert.True(t, SumLines(lines).IsZero())
}
