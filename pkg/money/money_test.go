package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentOf_RoundsHalfUpPerLine(t *testing.T) {
	base := MustParse("3350")
	tax := PercentFromFloat(15).Of(base)
	assert.Equal(t, "502.50", tax.String())

	// 0.005 boundary rounds up, not to even.
	assert.Equal(t, "0.01", PercentFromFloat(1).Of(MustParse("0.50")).String())
	assert.Equal(t, "1.13", PercentFromFloat(7.5).Of(MustParse("15.00")).String())
}

func TestUnitsPriceAt(t *testing.T) {
	assert.Equal(t, "500.00", UnitsFromInt(50).PriceAt(FromInt(10)).String())
	assert.Equal(t, "2250.00", UnitsFromInt(150).PriceAt(FromInt(15)).String())
	assert.Equal(t, "0.00", UnitsFromInt(0).PriceAt(FromInt(20)).String())
}

func TestMoneyMinAndCompare(t *testing.T) {
	a := MustParse("10.00")
	b := MustParse("7.50")
	assert.True(t, a.Min(b).Equal(b))
	assert.True(t, b.LessThan(a))
	assert.True(t, a.Sub(b).Equal(MustParse("2.50")))
	assert.False(t, a.Sub(b).IsNegative())
	assert.True(t, b.Sub(a).IsNegative())
}

func TestUnitsArithmetic(t *testing.T) {
	consumed := UnitsFromFloat(220)
	first := UnitsFromInt(50)
	rest := consumed.Sub(first)
	assert.True(t, rest.Equal(UnitsFromInt(170)))
	assert.True(t, UnitsFromInt(-3).IsNegative())
}
