package service

import (
	tariffdomain "github.com/smallbiznis/voltway/internal/tariff/domain"
	"github.com/smallbiznis/voltway/pkg/money"
)

// ValidateSlabs checks that a slab list forms a well-formed progressive
// tariff: ordered, contiguous (each slab starts where the previous one
// ends), non-negative rates, and an unbounded last slab so every unit of
// consumption has a rate. Checked at load time and re-checked per resolve.
func ValidateSlabs(slabs []tariffdomain.TariffSlab) error {
	if len(slabs) == 0 {
		return tariffdomain.ErrMalformedSlabs
	}
	if !slabs[0].FromUnit.IsZero() {
		return tariffdomain.ErrMalformedSlabs
	}
	for i, slab := range slabs {
		if slab.RatePerUnit.IsNegative() {
			return tariffdomain.ErrMalformedSlabs
		}
		last := i == len(slabs)-1
		if slab.ToUnit == nil {
			if !last {
				return tariffdomain.ErrMalformedSlabs
			}
			continue
		}
		// A bounded tail would leave consumption past its upper edge
		// unbillable.
		if last {
			return tariffdomain.ErrMalformedSlabs
		}
		if !slab.ToUnit.GreaterThan(slab.FromUnit) {
			return tariffdomain.ErrMalformedSlabs
		}
		if !last && !slabs[i+1].FromUnit.Equal(*slab.ToUnit) {
			return tariffdomain.ErrMalformedSlabs
		}
	}
	return nil
}

// AllocateSlabs partitions consumption across the ordered slabs. Every unit
// is billed exactly once: a reading on a slab boundary belongs entirely to
// the lower slab (the upper bound is exclusive). The unbounded last slab
// absorbs any remainder.
func AllocateSlabs(slabs []tariffdomain.TariffSlab, consumed money.Units) ([]tariffdomain.Allocation, error) {
	if consumed.IsNegative() {
		return nil, tariffdomain.ErrNegativeUnits
	}
	if err := ValidateSlabs(slabs); err != nil {
		return nil, err
	}

	allocations := make([]tariffdomain.Allocation, 0, len(slabs))
	for _, slab := range slabs {
		lower := money.UnitsFromDecimal(slab.FromUnit)
		upper := consumed
		if slab.ToUnit != nil {
			upper = money.UnitsFromDecimal(*slab.ToUnit)
		}

		billed := consumed.Min(upper).Sub(lower)
		if !billed.IsPositive() {
			break
		}

		rate := money.FromDecimal(slab.RatePerUnit)
		allocations = append(allocations, tariffdomain.Allocation{
			FromUnit:    slab.FromUnit,
			ToUnit:      slab.ToUnit,
			Units:       billed,
			RatePerUnit: rate,
			Amount:      billed.PriceAt(rate),
		})
	}
	return allocations, nil
}
