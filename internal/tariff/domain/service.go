package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/smallbiznis/voltway/pkg/money"
)

// Allocation is the share of consumption billed inside one slab.
type Allocation struct {
	FromUnit    decimal.Decimal
	ToUnit      *decimal.Decimal
	Units       money.Units
	RatePerUnit money.Money
	Amount      money.Money
}

type Service interface {
	// CategoryWithSlabs loads a category and its ordered slabs, re-validating
	// the slab configuration defensively on every load.
	CategoryWithSlabs(ctx context.Context, categoryID snowflake.ID) (*TariffCategory, []TariffSlab, error)
}

var (
	ErrNoTariffCategory = errors.New("no_tariff_category_assigned")
	ErrCategoryNotFound = errors.New("tariff_category_not_found")
	ErrMalformedSlabs   = errors.New("malformed_slab_configuration")
	ErrNegativeUnits    = errors.New("negative_units")
)
