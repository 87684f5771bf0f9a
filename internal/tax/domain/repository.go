package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// ListEnabled returns enabled tax definitions in application order.
	ListEnabled(ctx context.Context, db *gorm.DB) ([]TaxDefinition, error)
}
