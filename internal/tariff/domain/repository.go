package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindCategoryByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TariffCategory, error)
	ListSlabsByCategory(ctx context.Context, db *gorm.DB, categoryID snowflake.ID) ([]TariffSlab, error)
}
