package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	tariffdomain "github.com/smallbiznis/voltway/internal/tariff/domain"
)

type repo struct{}

func Provide() tariffdomain.Repository {
	return &repo{}
}

func (r *repo) FindCategoryByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*tariffdomain.TariffCategory, error) {
	var category tariffdomain.TariffCategory
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, utility_type, fixed_charge, active, created_at, updated_at
		 FROM tariff_categories WHERE id = ?`,
		id,
	).Scan(&category).Error
	if err != nil {
		return nil, err
	}
	if category.ID == 0 {
		return nil, nil
	}
	return &category, nil
}

func (r *repo) ListSlabsByCategory(ctx context.Context, db *gorm.DB, categoryID snowflake.ID) ([]tariffdomain.TariffSlab, error) {
	var slabs []tariffdomain.TariffSlab
	err := db.WithContext(ctx).Raw(
		`SELECT id, category_id, position, from_unit, to_unit, rate_per_unit, created_at
		 FROM tariff_slabs WHERE category_id = ? ORDER BY position ASC`,
		categoryID,
	).Scan(&slabs).Error
	if err != nil {
		return nil, err
	}
	return slabs, nil
}
