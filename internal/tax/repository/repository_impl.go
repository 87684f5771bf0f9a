package repository

import (
	"context"

	"gorm.io/gorm"

	taxdomain "github.com/smallbiznis/voltway/internal/tax/domain"
)

type repo struct{}

func Provide() taxdomain.Repository {
	return &repo{}
}

func (r *repo) ListEnabled(ctx context.Context, db *gorm.DB) ([]taxdomain.TaxDefinition, error) {
	var defs []taxdomain.TaxDefinition
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, rate_percent, position, enabled, created_at, updated_at
		 FROM tax_definitions WHERE enabled = ? ORDER BY position ASC, code ASC`,
		true,
	).Scan(&defs).Error
	if err != nil {
		return nil, err
	}
	return defs, nil
}
