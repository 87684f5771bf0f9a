// Package seed installs a default residential tariff and VAT definition so a
// fresh install can issue bills without manual setup.
package seed

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	tariffdomain "github.com/smallbiznis/voltway/internal/tariff/domain"
	taxdomain "github.com/smallbiznis/voltway/internal/tax/domain"
)

const DefaultCategoryCode = "RES-DEFAULT"

// EnsureDefaults is idempotent: existing rows with the seeded codes are left
// untouched.
func EnsureDefaults(db *gorm.DB, genID *snowflake.Node) error {
	var count int64
	if err := db.Model(&tariffdomain.TariffCategory{}).
		Where("code = ?", DefaultCategoryCode).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		categoryID := genID.Generate()
		if err := db.Create(&tariffdomain.TariffCategory{
			ID:          categoryID,
			Code:        DefaultCategoryCode,
			Name:        "Residential Default",
			UtilityType: tariffdomain.UtilityElectricity,
			FixedCharge: decimal.NewFromInt(200),
			Active:      true,
		}).Error; err != nil {
			return err
		}

		fifty := decimal.NewFromInt(50)
		twoHundred := decimal.NewFromInt(200)
		slabs := []tariffdomain.TariffSlab{
			{ID: genID.Generate(), CategoryID: categoryID, Position: 0, FromUnit: decimal.Zero, ToUnit: &fifty, RatePerUnit: decimal.NewFromInt(10)},
			{ID: genID.Generate(), CategoryID: categoryID, Position: 1, FromUnit: fifty, ToUnit: &twoHundred, RatePerUnit: decimal.NewFromInt(15)},
			{ID: genID.Generate(), CategoryID: categoryID, Position: 2, FromUnit: twoHundred, RatePerUnit: decimal.NewFromInt(20)},
		}
		for _, slab := range slabs {
			if err := db.Create(&slab).Error; err != nil {
				return err
			}
		}
	}

	if err := db.Model(&taxdomain.TaxDefinition{}).
		Where("code = ?", "VAT").
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		if err := db.Create(&taxdomain.TaxDefinition{
			ID:          genID.Generate(),
			Code:        "VAT",
			Name:        "Value Added Tax",
			RatePercent: decimal.NewFromInt(15),
			Position:    0,
			Enabled:     true,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}
