// Package migration creates the core billing tables on startup so the
// service is usable out of the box for local and self-hosted environments.
package migration

import (
	"gorm.io/gorm"

	billingdomain "github.com/smallbiznis/voltway/internal/billing/domain"
	billingeventdomain "github.com/smallbiznis/voltway/internal/billingevent/domain"
	cashierdomain "github.com/smallbiznis/voltway/internal/cashier/domain"
	meterdomain "github.com/smallbiznis/voltway/internal/meter/domain"
	paymentdomain "github.com/smallbiznis/voltway/internal/payment/domain"
	tariffdomain "github.com/smallbiznis/voltway/internal/tariff/domain"
	taxdomain "github.com/smallbiznis/voltway/internal/tax/domain"
)

func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&tariffdomain.TariffCategory{},
		&tariffdomain.TariffSlab{},
		&meterdomain.Meter{},
		&meterdomain.MeterReading{},
		&taxdomain.TaxDefinition{},
		&billingdomain.Bill{},
		&billingdomain.BillLineItem{},
		&billingdomain.BillTaxLine{},
		&billingeventdomain.BillingEvent{},
		&paymentdomain.Payment{},
		&cashierdomain.CashierDayClose{},
	)
}
