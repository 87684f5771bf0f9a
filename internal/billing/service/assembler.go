package service

import (
	"github.com/smallbiznis/voltway/internal/config"
	billingdomain "github.com/smallbiznis/voltway/internal/billing/domain"
	meterdomain "github.com/smallbiznis/voltway/internal/meter/domain"
	tariffdomain "github.com/smallbiznis/voltway/internal/tariff/domain"
	taxdomain "github.com/smallbiznis/voltway/internal/tax/domain"
	tariffservice "github.com/smallbiznis/voltway/internal/tariff/service"
	taxservice "github.com/smallbiznis/voltway/internal/tax/service"
	"github.com/smallbiznis/voltway/pkg/money"
)

// assemble prices one bill from already-loaded inputs. It is deterministic:
// the same inputs always produce the same computation, which is what makes
// recalculation idempotent and dry runs exact.
func assemble(
	req billingdomain.PreviewRequest,
	meter *meterdomain.Meter,
	reading *meterdomain.MeterReading,
	category *tariffdomain.TariffCategory,
	slabs []tariffdomain.TariffSlab,
	taxes []taxdomain.TaxDefinition,
	cfg config.BillingConfig,
) (*billingdomain.Computation, error) {
	consumed := money.UnitsFromDecimal(reading.ConsumedUnits())
	if consumed.IsNegative() && reading.Source != meterdomain.ReadingSourceCorrected {
		return nil, billingdomain.ErrNegativeConsumption
	}

	// A corrected negative delta yields a zero-consumption bill; the
	// negative reading stays flagged on the stored reading source.
	billable := consumed
	if billable.IsNegative() {
		billable = money.UnitsFromInt(0)
	}

	allocations, err := tariffservice.AllocateSlabs(slabs, billable)
	if err != nil {
		return nil, err
	}

	energySubtotal := money.ZeroMoney()
	for _, allocation := range allocations {
		energySubtotal = energySubtotal.Add(allocation.Amount)
	}
	fixedCharge := money.FromDecimal(category.FixedCharge).Round2()

	exportUnits := money.UnitsFromDecimal(reading.ExportUnits)
	subsidy, solarCredit := computeDeductions(deductionInput{
		ApplySubsidy:     req.ApplySubsidy && meter.SubsidyEligible,
		ApplySolarCredit: req.ApplySolarCredit && meter.SolarEnabled,
		EnergySubtotal:   energySubtotal,
		FixedCharge:      fixedCharge,
		ExportUnits:      exportUnits,
	}, cfg)

	taxableBase := energySubtotal.Add(fixedCharge).Sub(subsidy).Sub(solarCredit)
	taxLines := taxservice.ComputeLines(taxableBase, taxes)
	taxTotal := taxservice.SumLines(taxLines)

	total := taxableBase.Add(taxTotal).Round2()

	return &billingdomain.Computation{
		MeterID:          meter.ID,
		TariffCategoryID: category.ID,
		PeriodStart:      req.PeriodStart,
		PeriodEnd:        req.PeriodEnd,
		ReadingSource:    reading.Source,
		ApplySubsidy:     req.ApplySubsidy,
		ApplySolarCredit: req.ApplySolarCredit,
		ConsumedUnits:    consumed,
		ExportUnits:      exportUnits,
		LineItems:        allocations,
		EnergySubtotal:   energySubtotal,
		FixedCharge:      fixedCharge,
		Subsidy:          subsidy,
		SolarCredit:      solarCredit,
		TaxLines:         taxLines,
		TaxTotal:         taxTotal,
		TotalAmount:      total,
	}, nil
}

type deductionInput struct {
	ApplySubsidy     bool
	ApplySolarCredit bool
	EnergySubtotal   money.Money
	FixedCharge      money.Money
	ExportUnits      money.Units
}

// computeDeductions resolves subsidy and solar export credit from the
// configured schedule. Deductions never drive the taxable base below zero:
// subsidy is capped at the gross charge and the solar credit at whatever
// remains after the subsidy.
func computeDeductions(in deductionInput, cfg config.BillingConfig) (subsidy, solarCredit money.Money) {
	gross := in.EnergySubtotal.Add(in.FixedCharge)

	subsidy = money.ZeroMoney()
	if in.ApplySubsidy {
		switch cfg.Subsidy.Mode {
		case config.SubsidyModeFlat:
			subsidy = money.FromFloat(cfg.Subsidy.Flat).Round2()
		case config.SubsidyModePercent:
			subsidy = money.PercentFromFloat(cfg.Subsidy.Percent).Of(in.EnergySubtotal)
		}
		subsidy = subsidy.Min(gross)
	}

	solarCredit = money.ZeroMoney()
	if in.ApplySolarCredit && in.ExportUnits.IsPositive() {
		solarCredit = in.ExportUnits.PriceAt(money.FromFloat(cfg.SolarExportCreditRate))
		solarCredit = solarCredit.Min(gross.Sub(subsidy))
	}

	return subsidy, solarCredit
}
