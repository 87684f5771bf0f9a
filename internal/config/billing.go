package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// SubsidyMode selects how the subsidy schedule reduces the pre-tax energy
// subtotal for eligible customers.
type SubsidyMode string

const (
	SubsidyModeFlat    SubsidyMode = "flat"
	SubsidyModePercent SubsidyMode = "percent"
)

// AfterClosePolicy decides what happens to payments recorded against a
// cashier day that is already closed.
type AfterClosePolicy string

const (
	AfterCloseReject  AfterClosePolicy = "reject"
	AfterCloseNextDay AfterClosePolicy = "next_day"
)

// BillingConfig is the hot-reloadable billing policy: subsidy schedule,
// solar export pricing, cash reconciliation tolerance and bulk generation
// sizing. Tariff slabs and tax definitions live in the database, not here.
type BillingConfig struct {
	Subsidy struct {
		Mode    SubsidyMode `mapstructure:"mode"`
		Percent float64     `mapstructure:"percent"`
		Flat    float64     `mapstructure:"flat"`
	} `mapstructure:"subsidy"`

	SolarExportCreditRate float64 `mapstructure:"solarExportCreditRate"`

	CashVarianceTolerance float64          `mapstructure:"cashVarianceTolerance"`
	AfterClosePolicy      AfterClosePolicy `mapstructure:"afterClosePolicy"`

	BulkWorkers   int `mapstructure:"bulkWorkers"`
	BulkBatchSize int `mapstructure:"bulkBatchSize"`
}

func DefaultBillingConfig() BillingConfig {
	cfg := BillingConfig{
		SolarExportCreditRate: 8.0,
		CashVarianceTolerance: 0.01,
		AfterClosePolicy:      AfterCloseReject,
		BulkWorkers:           4,
		BulkBatchSize:         500,
	}
	cfg.Subsidy.Mode = SubsidyModePercent
	cfg.Subsidy.Percent = 10
	return cfg
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/voltway/config")
	v.AddConfigPath("/etc/voltway")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VOLTWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("billing.subsidy", defaults.Subsidy)
		v.SetDefault("billing.solarExportCreditRate", defaults.SolarExportCreditRate)
		v.SetDefault("billing.cashVarianceTolerance", defaults.CashVarianceTolerance)
		v.SetDefault("billing.afterClosePolicy", string(defaults.AfterClosePolicy))
		v.SetDefault("billing.bulkWorkers", defaults.BulkWorkers)
		v.SetDefault("billing.bulkBatchSize", defaults.BulkBatchSize)
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	cfg = withBillingDefaults(cfg)
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		updated = withBillingDefaults(updated)
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingConfigHolder wraps a fixed config. Used by tests and by
// callers that do not want file watching.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(withBillingDefaults(cfg))
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func withBillingDefaults(cfg BillingConfig) BillingConfig {
	defaults := DefaultBillingConfig()
	if cfg.Subsidy.Mode == "" {
		cfg.Subsidy = defaults.Subsidy
	}
	if cfg.AfterClosePolicy == "" {
		cfg.AfterClosePolicy = defaults.AfterClosePolicy
	}
	if cfg.CashVarianceTolerance <= 0 {
		cfg.CashVarianceTolerance = defaults.CashVarianceTolerance
	}
	if cfg.BulkWorkers <= 0 {
		cfg.BulkWorkers = defaults.BulkWorkers
	}
	if cfg.BulkBatchSize <= 0 {
		cfg.BulkBatchSize = defaults.BulkBatchSize
	}
	return cfg
}

func validateBillingConfig(cfg BillingConfig) error {
	switch cfg.Subsidy.Mode {
	case SubsidyModeFlat, SubsidyModePercent:
	default:
		return errors.New("billing.subsidy.mode must be flat or percent")
	}
	if cfg.Subsidy.Percent < 0 || cfg.Subsidy.Percent > 100 {
		return errors.New("billing.subsidy.percent must be within [0,100]")
	}
	if cfg.Subsidy.Flat < 0 {
		return errors.New("billing.subsidy.flat cannot be negative")
	}
	if cfg.SolarExportCreditRate < 0 {
		return errors.New("billing.solarExportCreditRate cannot be negative")
	}
	switch cfg.AfterClosePolicy {
	case AfterCloseReject, AfterCloseNextDay:
	default:
		return errors.New("billing.afterClosePolicy must be reject or next_day")
	}
	return nil
}
