package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingDefaults are the safeguard values applied when a pricing plan is
// created without them. They exist to keep accidentally unprofitable plans
// from being created. All amounts are in minor currency units.
type BillingDefaults struct {
	MinFeePerDeal     int64  `mapstructure:"minFeePerDeal"`
	MinDealValue      int64  `mapstructure:"minDealValue"`
	PlatformAccessFee int64  `mapstructure:"platformAccessFee"`
	BillingDay        int16  `mapstructure:"billingDay"`
	Currency          string `mapstructure:"currency"`
}

// DefaultBillingDefaults returns the documented defaults:
// $100 minimum fee, $5,000 minimum deal value, $49 platform access fee.
func DefaultBillingDefaults() BillingDefaults {
	return BillingDefaults{
		MinFeePerDeal:     10_000,
		MinDealValue:      500_000,
		PlatformAccessFee: 4_900,
		BillingDay:        1,
		Currency:          "USD",
	}
}

// BillingDefaultsHolder hot-reloads billing defaults from billing.yml.
type BillingDefaultsHolder struct {
	current atomic.Value // holds BillingDefaults
}

// NewBillingDefaultsHolder loads billing.yml and watches it for changes.
func NewBillingDefaultsHolder() (*BillingDefaultsHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/dealbill/config")
	v.AddConfigPath("/etc/dealbill")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DEALBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultBillingDefaults()
		v.SetDefault("billing.minFeePerDeal", defaults.MinFeePerDeal)
		v.SetDefault("billing.minDealValue", defaults.MinDealValue)
		v.SetDefault("billing.platformAccessFee", defaults.PlatformAccessFee)
		v.SetDefault("billing.billingDay", defaults.BillingDay)
		v.SetDefault("billing.currency", defaults.Currency)
	}

	var cfg BillingDefaults
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingDefaults(cfg); err != nil {
		return nil, err
	}

	holder := &BillingDefaultsHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingDefaults
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingDefaults(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingDefaultsHolder returns a holder with fixed values, for tests.
func NewStaticBillingDefaultsHolder(defaults BillingDefaults) *BillingDefaultsHolder {
	holder := &BillingDefaultsHolder{}
	holder.current.Store(defaults)
	return holder
}

func (h *BillingDefaultsHolder) Get() BillingDefaults {
	return h.current.Load().(BillingDefaults)
}

func validateBillingDefaults(cfg BillingDefaults) error {
	if cfg.MinFeePerDeal < 0 || cfg.MinDealValue < 0 || cfg.PlatformAccessFee < 0 {
		return errors.New("billing defaults cannot be negative")
	}
	if cfg.BillingDay < 1 || cfg.BillingDay > 28 {
		return errors.New("billing.billingDay must be between 1 and 28")
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("billing.currency cannot be empty")
	}
	return nil
}
