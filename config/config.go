package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/adarshjiiidev/Kagazi/charges"
	"github.com/adarshjiiidev/Kagazi/internal/retry"
	"github.com/adarshjiiidev/Kagazi/market"
	"github.com/adarshjiiidev/Kagazi/pricing"
	"github.com/adarshjiiidev/Kagazi/risk"
)

// Config is the complete configuration of a kagazi process.
type Config struct {
	Account   AccountConfig   `json:"account" yaml:"account"`
	Charges   ChargesConfig   `json:"charges" yaml:"charges"`
	Limits    LimitsConfig    `json:"limits" yaml:"limits"`
	Execution ExecutionConfig `json:"execution" yaml:"execution"`
	Candles   CandlesConfig   `json:"candles" yaml:"candles"`
	Poller    PollerConfig    `json:"poller" yaml:"poller"`
	Store     StoreConfig     `json:"store" yaml:"store"`
}

// AccountConfig names the default account and how it is funded.
type AccountConfig struct {
	ID          string  `json:"id" yaml:"id"`
	Currency    string  `json:"currency" yaml:"currency"`
	OpeningCash float64 `json:"opening_cash" yaml:"opening_cash"`
}

// ChargesConfig holds every fee rate as a fraction of notional.
type ChargesConfig struct {
	BrokerageRate      float64 `json:"brokerage_rate" yaml:"brokerage_rate"`
	BrokerageCap       float64 `json:"brokerage_cap" yaml:"brokerage_cap"` // <= 0 is uncapped
	TransactionTaxRate float64 `json:"transaction_tax_rate" yaml:"transaction_tax_rate"`
	ExchangeFeeRate    float64 `json:"exchange_fee_rate" yaml:"exchange_fee_rate"`
	StampDutyRate      float64 `json:"stamp_duty_rate" yaml:"stamp_duty_rate"`
	RegulatorFeeRate   float64 `json:"regulator_fee_rate" yaml:"regulator_fee_rate"`
	ConsumptionTaxRate float64 `json:"consumption_tax_rate" yaml:"consumption_tax_rate"`
}

type LimitsConfig struct {
	LargeOrderQuantity int64   `json:"large_order_quantity" yaml:"large_order_quantity"`
	PriceBand          float64 `json:"price_band" yaml:"price_band"`
}

type ExecutionConfig struct {
	MaxSlippage        float64 `json:"max_slippage" yaml:"max_slippage"`
	Seed               int64   `json:"seed" yaml:"seed"` // 0 seeds from the clock
	Timeout            string  `json:"timeout" yaml:"timeout"`
	MaxConflictRetries int     `json:"max_conflict_retries" yaml:"max_conflict_retries"`
}

type CandlesConfig struct {
	Width          string `json:"width" yaml:"width"`       // e.g. "5m"
	Timezone       string `json:"timezone" yaml:"timezone"` // IANA name
	IgnoreDayRange bool   `json:"ignore_day_range" yaml:"ignore_day_range"`
	MaxHistory     int    `json:"max_history" yaml:"max_history"`
}

type PollerConfig struct {
	Interval      string      `json:"interval" yaml:"interval"`
	RatePerSecond float64     `json:"rate_per_second" yaml:"rate_per_second"`
	Burst         int         `json:"burst" yaml:"burst"`
	Timeout       string      `json:"timeout" yaml:"timeout"`
	Retry         RetryConfig `json:"retry" yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts int     `json:"max_attempts" yaml:"max_attempts"`
	BaseDelay   string  `json:"base_delay" yaml:"base_delay"`
	MaxDelay    string  `json:"max_delay" yaml:"max_delay"`
	Multiplier  float64 `json:"multiplier" yaml:"multiplier"`
}

// StoreConfig locates the ledger and the journal.
type StoreConfig struct {
	LedgerPath     string `json:"ledger_path" yaml:"ledger_path"`
	JournalType    string `json:"journal_type" yaml:"journal_type"` // "sqlite" or "csv"
	JournalPath    string `json:"journal_path,omitempty" yaml:"journal_path,omitempty"`
	CandlesFile    string `json:"candles_file,omitempty" yaml:"candles_file,omitempty"`
	ValuationsFile string `json:"valuations_file,omitempty" yaml:"valuations_file,omitempty"`
}

// LoadFromFile reads a YAML or JSON config over the defaults, so a file only
// needs the fields it changes.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", errors.Join(err, jerr))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks every section, reporting the first problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Account.ID) == "" {
		return fmt.Errorf("account.id is required")
	}
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.OpeningCash <= 0 {
		return fmt.Errorf("account.opening_cash must be positive")
	}
	if err := c.Charges.Rates().Validate(); err != nil {
		return err
	}
	if err := c.Limits.Limits().Validate(); err != nil {
		return err
	}
	if c.Execution.MaxSlippage < 0 || c.Execution.MaxSlippage >= 1 {
		return fmt.Errorf("execution.max_slippage must be in [0, 1)")
	}
	if _, err := parseDuration("execution.timeout", c.Execution.Timeout); err != nil {
		return err
	}
	if c.Execution.MaxConflictRetries < 0 {
		return fmt.Errorf("execution.max_conflict_retries must not be negative")
	}
	if _, err := c.Candles.Options(nil); err != nil {
		return err
	}
	if _, err := c.Poller.Options(nil); err != nil {
		return err
	}
	switch c.Store.JournalType {
	case "sqlite":
		if c.Store.JournalPath == "" {
			return fmt.Errorf("store.journal_path required for sqlite journal")
		}
	case "csv":
		if c.Store.CandlesFile == "" || c.Store.ValuationsFile == "" {
			return fmt.Errorf("store candles_file and valuations_file required for csv journal")
		}
	default:
		return fmt.Errorf("store.journal_type must be 'csv' or 'sqlite'")
	}
	if c.Store.LedgerPath == "" {
		return fmt.Errorf("store.ledger_path is required")
	}
	return nil
}

// Default returns a configuration with the standard equity delivery rates.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:          "PAPER-001",
			Currency:    "INR",
			OpeningCash: 1_000_000,
		},
		Charges: ChargesConfig{
			BrokerageRate:      0.0003,
			BrokerageCap:       20,
			TransactionTaxRate: 0.001,
			ExchangeFeeRate:    0.0000345,
			StampDutyRate:      0.00015,
			RegulatorFeeRate:   0.000001,
			ConsumptionTaxRate: 0.18,
		},
		Limits: LimitsConfig{
			LargeOrderQuantity: 10000,
			PriceBand:          0.10,
		},
		Execution: ExecutionConfig{
			MaxSlippage:        0.001,
			Timeout:            "5s",
			MaxConflictRetries: 3,
		},
		Candles: CandlesConfig{
			Width:    "5m",
			Timezone: "UTC",
		},
		Poller: PollerConfig{
			Interval:      "2s",
			RatePerSecond: 5,
			Burst:         1,
			Timeout:       "5s",
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   "200ms",
				MaxDelay:    "2s",
				Multiplier:  2,
			},
		},
		Store: StoreConfig{
			LedgerPath:  "./kagazi.db",
			JournalType: "sqlite",
			JournalPath: "./kagazi-journal.db",
		},
	}
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func (c ChargesConfig) Rates() charges.Rates {
	return charges.Rates{
		BrokerageRate:      dec(c.BrokerageRate),
		BrokerageCap:       dec(c.BrokerageCap),
		TransactionTaxRate: dec(c.TransactionTaxRate),
		ExchangeFeeRate:    dec(c.ExchangeFeeRate),
		StampDutyRate:      dec(c.StampDutyRate),
		RegulatorFeeRate:   dec(c.RegulatorFeeRate),
		ConsumptionTaxRate: dec(c.ConsumptionTaxRate),
	}
}

func (l LimitsConfig) Limits() risk.Limits {
	return risk.Limits{LargeOrderQuantity: l.LargeOrderQuantity, PriceBand: dec(l.PriceBand)}
}

// Cash is the opening cash as a decimal.
func (a AccountConfig) Cash() decimal.Decimal { return dec(a.OpeningCash) }

func (e ExecutionConfig) TimeoutDuration() time.Duration {
	d, _ := parseDuration("execution.timeout", e.Timeout)
	return d
}

// Options builds aggregator options. Width takes a label ("M5") or a
// duration ("5m") and defaults to five minutes; the timezone defaults to UTC.
func (c CandlesConfig) Options(log logrus.FieldLogger) (pricing.Options, error) {
	width := pricing.DefaultWidth
	if c.Width != "" {
		var err error
		if width, err = market.ParseWidth(c.Width); err != nil {
			return pricing.Options{}, fmt.Errorf("candles.width: %w", err)
		}
	}
	var err error
	loc := time.UTC
	if c.Timezone != "" {
		loc, err = time.LoadLocation(c.Timezone)
		if err != nil {
			return pricing.Options{}, fmt.Errorf("candles.timezone: %w", err)
		}
	}
	if c.MaxHistory < 0 {
		return pricing.Options{}, fmt.Errorf("candles.max_history must not be negative")
	}
	return pricing.Options{
		Width:          width,
		Location:       loc,
		IgnoreDayRange: c.IgnoreDayRange,
		MaxHistory:     c.MaxHistory,
		Logger:         log,
	}, nil
}

// Options builds poller options; unset durations keep the poller defaults.
func (c PollerConfig) Options(log logrus.FieldLogger) (pricing.PollerOptions, error) {
	interval, err := parseDuration("poller.interval", c.Interval)
	if err != nil {
		return pricing.PollerOptions{}, err
	}
	timeout, err := parseDuration("poller.timeout", c.Timeout)
	if err != nil {
		return pricing.PollerOptions{}, err
	}
	if c.RatePerSecond < 0 || c.Burst < 0 {
		return pricing.PollerOptions{}, fmt.Errorf("poller rate_per_second and burst must not be negative")
	}
	policy, err := c.Retry.Policy()
	if err != nil {
		return pricing.PollerOptions{}, err
	}
	return pricing.PollerOptions{
		Interval:      interval,
		RatePerSecond: c.RatePerSecond,
		Burst:         c.Burst,
		Timeout:       timeout,
		Retry:         policy,
		Logger:        log,
	}, nil
}

func (r RetryConfig) Policy() (retry.Policy, error) {
	base, err := parseDuration("poller.retry.base_delay", r.BaseDelay)
	if err != nil {
		return retry.Policy{}, err
	}
	max, err := parseDuration("poller.retry.max_delay", r.MaxDelay)
	if err != nil {
		return retry.Policy{}, err
	}
	if r.MaxAttempts < 0 {
		return retry.Policy{}, fmt.Errorf("poller.retry.max_attempts must not be negative")
	}
	if r.Multiplier != 0 && r.Multiplier < 1 {
		return retry.Policy{}, fmt.Errorf("poller.retry.multiplier must be at least 1")
	}
	return retry.Policy{MaxAttempts: r.MaxAttempts, BaseDelay: base, MaxDelay: max, Multiplier: r.Multiplier}, nil
}
