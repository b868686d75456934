// Package config holds the state shared by every kagazi subcommand: the
// global flags, the loaded configuration, the logger, and the wired engine.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/adarshjiiidev/Kagazi/charges"
	"github.com/adarshjiiidev/Kagazi/config"
	"github.com/adarshjiiidev/Kagazi/journal"
	"github.com/adarshjiiidev/Kagazi/market"
	"github.com/adarshjiiidev/Kagazi/risk"
	"github.com/adarshjiiidev/Kagazi/sim"
	"github.com/adarshjiiidev/Kagazi/store/sqlite"
)

// RootConfig is filled from the persistent flags, then by Load.
type RootConfig struct {
	ConfigPath  string
	DBPath      string
	JournalPath string
	LogLevel    string
	LogJSON     bool

	Config *config.Config
	Log    *logrus.Logger
}

// Load reads the config file (or the defaults), applies flag overrides and
// builds the logger.
func (rc *RootConfig) Load() error {
	cfg := config.Default()
	if rc.ConfigPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(rc.ConfigPath); err != nil {
			return err
		}
	}
	if rc.DBPath != "" {
		cfg.Store.LedgerPath = rc.DBPath
	}
	if rc.JournalPath != "" {
		cfg.Store.JournalType = "sqlite"
		cfg.Store.JournalPath = rc.JournalPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	level, err := logrus.ParseLevel(rc.LogLevel)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	log.SetLevel(level)
	if rc.LogJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	rc.Config = cfg
	rc.Log = log
	return nil
}

// Stack is the ledger, journal and engine opened for one command.
type Stack struct {
	Config  *config.Config
	Log     *logrus.Logger
	Ledger  *sqlite.SqliteStore
	Journal journal.Journal
	// History is the sqlite journal, or nil when journaling to CSV.
	History *journal.SQLite
	// Quotes is consulted first for every price the engine needs.
	Quotes *market.QuoteStore
	Engine *sim.Engine
}

// Open wires the engine. Prices come from Stack.Quotes, then from extra,
// then from the last journaled candle close.
func (rc *RootConfig) Open(extra ...market.QuoteSource) (*Stack, error) {
	cfg := rc.Config
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	ledger, err := sqlite.NewSqliteStore(cfg.Store.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	st := &Stack{Config: cfg, Log: rc.Log, Ledger: ledger, Quotes: market.NewQuoteStore()}
	switch cfg.Store.JournalType {
	case "csv":
		st.Journal, err = journal.NewCSV(cfg.Store.CandlesFile, cfg.Store.ValuationsFile)
	default:
		st.History, err = journal.NewSQLite(cfg.Store.JournalPath)
		st.Journal = st.History
	}
	if err != nil {
		_ = ledger.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}

	sources := append([]market.QuoteSource{st.Quotes}, extra...)
	if st.History != nil {
		sources = append(sources, st.History)
	}

	policy, err := cfg.Poller.Retry.Policy()
	if err != nil {
		_ = st.Journal.Close()
		_ = ledger.Close()
		return nil, err
	}

	calc := charges.NewCalculator(cfg.Charges.Rates())
	var slip sim.Slippage = sim.NoSlippage{}
	if cfg.Execution.MaxSlippage > 0 {
		seed := cfg.Execution.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		slip = sim.NewRandomSlippage(decimal.NewFromFloat(cfg.Execution.MaxSlippage), seed)
	}

	st.Engine = sim.NewEngine(
		ledger,
		market.FirstOf(sources...),
		risk.NewValidator(cfg.Limits.Limits(), calc),
		sim.NewExecutor(slip),
		calc,
		sim.Options{
			OpeningCash:        cfg.Account.Cash(),
			Timeout:            cfg.Execution.TimeoutDuration(),
			MaxConflictRetries: cfg.Execution.MaxConflictRetries,
			Retry:              policy,
			Logger:             rc.Log,
			Journal:            st.Journal,
		},
	)
	return st, nil
}

func (s *Stack) Close() error {
	jerr := s.Journal.Close()
	lerr := s.Ledger.Close()
	if jerr != nil {
		return jerr
	}
	return lerr
}
