// Package sim runs the paper-trading order pipeline: validate, execute,
// charge, and book each order against the account's portfolio in a single
// unit of work.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/adarshjiiidev/Kagazi/broker"
	"github.com/adarshjiiidev/Kagazi/charges"
	"github.com/adarshjiiidev/Kagazi/internal/id"
	"github.com/adarshjiiidev/Kagazi/internal/retry"
	"github.com/adarshjiiidev/Kagazi/journal"
	"github.com/adarshjiiidev/Kagazi/market"
	"github.com/adarshjiiidev/Kagazi/portfolio"
	"github.com/adarshjiiidev/Kagazi/risk"
	"github.com/adarshjiiidev/Kagazi/store"
)

const (
	DefaultTimeout            = 5 * time.Second
	DefaultMaxConflictRetries = 3
)

// DefaultOpeningCash funds an account the first time it is touched.
var DefaultOpeningCash = decimal.NewFromInt(1_000_000)

type Options struct {
	OpeningCash decimal.Decimal
	// Timeout bounds one whole operation, quote fetch included.
	Timeout            time.Duration
	MaxConflictRetries int
	// Retry governs quote fetches. Unknown symbols are never retried.
	Retry  retry.Policy
	Logger             logrus.FieldLogger
	// Journal receives a valuation after every executed trade. Optional.
	Journal journal.Journal
	Now     func() time.Time
	IDs     *id.Generator
}

// Receipt is what PlaceOrder reports back for an accepted order.
type Receipt struct {
	TradeID          string
	Status           broker.Status
	ExecutedPrice    decimal.Decimal
	ExecutedQuantity int64
	Charges          broker.Charges
	RealizedPnL      decimal.NullDecimal
	Warnings         []string
	Trade            broker.Trade
}

type Engine struct {
	store     store.Store
	quotes    market.QuoteSource
	validator *risk.Validator
	exec      *Executor
	calc      *charges.Calculator
	opts      Options
	log       logrus.FieldLogger

	mu       sync.Mutex
	accounts map[string]*sync.Mutex
}

func NewEngine(st store.Store, quotes market.QuoteSource, v *risk.Validator, x *Executor, calc *charges.Calculator, opts Options) *Engine {
	if opts.OpeningCash.IsZero() {
		opts.OpeningCash = DefaultOpeningCash
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConflictRetries <= 0 {
		opts.MaxConflictRetries = DefaultMaxConflictRetries
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.IDs == nil {
		opts.IDs = id.NewGenerator()
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if x == nil {
		x = NewExecutor(nil)
	}

	return &Engine{
		store:     st,
		quotes:    quotes,
		validator: v,
		exec:      x,
		calc:      calc,
		opts:      opts,
		log:       log.WithField("component", "engine"),
		accounts:  make(map[string]*sync.Mutex),
	}
}

func (e *Engine) now() time.Time { return e.opts.Now().UTC() }

func (e *Engine) accountLock(accountID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	mu, ok := e.accounts[accountID]
	if !ok {
		mu = &sync.Mutex{}
		e.accounts[accountID] = mu
	}
	return mu
}

type txFunc func(ctx context.Context, uow store.UnitOfWork, p *portfolio.Portfolio) error

// transact runs fn in one unit of work under the account's lock. A fresh
// portfolio is handed to fn when the account does not exist yet; fn decides
// whether to save it. Version conflicts rerun the whole unit.
func (e *Engine) transact(ctx context.Context, accountID string, fn txFunc) error {
	mu := e.accountLock(accountID)
	mu.Lock()
	defer mu.Unlock()

	var err error
	for attempt := 0; attempt <= e.opts.MaxConflictRetries; attempt++ {
		err = e.transactOnce(ctx, accountID, fn)
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		e.log.WithFields(logrus.Fields{
			"account": accountID,
			"attempt": attempt + 1,
		}).Debug("portfolio version conflict, retrying")
	}
	return &StorageError{Op: "commit", Err: err}
}

func (e *Engine) transactOnce(ctx context.Context, accountID string, fn txFunc) error {
	if err := ctx.Err(); err != nil {
		return &StorageError{Op: "begin", Err: err}
	}
	uow, err := e.store.Begin(ctx)
	if err != nil {
		return storageError("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = uow.Rollback()
		}
	}()

	p, err := uow.Portfolios().Find(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		p = portfolio.New(accountID, e.opts.OpeningCash, e.now())
	} else if err != nil {
		return storageError("load portfolio", err)
	}

	if err := fn(ctx, uow, p); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return storageError("commit", err)
	}
	committed = true
	return nil
}

func (e *Engine) quote(ctx context.Context, symbol string) (market.Quote, error) {
	var q market.Quote
	err := retry.Do(ctx, e.opts.Retry, func(ctx context.Context) error {
		got, err := e.quotes.GetQuote(ctx, symbol)
		if errors.Is(err, market.ErrQuoteNotFound) {
			return retry.Permanent(err)
		}
		if err != nil {
			return err
		}
		q = got
		return nil
	})
	if err != nil {
		return market.Quote{}, fmt.Errorf("%w: %s: %v", ErrQuoteUnavailable, symbol, err)
	}
	if err := q.Validate(); err != nil {
		return market.Quote{}, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	return q, nil
}

// PlaceOrder validates order against the account and the current quote,
// executes it, and books the trade and the portfolio change atomically.
// Rejections come back as *ValidationError and write nothing.
func (e *Engine) PlaceOrder(ctx context.Context, accountID string, order broker.OrderRequest) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	order.Symbol = market.NormalizeSymbol(order.Symbol)
	if side, err := broker.ParseSide(string(order.Side)); err == nil {
		order.Side = side
	}
	if kind, err := broker.ParseOrderKind(string(order.Kind)); err == nil {
		order.Kind = kind
	}
	q, err := e.quote(ctx, order.Symbol)
	if err != nil {
		return Receipt{}, err
	}

	var (
		receipt Receipt
		after   *portfolio.Portfolio
	)
	err = e.transact(ctx, accountID, func(ctx context.Context, uow store.UnitOfWork, p *portfolio.Portfolio) error {
		r, next, err := e.place(ctx, uow, p, order, q)
		receipt, after = r, next
		return err
	})
	if err != nil {
		return Receipt{}, err
	}

	log := e.log.WithFields(logrus.Fields{
		"account": accountID,
		"trade":   receipt.TradeID,
		"symbol":  order.Symbol,
		"side":    order.Side,
		"kind":    order.Kind,
		"qty":     order.Quantity,
		"status":  receipt.Status,
	})
	if receipt.Status == broker.StatusExecuted {
		log.WithField("price", receipt.ExecutedPrice.StringFixed(2)).Info("order executed")
		e.recordValuation(after)
	} else {
		log.Info("order accepted")
	}
	return receipt, nil
}

func (e *Engine) place(ctx context.Context, uow store.UnitOfWork, p *portfolio.Portfolio, order broker.OrderRequest, q market.Quote) (Receipt, *portfolio.Portfolio, error) {
	decision := e.validator.Validate(order, p, q.Price)
	if !decision.Valid {
		ve := &ValidationError{Errors: decision.Errors, Warnings: decision.Warnings}
		if order.Side == broker.Buy {
			px := q.Price
			if order.Kind.NeedsLimit() && order.LimitPrice.IsPositive() {
				px = order.LimitPrice
			}
			ve.Affordable = e.validator.MaxBuyQuantity(p.Cash, px)
		}
		return Receipt{}, nil, ve
	}

	now := e.now()
	t := broker.Trade{
		ID:         e.opts.IDs.Next(now),
		AccountID:  p.AccountID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Kind:       order.Kind,
		Quantity:   order.Quantity,
		LimitPrice: order.LimitPrice,
		StopPrice:  order.StopPrice,
		Price:      q.Price,
		Status:     broker.StatusPending,
		CreatedAt:  now,
	}

	next := p
	exe := e.exec.Execute(order, q.Price)
	if exe.Status == broker.StatusExecuted {
		var err error
		next, err = e.book(p, &t, exe, q, now, decision.Warnings)
		if err != nil {
			return Receipt{}, nil, err
		}
	} else if order.Kind.NeedsStop() {
		t.Note = "stop orders rest until cancelled"
	}

	if next.Version == 0 || next != p {
		if err := uow.Portfolios().Save(ctx, next); err != nil {
			return Receipt{}, nil, storageError("save portfolio", err)
		}
	}
	if err := uow.Trades().Save(ctx, &t); err != nil {
		return Receipt{}, nil, storageError("save trade", err)
	}

	return Receipt{
		TradeID:          t.ID,
		Status:           t.Status,
		ExecutedPrice:    t.ExecutedPrice,
		ExecutedQuantity: t.ExecutedQuantity,
		Charges:          t.Charges,
		RealizedPnL:      t.RealizedPnL,
		Warnings:         decision.Warnings,
		Trade:            t,
	}, next, nil
}

// book fills t with exe and returns the portfolio after the fill. A buy
// whose slipped cost no longer fits the cash is rejected here.
func (e *Engine) book(p *portfolio.Portfolio, t *broker.Trade, exe Execution, q market.Quote, now time.Time, warnings []string) (*portfolio.Portfolio, error) {
	value := exe.Price.Mul(decimal.NewFromInt(exe.Quantity))
	chg := e.calc.Compute(value, t.Side)

	if t.Side == broker.Buy {
		required := value.Add(chg.Total)
		if required.GreaterThan(p.Cash) {
			return nil, &ValidationError{
				Errors: []string{fmt.Sprintf(
					"insufficient funds for %s at execution price %s: required %s, available %s",
					t.Symbol, exe.Price.StringFixed(2), required.StringFixed(2), p.Cash.StringFixed(2))},
				Warnings:   warnings,
				Affordable: e.validator.MaxBuyQuantity(p.Cash, exe.Price),
			}
		}
	}

	t.Status = exe.Status
	t.ExecutedQuantity = exe.Quantity
	t.ExecutedPrice = exe.Price
	t.TotalValue = value
	t.Charges = chg
	t.ExecutedAt = now
	t.RealizedPnL = portfolio.RealizedPnL(p, *t)

	next, err := portfolio.Apply(p, *t, q)
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (e *Engine) recordValuation(p *portfolio.Portfolio) {
	if e.opts.Journal == nil || p == nil {
		return
	}
	if err := e.opts.Journal.RecordValuation(journal.Snapshot(p, e.now())); err != nil {
		e.log.WithError(err).WithField("account", p.AccountID).Warn("journal valuation failed")
	}
}

// GetPortfolio returns the account's portfolio, creating it on first use,
// with holdings marked to the latest quotes that could be fetched.
func (e *Engine) GetPortfolio(ctx context.Context, accountID string) (*portfolio.Portfolio, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	var snap *portfolio.Portfolio
	err := e.transact(ctx, accountID, func(ctx context.Context, uow store.UnitOfWork, p *portfolio.Portfolio) error {
		if p.Version == 0 {
			if err := uow.Portfolios().Save(ctx, p); err != nil {
				return storageError("create portfolio", err)
			}
			e.log.WithField("account", accountID).Info("account opened")
		}
		snap = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	quotes := e.fetchQuotes(ctx, snap.Symbols())
	if len(quotes) == 0 {
		return snap, nil
	}

	err = e.transact(ctx, accountID, func(ctx context.Context, uow store.UnitOfWork, p *portfolio.Portfolio) error {
		changed := false
		for _, q := range quotes {
			if p.Revalue(q) {
				changed = true
			}
		}
		if changed {
			if err := uow.Portfolios().Save(ctx, p); err != nil {
				return storageError("save portfolio", err)
			}
		}
		snap = p.Clone()
		return nil
	})
	if err != nil {
		// The unrevalued snapshot is still correct ledger state.
		e.log.WithError(err).WithField("account", accountID).Warn("revaluation not saved")
	}
	return snap, nil
}

// fetchQuotes skips symbols whose quote cannot be had.
func (e *Engine) fetchQuotes(ctx context.Context, symbols []string) []market.Quote {
	out := make([]market.Quote, 0, len(symbols))
	for _, sym := range symbols {
		q, err := e.quote(ctx, sym)
		if err != nil {
			e.log.WithError(err).WithField("symbol", sym).Debug("revaluation quote skipped")
			continue
		}
		out = append(out, q)
	}
	return out
}

// ListTrades returns the account's trades newest first.
func (e *Engine) ListTrades(ctx context.Context, accountID string, limit int) ([]broker.Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	uow, err := e.store.Begin(ctx)
	if err != nil {
		return nil, storageError("begin", err)
	}
	defer func() { _ = uow.Rollback() }()

	trades, err := uow.Trades().ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, storageError("list trades", err)
	}
	return trades, nil
}

// CancelOrder moves a PENDING trade of the account to CANCELLED.
func (e *Engine) CancelOrder(ctx context.Context, accountID, tradeID string) (broker.Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	var out broker.Trade
	err := e.transact(ctx, accountID, func(ctx context.Context, uow store.UnitOfWork, _ *portfolio.Portfolio) error {
		t, err := uow.Trades().FindByID(ctx, tradeID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && t.AccountID != accountID) {
			return fmt.Errorf("trade %s: %w", tradeID, store.ErrNotFound)
		}
		if err != nil {
			return storageError("load trade", err)
		}
		if t.Status != broker.StatusPending || !t.Status.CanTransition(broker.StatusCancelled) {
			return fmt.Errorf("cancel %s (%s): %w", tradeID, t.Status, ErrTradeNotPending)
		}
		t.Status = broker.StatusCancelled
		t.Note = "cancelled by request"
		if err := uow.Trades().Save(ctx, t); err != nil {
			return storageError("save trade", err)
		}
		out = *t
		return nil
	})
	if err != nil {
		return broker.Trade{}, err
	}
	e.log.WithFields(logrus.Fields{"account": accountID, "trade": tradeID}).Info("order cancelled")
	return out, nil
}

// OnQuote feeds a fresh quote into the ledger. Pending LIMIT orders for the
// symbol that became marketable are re-validated and filled at their limit
// price, or cancelled when they no longer pass. Every account holding the
// symbol is then revalued. It returns the receipts of the fills.
func (e *Engine) OnQuote(ctx context.Context, q market.Quote) ([]Receipt, error) {
	q.Symbol = market.NormalizeSymbol(q.Symbol)
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	pending, holders, err := e.scan(ctx, q.Symbol)
	if err != nil {
		return nil, err
	}

	var (
		fills []Receipt
		errs  []error
	)
	for _, t := range pending {
		if !ShouldExecute(t.Request(), q.Price) {
			continue
		}
		r, ok, err := e.fillPending(ctx, t.AccountID, t.ID, q)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			fills = append(fills, r)
		}
	}

	for _, acc := range holders {
		err := e.transact(ctx, acc, func(ctx context.Context, uow store.UnitOfWork, p *portfolio.Portfolio) error {
			if p.Version == 0 || !p.Revalue(q) {
				return nil
			}
			return storageError("save portfolio", uow.Portfolios().Save(ctx, p))
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("revalue %s: %w", acc, err))
		}
	}
	return fills, errors.Join(errs...)
}

// scan reads the symbol's pending trades and the accounts holding it.
func (e *Engine) scan(ctx context.Context, symbol string) ([]broker.Trade, []string, error) {
	uow, err := e.store.Begin(ctx)
	if err != nil {
		return nil, nil, storageError("begin", err)
	}
	defer func() { _ = uow.Rollback() }()

	pending, err := uow.Trades().ListPending(ctx, symbol)
	if err != nil {
		return nil, nil, storageError("list pending", err)
	}
	holders, err := uow.Portfolios().Holders(ctx, symbol)
	if err != nil {
		return nil, nil, storageError("list holders", err)
	}
	return pending, holders, nil
}

func (e *Engine) fillPending(ctx context.Context, accountID, tradeID string, q market.Quote) (Receipt, bool, error) {
	var (
		receipt Receipt
		filled  bool
		after   *portfolio.Portfolio
		reasons []string
	)
	err := e.transact(ctx, accountID, func(ctx context.Context, uow store.UnitOfWork, p *portfolio.Portfolio) error {
		filled, reasons = false, nil
		t, err := uow.Trades().FindByID(ctx, tradeID)
		if err != nil {
			return storageError("load trade", err)
		}
		if t.Status != broker.StatusPending {
			return nil
		}

		order := t.Request()
		d := e.validator.Validate(order, p, q.Price)
		if !d.Valid {
			reasons = d.Errors
			t.Status = broker.StatusCancelled
			t.Note = "cancelled at fill: " + strings.Join(d.Errors, "; ")
			return storageError("save trade", uow.Trades().Save(ctx, t))
		}

		next, err := e.book(p, t, e.exec.Fill(order), q, e.now(), d.Warnings)
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				reasons = ve.Errors
				t.Status = broker.StatusCancelled
				t.Note = "cancelled at fill: " + strings.Join(ve.Errors, "; ")
				return storageError("save trade", uow.Trades().Save(ctx, t))
			}
			return err
		}
		if err := uow.Portfolios().Save(ctx, next); err != nil {
			return storageError("save portfolio", err)
		}
		if err := uow.Trades().Save(ctx, t); err != nil {
			return storageError("save trade", err)
		}
		filled, after = true, next
		receipt = Receipt{
			TradeID:          t.ID,
			Status:           t.Status,
			ExecutedPrice:    t.ExecutedPrice,
			ExecutedQuantity: t.ExecutedQuantity,
			Charges:          t.Charges,
			RealizedPnL:      t.RealizedPnL,
			Trade:            *t,
		}
		return nil
	})
	if err != nil {
		return Receipt{}, false, err
	}

	log := e.log.WithFields(logrus.Fields{"account": accountID, "trade": tradeID, "symbol": q.Symbol})
	if reasons != nil {
		log.WithField("reasons", reasons).Warn("pending order cancelled")
		return Receipt{}, false, nil
	}
	if filled {
		log.WithField("price", receipt.ExecutedPrice.StringFixed(2)).Info("limit order filled")
		e.recordValuation(after)
	}
	return receipt, filled, nil
}

// Accounts lists the accounts this engine has served since it started.
func (e *Engine) Accounts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.accounts))
	for acc := range e.accounts {
		out = append(out, acc)
	}
	sort.Strings(out)
	return out
}
