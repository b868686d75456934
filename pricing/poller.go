package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/adarshjiiidev/Kagazi/internal/retry"
	"github.com/adarshjiiidev/Kagazi/market"
)

// Sink receives every quote that changed candle state, with the update it caused.
type Sink func(ctx context.Context, q market.Quote, u CandleUpdate)

type PollerOptions struct {
	// Interval between polls of one symbol. Default 2s.
	Interval time.Duration
	// RatePerSecond caps quote-source calls across all symbols. Zero is unlimited.
	RatePerSecond float64
	Burst         int
	// Timeout bounds each GetQuote attempt. Default 5s.
	Timeout time.Duration
	Retry   retry.Policy
	Logger  logrus.FieldLogger
	// Now supplies the event time for each ingest. Nil uses the quote's timestamp.
	Now func() time.Time
}

// Poller runs one polling loop per symbol against a QuoteSource and feeds
// the results to an Aggregator.
type Poller struct {
	src     market.QuoteSource
	agg     *Aggregator
	sink    Sink
	limiter *rate.Limiter
	opts    PollerOptions
	log     logrus.FieldLogger
}

func NewPoller(src market.QuoteSource, agg *Aggregator, sink Sink, opts PollerOptions) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &Poller{
		src:     src,
		agg:     agg,
		sink:    sink,
		limiter: rate.NewLimiter(limit, opts.Burst),
		opts:    opts,
		log:     loggerOrDiscard(opts.Logger),
	}
}

// Run polls every symbol until ctx is done or every symbol's session has
// ended. Cancellation is not an error.
func (p *Poller) Run(ctx context.Context, symbols []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sym := range symbols {
		sym := market.NormalizeSymbol(sym)
		if sym == "" {
			continue
		}
		g.Go(func() error {
			return p.loop(ctx, sym)
		})
	}
	return g.Wait()
}

func (p *Poller) loop(ctx context.Context, sym string) error {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	log := p.log.WithField("symbol", sym)
	log.Debug("polling started")
	for {
		if u, ok := p.Tick(ctx, sym); ok && u.Kind == SessionEnded {
			log.Info("polling stopped, session ended")
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick performs one poll of sym. It reports false when the tick was skipped
// because the quote could not be fetched or was rejected; the aggregator is
// untouched in that case.
func (p *Poller) Tick(ctx context.Context, sym string) (CandleUpdate, bool) {
	log := p.log.WithField("symbol", sym)

	if err := p.limiter.Wait(ctx); err != nil {
		return CandleUpdate{}, false
	}

	q, err := p.fetch(ctx, sym)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Warn("quote unavailable, tick skipped")
		}
		return CandleUpdate{}, false
	}

	var at time.Time
	if p.opts.Now != nil {
		at = p.opts.Now()
	}
	u, err := p.agg.Ingest(sym, q, at)
	if err != nil {
		log.WithError(err).Warn("quote rejected, tick skipped")
		return CandleUpdate{}, false
	}
	if u.Kind != Ignored && p.sink != nil {
		p.sink(ctx, q, u)
	}
	return u, true
}

func (p *Poller) fetch(ctx context.Context, sym string) (market.Quote, error) {
	var q market.Quote
	err := retry.Do(ctx, p.opts.Retry, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()

		got, err := p.src.GetQuote(cctx, sym)
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
		return market.Quote{}, fmt.Errorf("get quote %s: %w", sym, err)
	}
	return q, nil
}
