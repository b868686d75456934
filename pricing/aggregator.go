package pricing

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/adarshjiiidev/Kagazi/market"
)

// DefaultWidth is the bucket width used when Options.Width is zero.
const DefaultWidth = 5 * time.Minute

// ErrInvalidQuote wraps quotes rejected before they touch candle state.
var ErrInvalidQuote = errors.New("invalid quote")

type UpdateKind int

const (
	// Ignored means the quote was out of order and nothing changed.
	Ignored UpdateKind = iota
	// Opened means a new candle was started; consumers append.
	Opened
	// Updated means the open candle changed; consumers replace the last point.
	Updated
	// SessionEnded means the market closed for this symbol until Reset.
	SessionEnded
)

func (k UpdateKind) String() string {
	switch k {
	case Ignored:
		return "ignored"
	case Opened:
		return "opened"
	case Updated:
		return "updated"
	case SessionEnded:
		return "session_ended"
	default:
		return fmt.Sprintf("UpdateKind(%d)", int(k))
	}
}

// CandleUpdate is the result of one Ingest call. Candle is the open candle
// after the update (zero for Ignored and SessionEnded). Sealed is set when the
// call closed the previous candle.
type CandleUpdate struct {
	Kind   UpdateKind
	Symbol string
	Candle market.Candle
	Sealed *market.Candle
}

type Options struct {
	// Width of every bucket. Must be a whole number of seconds.
	Width time.Duration
	// Location buckets are aligned in. Nil means UTC.
	Location *time.Location
	// IgnoreDayRange stops the quote's day high/low from widening the open candle.
	IgnoreDayRange bool
	// MaxHistory bounds the sealed candles kept per symbol. Zero keeps all.
	MaxHistory int
	Logger     logrus.FieldLogger
}

// Aggregator turns quote snapshots into fixed-width OHLCV candles, one
// independent series per symbol.
type Aggregator struct {
	width      time.Duration
	loc        *time.Location
	dayRange   bool
	maxHistory int
	log        logrus.FieldLogger

	mu     sync.Mutex
	series map[string]*series
}

type series struct {
	mu sync.Mutex

	open       *market.Candle
	lastSealed time.Time // zero until something was sealed or backfilled
	history    []market.Candle
	closed     bool
}

func NewAggregator(opts Options) (*Aggregator, error) {
	if opts.Width == 0 {
		opts.Width = DefaultWidth
	}
	if opts.Width < time.Second || opts.Width%time.Second != 0 {
		return nil, fmt.Errorf("candle width must be a positive whole number of seconds, got %s", opts.Width)
	}
	if opts.MaxHistory < 0 {
		return nil, fmt.Errorf("max history must not be negative, got %d", opts.MaxHistory)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Aggregator{
		width:      opts.Width,
		loc:        opts.Location,
		dayRange:   !opts.IgnoreDayRange,
		maxHistory: opts.MaxHistory,
		log:        loggerOrDiscard(opts.Logger),
		series:     make(map[string]*series),
	}, nil
}

func (a *Aggregator) Width() time.Duration { return a.width }

func (a *Aggregator) Location() *time.Location { return a.loc }

// BucketStart aligns t down to the start of its bucket, measured on the wall
// clock of the aggregator's location. The result is in UTC.
func (a *Aggregator) BucketStart(t time.Time) time.Time {
	_, offset := t.In(a.loc).Zone()
	w := int64(a.width / time.Second)
	local := t.Unix() + int64(offset)
	start := floorDiv(local, w)*w - int64(offset)
	return time.Unix(start, 0).UTC()
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Ingest applies one quote to the symbol's series. eventTime decides the
// bucket; a zero eventTime falls back to the quote's own timestamp. Only an
// invalid quote is an error; out-of-order quotes come back as Ignored.
func (a *Aggregator) Ingest(symbol string, q market.Quote, eventTime time.Time) (CandleUpdate, error) {
	if symbol == "" {
		symbol = q.Symbol
	}
	sym := market.NormalizeSymbol(symbol)
	if err := q.Validate(); err != nil {
		return CandleUpdate{}, fmt.Errorf("%w: %v", ErrInvalidQuote, err)
	}
	if eventTime.IsZero() {
		eventTime = q.Time
	}

	s := a.get(sym)
	s.mu.Lock()
	defer s.mu.Unlock()

	log := a.log.WithField("symbol", sym)

	if s.closed {
		return CandleUpdate{Kind: SessionEnded, Symbol: sym}, nil
	}

	if q.State == market.StateClosed {
		u := CandleUpdate{Kind: SessionEnded, Symbol: sym}
		if s.open != nil {
			u.Sealed = a.seal(s)
		}
		s.closed = true
		log.Info("market closed, session ended")
		return u, nil
	}

	bucket := a.BucketStart(eventTime)

	if s.open != nil {
		switch {
		case bucket.Equal(s.open.Start):
			a.widen(s.open, q)
			return CandleUpdate{Kind: Updated, Symbol: sym, Candle: *s.open}, nil
		case bucket.Before(s.open.Start):
			log.WithField("bucket", bucket).Debug("out of order quote ignored")
			return CandleUpdate{Kind: Ignored, Symbol: sym}, nil
		}
	} else if !s.lastSealed.IsZero() && !bucket.After(s.lastSealed) {
		log.WithField("bucket", bucket).Debug("quote for sealed bucket ignored")
		return CandleUpdate{Kind: Ignored, Symbol: sym}, nil
	}

	u := CandleUpdate{Kind: Opened, Symbol: sym}
	if s.open != nil {
		u.Sealed = a.seal(s)
	}
	s.open = &market.Candle{
		Symbol: sym,
		Start:  bucket,
		Width:  a.width,
		Open:   q.Price,
		High:   q.Price,
		Low:    q.Price,
		Close:  q.Price,
		Volume: q.Volume,
	}
	u.Candle = *s.open
	log.WithField("bucket", bucket).Debug("candle opened")
	return u, nil
}

func (a *Aggregator) widen(c *market.Candle, q market.Quote) {
	high := decimal.Max(c.High, q.Price)
	low := decimal.Min(c.Low, q.Price)
	if a.dayRange {
		if q.High.IsPositive() {
			high = decimal.Max(high, q.High)
		}
		if q.Low.IsPositive() {
			low = decimal.Min(low, q.Low)
		}
	}
	c.High = high
	c.Low = low
	c.Close = q.Price
	if q.Volume > c.Volume {
		c.Volume = q.Volume
	}
}

// seal moves the open candle into history. Caller holds s.mu.
func (a *Aggregator) seal(s *series) *market.Candle {
	sealed := *s.open
	s.open = nil
	s.lastSealed = sealed.Start
	s.history = append(s.history, sealed)
	a.trim(s)
	return &sealed
}

func (a *Aggregator) trim(s *series) {
	if a.maxHistory > 0 && len(s.history) > a.maxHistory {
		s.history = append([]market.Candle(nil), s.history[len(s.history)-a.maxHistory:]...)
	}
}

func (a *Aggregator) get(sym string) *series {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.series[sym]
	if !ok {
		s = &series{}
		a.series[sym] = s
	}
	return s
}

func (a *Aggregator) lookup(symbol string) (*series, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.series[market.NormalizeSymbol(symbol)]
	return s, ok
}

// Current returns the open candle for symbol, if any.
func (a *Aggregator) Current(symbol string) (market.Candle, bool) {
	s, ok := a.lookup(symbol)
	if !ok {
		return market.Candle{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open == nil {
		return market.Candle{}, false
	}
	return *s.open, true
}

// History returns a copy of the sealed candles for symbol, oldest first.
func (a *Aggregator) History(symbol string) []market.Candle {
	s, ok := a.lookup(symbol)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]market.Candle(nil), s.history...)
}

// Closed reports whether symbol's session has ended.
func (a *Aggregator) Closed(symbol string) bool {
	s, ok := a.lookup(symbol)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (a *Aggregator) Symbols() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.series))
	for sym := range a.series {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Reset reopens symbol for a new session. Sealed history is kept, so buckets
// at or before the last sealed candle stay closed.
func (a *Aggregator) Reset(symbol string) {
	s, ok := a.lookup(symbol)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open != nil {
		a.seal(s)
	}
	s.closed = false
	a.log.WithField("symbol", market.NormalizeSymbol(symbol)).Info("session reset")
}

// Backfill seeds symbol's history with historical candles. Candles that are
// invalid, misaligned, of another width, or not strictly after the last
// sealed candle (and before the open one) are skipped. It returns how many
// were added.
func (a *Aggregator) Backfill(symbol string, candles []market.Candle) int {
	sym := market.NormalizeSymbol(symbol)
	sorted := append([]market.Candle(nil), candles...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	s := a.get(sym)
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, c := range sorted {
		if c.Width != 0 && c.Width != a.width {
			continue
		}
		if !c.Valid() || !a.BucketStart(c.Start).Equal(c.Start) {
			continue
		}
		if !s.lastSealed.IsZero() && !c.Start.After(s.lastSealed) {
			continue
		}
		if s.open != nil && !c.Start.Before(s.open.Start) {
			continue
		}
		c.Symbol = sym
		c.Width = a.width
		c.Start = c.Start.UTC()
		s.history = append(s.history, c)
		s.lastSealed = c.Start
		added++
	}
	a.trim(s)
	if added > 0 {
		a.log.WithFields(logrus.Fields{"symbol": sym, "candles": added}).Info("history backfilled")
	}
	return added
}

func loggerOrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l != nil {
		return l
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return discard
}
