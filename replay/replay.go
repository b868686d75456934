// Package replay plays a recorded quote feed back through the candle
// aggregator and the order engine.
//
// A recording is JSON lines. A line is either a quote snapshot in the form
// market.DecodeQuote accepts, or a scripted order when it has an "event"
// field:
//
//	{"symbol":"INFY","price":"1500.5","volume":1200,"time":"2024-03-04T09:15:02Z"}
//	{"event":"BUY","account":"acc","symbol":"INFY","qty":10}
//	{"event":"SELL","symbol":"INFY","qty":5,"kind":"LIMIT","limit":"1510"}
//
// Blank lines and lines starting with '#' are skipped. Orders are placed at
// the point in the feed where they appear.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/adarshjiiidev/Kagazi/broker"
	"github.com/adarshjiiidev/Kagazi/market"
)

// Event is one line of a recording. Exactly one of Quote and Order is set.
type Event struct {
	Line  int
	Quote *market.Quote
	Order *OrderEvent
}

type OrderEvent struct {
	Account string // empty means the replay's default account
	Request broker.OrderRequest
}

// LoadFile reads a recording from path.
func LoadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Load parses every line of r. The first bad line fails the whole load.
func Load(r io.Reader) ([]Event, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []Event
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}

		ev, err := parseLine(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ev.Line = line
		out = append(out, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseLine(raw []byte) (Event, error) {
	if !gjson.ValidBytes(raw) {
		return Event{}, fmt.Errorf("invalid json")
	}
	if kind := gjson.GetBytes(raw, "event"); kind.Exists() {
		o, err := parseOrder(raw, kind.String())
		if err != nil {
			return Event{}, err
		}
		return Event{Order: &o}, nil
	}

	q, err := market.DecodeQuote(raw)
	if err != nil {
		return Event{}, err
	}
	return Event{Quote: &q}, nil
}

func parseOrder(raw []byte, event string) (OrderEvent, error) {
	side, err := broker.ParseSide(event)
	if err != nil {
		return OrderEvent{}, fmt.Errorf("event: %w", err)
	}
	doc := gjson.ParseBytes(raw)

	kind := broker.Market
	if k := doc.Get("kind"); k.Exists() {
		if kind, err = broker.ParseOrderKind(k.String()); err != nil {
			return OrderEvent{}, err
		}
	}
	qty := doc.Get("qty")
	if qty.Type != gjson.Number || qty.Num != float64(qty.Int()) {
		return OrderEvent{}, fmt.Errorf("qty must be an integer")
	}

	o := OrderEvent{
		Account: strings.TrimSpace(doc.Get("account").String()),
		Request: broker.OrderRequest{
			Symbol:   market.NormalizeSymbol(doc.Get("symbol").String()),
			Side:     side,
			Kind:     kind,
			Quantity: qty.Int(),
		},
	}
	if o.Request.LimitPrice, err = optionalPrice(doc, "limit"); err != nil {
		return OrderEvent{}, err
	}
	if o.Request.StopPrice, err = optionalPrice(doc, "stop"); err != nil {
		return OrderEvent{}, err
	}
	return o, nil
}

func optionalPrice(doc gjson.Result, key string) (decimal.Decimal, error) {
	v := doc.Get(key)
	if !v.Exists() {
		return decimal.Zero, nil
	}
	s := v.Raw
	if v.Type == gjson.String {
		s = v.Str
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s is not numeric (%s)", key, v.Raw)
	}
	return d, nil
}

// Source serves a recording's quotes as a market.QuoteSource. Each call for
// a symbol returns that symbol's next snapshot; the last one repeats.
type Source struct {
	mu     sync.Mutex
	quotes map[string][]market.Quote
	pos    map[string]int
}

func NewSource(events []Event) *Source {
	s := &Source{quotes: make(map[string][]market.Quote), pos: make(map[string]int)}
	for _, ev := range events {
		if ev.Quote != nil {
			s.quotes[ev.Quote.Symbol] = append(s.quotes[ev.Quote.Symbol], *ev.Quote)
		}
	}
	return s
}

func (s *Source) GetQuote(ctx context.Context, symbol string) (market.Quote, error) {
	if err := ctx.Err(); err != nil {
		return market.Quote{}, err
	}
	sym := market.NormalizeSymbol(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.quotes[sym]
	if len(list) == 0 {
		return market.Quote{}, fmt.Errorf("%w: %s", market.ErrQuoteNotFound, symbol)
	}
	i := s.pos[sym]
	if i < len(list)-1 {
		s.pos[sym] = i + 1
	}
	return list[i], nil
}

// Symbols lists the recorded symbols in sorted order.
func (s *Source) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.quotes))
	for sym := range s.quotes {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Exhausted reports whether every symbol has reached its last snapshot.
func (s *Source) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sym, list := range s.quotes {
		if s.pos[sym] < len(list)-1 {
			return false
		}
	}
	return true
}
